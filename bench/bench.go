// Copyright (c) 2023 Paweł Gaczyński
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bench measures ring throughput and latency by driving one ring per
// worker of a bounded goroutine pool.
package bench

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/alitto/pond"
	"github.com/pawelgaczynski/jajo/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

type target struct {
	file      *os.File
	temporary bool
}

func openTarget(config *Config) (*target, error) {
	if config.Op == OpNop {
		return &target{}, nil
	}
	flags := os.O_RDWR | os.O_CREATE
	if config.Direct {
		flags |= unix.O_DIRECT
	}

	if config.File != "" {
		file, err := os.OpenFile(config.File, flags, 0o644)
		if err != nil {
			return nil, err
		}

		return &target{file: file}, nil
	}

	file, err := os.CreateTemp("", "jajo-bench-*")
	if err != nil {
		return nil, err
	}
	if !config.Direct {
		return &target{file: file, temporary: true}, nil
	}

	name := file.Name()
	if err = file.Close(); err != nil {
		return nil, err
	}
	file, err = os.OpenFile(name, flags, 0o600)
	if err != nil {
		_ = os.Remove(name)

		return nil, err
	}

	return &target{file: file, temporary: true}, nil
}

func (t *target) fd() int {
	if t.file == nil {
		return -1
	}

	return int(t.file.Fd())
}

// grow makes sure reads of size bytes do not hit the end of the file.
func (t *target) grow(size int64) error {
	if t.file == nil {
		return nil
	}
	info, err := t.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= size {
		return nil
	}

	return t.file.Truncate(size)
}

func (t *target) close(log zerolog.Logger) {
	if t.file == nil {
		return
	}
	if err := t.file.Close(); err != nil {
		log.Error().Err(err).Str("file", t.file.Name()).Msg("Closing benchmark file failed")
	}
	if t.temporary {
		if err := os.Remove(t.file.Name()); err != nil {
			log.Error().Err(err).Str("file", t.file.Name()).Msg("Removing benchmark file failed")
		}
	}
}

// Run executes config.Ops operations split across config.Rings rings and
// reports throughput and completion latency.
func Run(ctx context.Context, config Config) (Report, error) {
	if err := config.validate(); err != nil {
		return Report{}, err
	}

	log := logger.NewLogger("bench", config.LoggerLevel, config.PrettyLogger)

	dest, err := openTarget(&config)
	if err != nil {
		return Report{}, err
	}
	defer dest.close(log)

	rings := min(config.Rings, config.Ops)
	workers := make([]*worker, 0, rings)
	defer func() {
		for _, w := range workers {
			w.close()
		}
	}()

	for i := 0; i < rings; i++ {
		ops := config.Ops / rings
		if i < config.Ops%rings {
			ops++
		}
		w, err := newWorker(i, &config, ops, dest.fd(), log)
		if err != nil {
			return Report{}, err
		}
		workers = append(workers, w)

		if err = dest.grow(int64(w.maxInflight) * int64(config.BlockSize)); err != nil {
			return Report{}, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := pond.New(rings, rings)
	errs := make([]error, rings)

	log.Info().Int("rings", rings).Int("ops", config.Ops).Str("op", string(config.Op)).Msg("Benchmark started")

	start := time.Now()
	for i, w := range workers {
		i, w := i, w
		pool.Submit(func() {
			if err := w.run(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Worker failed")
				errs[i] = err
				cancel()
			}
		})
	}
	pool.StopAndWait()
	elapsed := time.Since(start)

	if err = errors.Join(errs...); err != nil {
		return Report{}, err
	}

	latencies := make([]time.Duration, 0, config.Ops)
	for _, w := range workers {
		latencies = append(latencies, w.latencies...)
	}
	report := newReport(&config, rings, elapsed, latencies)

	log.Info().Object("report", report).Msg("Benchmark finished")

	return report, nil
}
