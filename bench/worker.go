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

package bench

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/pawelgaczynski/jajo/iouring"
	"github.com/pawelgaczynski/jajo/logger"
	"github.com/pawelgaczynski/jajo/pkg/pagemem"
	"github.com/pawelgaczynski/jajo/pkg/token"
	"github.com/rs/zerolog"
)

// worker drives one ring until it completed its share of operations.
type worker struct {
	index     int
	config    *Config
	ops       int
	fd        int
	ring      *iouring.Ring
	tokens    *token.Pool
	submitter *batchSubmitter
	submit    func(sq *iouring.SubmissionQueue, inflight int) error
	logger    zerolog.Logger

	maxInflight int
	inflight    int
	issued      int
	completed   int
	starts      []time.Time
	buffers     []*pagemem.Block
	cqes        []iouring.CompletionEntry
	latencies   []time.Duration
}

func newWorker(index int, config *Config, ops int, fd int, log zerolog.Logger) (*worker, error) {
	ring, err := iouring.CreateRing(config.Entries, config.RingOptions...)
	if err != nil {
		return nil, err
	}

	maxInflight := int(ring.SQEntries())
	w := &worker{
		index:       index,
		config:      config,
		ops:         ops,
		fd:          fd,
		ring:        ring,
		tokens:      token.NewPool(),
		submitter:   newBatchSubmitter(),
		logger:      logger.ForRing(log, index, ring.Fd()),
		maxInflight: maxInflight,
		starts:      make([]time.Time, maxInflight),
		cqes:        make([]iouring.CompletionEntry, ring.CQEntries()),
		latencies:   make([]time.Duration, 0, ops),
	}
	w.submit = w.submitter.submit
	if config.Op != OpNop {
		w.buffers = make([]*pagemem.Block, 0, maxInflight)
		for i := 0; i < maxInflight; i++ {
			block, err := pagemem.Get(config.BlockSize)
			if err != nil {
				w.close()

				return nil, err
			}
			w.buffers = append(w.buffers, block)
		}
	}

	return w, nil
}

// close releases the ring before the buffers the kernel may still reference.
// Buffers of a ring that left operations behind are never reused.
func (w *worker) close() {
	if err := w.ring.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Closing ring failed")
	}
	abandoned := w.ring.Inflight()
	if abandoned > 0 {
		w.logger.Error().Int("abandoned", abandoned).Msg("Buffers stay pinned after close")
	}
	for _, block := range w.buffers {
		if abandoned > 0 {
			block.Abandon()
		} else {
			pagemem.Put(block)
		}
	}
	w.buffers = nil
}

func (w *worker) prepare(sq *iouring.SubmissionQueue) {
	for batch := 0; batch < w.config.BatchSize && w.issued < w.ops && w.inflight < w.maxInflight; batch++ {
		entry := sq.PrepareEntry()
		if entry == nil {
			return
		}

		userData := w.tokens.Get()
		slot := userData - token.First
		offset := slot * uint64(w.config.BlockSize)
		switch w.config.Op {
		case OpRead:
			entry.PrepareRead(w.fd, w.buffers[slot].Buf, offset)
		case OpWrite:
			entry.PrepareWrite(w.fd, w.buffers[slot].Buf, offset)
		default:
			entry.PrepareNop()
		}
		entry.SetUserData(userData)

		w.starts[slot] = time.Now()
		w.issued++
		w.inflight++
	}
}

func (w *worker) reap(cq *iouring.CompletionQueue) error {
	n := cq.PeekBatch(w.cqes)
	now := time.Now()

	for i := 0; i < n; i++ {
		cqe := w.cqes[i]
		if err := cqe.Err(); err != nil {
			return errOpFailed(w.config.Op, cqe.UserData, err)
		}
		w.latencies = append(w.latencies, now.Sub(w.starts[cqe.UserData-token.First]))
		w.tokens.Put(cqe.UserData)
		w.inflight--
		w.completed++
	}
	w.submitter.advance(n)

	return nil
}

// round prepares and submits one batch, then reaps. A skipped submit still
// reaps, since a busy completion ring only clears once it is drained.
func (w *worker) round() error {
	err := w.ring.WithSubmissionQueue(func(sq *iouring.SubmissionQueue) error {
		w.prepare(sq)

		return w.submit(sq, w.inflight)
	})
	if err != nil {
		if !errors.Is(err, errSkippable) {
			return err
		}
		w.logger.Debug().Err(err).Uint32("waitFor", w.submitter.waitFor).Msg("Submit skipped")
	}

	return w.ring.WithCompletionQueue(w.reap)
}

func (w *worker) run(ctx context.Context) error {
	if w.config.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := setAffinity(w.index); err != nil {
			return err
		}
	}

	w.logger.Debug().Int("ops", w.ops).Int("maxInflight", w.maxInflight).Msg("Worker started")

	for w.completed < w.ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.round(); err != nil {
			return err
		}
	}

	w.logger.Debug().Int("completed", w.completed).Msg("Worker finished")

	return nil
}
