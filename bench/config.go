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
	"runtime"

	"github.com/pawelgaczynski/jajo/iouring"
	"github.com/rs/zerolog"
)

type Op string

const (
	OpNop   Op = "nop"
	OpRead  Op = "read"
	OpWrite Op = "write"
)

var Ops = []Op{OpNop, OpRead, OpWrite}

const (
	defaultEntries   = 256
	defaultOps       = 1_000_000
	defaultBatchSize = 32
	defaultBlockSize = 4096
	directAlignment  = 512
)

type ConfigOption func(*Config)

type Config struct {
	Rings        int
	Entries      uint32
	Ops          int
	BatchSize    int
	Op           Op
	File         string
	BlockSize    int
	Direct       bool
	LockOSThread bool
	LoggerLevel  zerolog.Level
	PrettyLogger bool
	RingOptions  []iouring.ConfigOption
}

func WithRings(rings int) ConfigOption {
	return func(c *Config) {
		c.Rings = rings
	}
}

func WithEntries(entries uint32) ConfigOption {
	return func(c *Config) {
		c.Entries = entries
	}
}

func WithOps(ops int) ConfigOption {
	return func(c *Config) {
		c.Ops = ops
	}
}

func WithBatchSize(batchSize int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = batchSize
	}
}

func WithOp(op Op) ConfigOption {
	return func(c *Config) {
		c.Op = op
	}
}

// WithFile makes read and write operations target path instead of a
// temporary file.
func WithFile(path string) ConfigOption {
	return func(c *Config) {
		c.File = path
	}
}

func WithBlockSize(blockSize int) ConfigOption {
	return func(c *Config) {
		c.BlockSize = blockSize
	}
}

// WithDirect opens the file with O_DIRECT, bypassing the page cache.
func WithDirect(direct bool) ConfigOption {
	return func(c *Config) {
		c.Direct = direct
	}
}

func WithLockOSThread(lockOSThread bool) ConfigOption {
	return func(c *Config) {
		c.LockOSThread = lockOSThread
	}
}

func WithLoggerLevel(loggerLevel zerolog.Level) ConfigOption {
	return func(c *Config) {
		c.LoggerLevel = loggerLevel
	}
}

func WithPrettyLogger(prettyLogger bool) ConfigOption {
	return func(c *Config) {
		c.PrettyLogger = prettyLogger
	}
}

func WithRingOptions(opts ...iouring.ConfigOption) ConfigOption {
	return func(c *Config) {
		c.RingOptions = append(c.RingOptions, opts...)
	}
}

func NewConfig(opts ...ConfigOption) Config {
	config := Config{
		Rings:        runtime.NumCPU(),
		Entries:      defaultEntries,
		Ops:          defaultOps,
		BatchSize:    defaultBatchSize,
		Op:           OpNop,
		BlockSize:    defaultBlockSize,
		LockOSThread: false,
		LoggerLevel:  zerolog.ErrorLevel,
		PrettyLogger: false,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return config
}

func (c *Config) validate() error {
	switch {
	case c.Rings <= 0:
		return errInvalidConfig("rings", c.Rings)
	case c.Entries == 0:
		return errInvalidConfig("entries", c.Entries)
	case c.Ops <= 0:
		return errInvalidConfig("ops", c.Ops)
	case c.BatchSize <= 0:
		return errInvalidConfig("batch size", c.BatchSize)
	case c.Op != OpNop && c.BlockSize <= 0:
		return errInvalidConfig("block size", c.BlockSize)
	case c.Direct && c.BlockSize%directAlignment != 0:
		return errInvalidConfig("block size", c.BlockSize)
	}

	for _, op := range Ops {
		if c.Op == op {
			return nil
		}
	}

	return errInvalidConfig("op", c.Op)
}
