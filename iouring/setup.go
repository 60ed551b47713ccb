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

package iouring

import (
	"math/bits"
	"runtime"
	"unsafe"

	"github.com/pawelgaczynski/jajo/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	maxSQEntries = 32768
	maxCQEntries = 2 * maxSQEntries
)

type SQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type CQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

// Params mirrors struct io_uring_params.
type Params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32

	sqOff SQRingOffsets
	cqOff CQRingOffsets
}

func roundUpPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}

	return 1 << bits.Len32(n-1)
}

// ringSizes validates the configuration against entries and returns the
// submission and completion ring sizes the kernel is expected to allocate.
func (c *Config) ringSizes(entries uint32) (uint32, uint32, error) {
	flags := c.Flags
	if unknown := flags.Unknown(); unknown != 0 {
		return 0, 0, configError("unknown setup flags %#x", uint32(unknown))
	}
	if entries == 0 {
		return 0, 0, configError("entries must be greater than zero")
	}
	if entries > maxSQEntries {
		if !flags.Contains(SetupClamp) {
			return 0, 0, configError("%d entries exceed the maximum of %d", entries, maxSQEntries)
		}
		entries = maxSQEntries
	}
	sqEntries := roundUpPow2(entries)
	cqEntries := 2 * sqEntries

	if flags.Contains(SetupCQSize) {
		cq := c.CQEntries
		if cq == 0 {
			return 0, 0, configError("%s requires a completion queue size", SetupCQSize)
		}
		if cq > maxCQEntries {
			if !flags.Contains(SetupClamp) {
				return 0, 0, configError("%d completion entries exceed the maximum of %d", cq, maxCQEntries)
			}
			cq = maxCQEntries
		}
		cq = roundUpPow2(cq)
		if cq < sqEntries {
			return 0, 0, configError("%d completion entries are fewer than %d submission entries", cq, sqEntries)
		}
		cqEntries = cq
	} else if c.CQEntries != 0 {
		return 0, 0, configError("completion queue size set without %s", SetupCQSize)
	}

	switch {
	case flags.Contains(SetupSQAff) && !flags.Contains(SetupSQPoll):
		return 0, 0, configError("%s requires %s", SetupSQAff, SetupSQPoll)
	case flags.Contains(SetupAttachWQ) && c.WQFd < 0:
		return 0, 0, configError("%s requires a ring fd to attach to", SetupAttachWQ)
	case flags.Contains(SetupTaskrunFlag) &&
		flags.Intersect(SetupCoopTaskrun.Union(SetupDeferTaskrun)) == 0:
		return 0, 0, configError("%s requires %s or %s", SetupTaskrunFlag, SetupCoopTaskrun, SetupDeferTaskrun)
	case flags.Contains(SetupDeferTaskrun) && !flags.Contains(SetupSingleIssuer):
		return 0, 0, configError("%s requires %s", SetupDeferTaskrun, SetupSingleIssuer)
	case flags.Contains(SetupDeferTaskrun) && flags.Contains(SetupSQPoll):
		return 0, 0, configError("%s cannot be combined with %s", SetupDeferTaskrun, SetupSQPoll)
	case flags.Contains(SetupCoopTaskrun) && flags.Contains(SetupSQPoll):
		return 0, 0, configError("%s cannot be combined with %s", SetupCoopTaskrun, SetupSQPoll)
	case flags.Intersect(SetupNoMmap.Union(SetupRegisteredFdOnly)) != 0:
		return 0, 0, configError("caller provided ring memory is not supported")
	}

	return sqEntries, cqEntries, nil
}

func (c *Config) params(cqEntries uint32) Params {
	params := Params{
		flags:       c.Flags.Raw(),
		sqThreadCPU: c.SQThreadCPU,
	}
	if c.Flags.Contains(SetupCQSize) {
		params.cqEntries = cqEntries
	}
	if c.Flags.Contains(SetupSQPoll) {
		params.sqThreadIdle = uint32(c.SQThreadIdle.Milliseconds())
	}
	if c.Flags.Contains(SetupAttachWQ) {
		params.wqFd = uint32(c.WQFd)
	}

	return params
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}

	return logger.NewLogger("iouring", c.LoggerLevel, c.PrettyLogger)
}

func setup(entries uint32, params *Params) (int, unix.Errno) {
	fd, _, errno := unix.Syscall(
		unix.SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0,
	)
	if errno != 0 {
		return -1, errno
	}

	return int(fd), 0
}

// CreateRing sets up a ring with room for at least entries submissions.
// Sizes are rounded up to a power of two.
func CreateRing(entries uint32, opts ...ConfigOption) (*Ring, error) {
	config := NewConfig(opts...)

	sqEntries, cqEntries, err := config.ringSizes(entries)
	if err != nil {
		return nil, err
	}

	params := config.params(cqEntries)

	fd, errno := setup(sqEntries, &params)
	if errno != 0 {
		return nil, setupError(errno)
	}

	kernel := &kernelRing{
		fd:       fd,
		flags:    SetupFlags(params.flags),
		features: Features(params.features),
		params:   params,
		inflight: newInflight(),
		logger:   config.logger(),
	}

	if err = kernel.mmap(); err != nil {
		_ = unix.Close(fd)

		return nil, &ResourceError{Op: "mmap", Err: err}
	}
	kernel.init()

	ring := &Ring{kernel: kernel}
	ring.sq.kernel = kernel
	ring.cq.kernel = kernel

	if missing := kernel.features.Missing(config.Features); missing != 0 {
		_ = ring.Close()

		return nil, configError("kernel does not support required features: %s", missing)
	}

	runtime.SetFinalizer(ring, (*Ring).finalize)

	kernel.logger.Debug().
		Int("fd", fd).
		Uint32("sqEntries", params.sqEntries).
		Uint32("cqEntries", params.cqEntries).
		Str("flags", kernel.flags.String()).
		Str("features", kernel.features.String()).
		Msg("Ring created")

	return ring, nil
}
