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
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	SQNeedWakeup uint32 = 1 << iota
	SQCQOverflow
	SQTaskrun
)

type sqRing struct {
	buffer []byte

	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32

	sqeHead uint32
	sqeTail uint32
}

type cqRing struct {
	buffer []byte

	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	overflow    *uint32
	flags       *uint32
	cqes        unsafe.Pointer
}

// kernelRing is the state shared with the kernel. The queue views point at
// it instead of at the Ring so that an abandoned Ring stays collectable.
type kernelRing struct {
	fd       int
	flags    SetupFlags
	features Features
	params   Params

	sq      sqRing
	cq      cqRing
	sqes    []byte
	sqeSize uintptr
	cqeSize uintptr

	entries  []SubmissionEntry
	inflight *inflight
	logger   zerolog.Logger
}

func (k *kernelRing) init() {
	mask := *k.sq.ringMask
	if k.sq.array != nil {
		array := unsafe.Slice(k.sq.array, k.params.sqEntries)
		for i := range array {
			array[i] = uint32(i) & mask
		}
	}
	k.entries = make([]SubmissionEntry, k.params.sqEntries)
	for i := range k.entries {
		k.entries[i].sqe = (*SubmissionQueueEntry)(unsafe.Pointer(&k.sqes[uintptr(i)*k.sqeSize]))
	}
	k.sq.sqeHead = atomic.LoadUint32(k.sq.tail)
	k.sq.sqeTail = k.sq.sqeHead
}

func (k *kernelRing) sqFlags() uint32 {
	return atomic.LoadUint32(k.sq.flags)
}

func (k *kernelRing) teardown() error {
	var errs []error

	remaining := k.drain()

	if err := k.unmapSQEs(); err != nil {
		k.logger.Error().Int("fd", k.fd).Err(err).Msg("Unmapping submission entries failed")
		errs = append(errs, &ResourceError{Op: "munmap", Err: err})
	}
	if err := k.unmapRings(); err != nil {
		k.logger.Error().Int("fd", k.fd).Err(err).Msg("Unmapping rings failed")
		errs = append(errs, &ResourceError{Op: "munmap", Err: err})
	}
	if err := unix.Close(k.fd); err != nil {
		k.logger.Error().Int("fd", k.fd).Err(err).Msg("Closing ring fd failed")
		errs = append(errs, &ResourceError{Op: "close", Err: err})
	}

	for i := range k.entries {
		k.entries[i].sqe = nil
		k.entries[i].pins = nil
	}
	if remaining > 0 {
		abandoned := k.inflight.abandon()
		k.logger.Error().Int("fd", k.fd).Int("abandoned", abandoned).
			Msg("Operations did not complete before close, their memory stays pinned")
	} else {
		k.inflight.releaseAll()
	}

	k.logger.Debug().Int("fd", k.fd).Msg("Ring closed")

	return errors.Join(errs...)
}

// Ring owns an io_uring instance. Its queues are reachable only through
// WithSubmissionQueue and WithCompletionQueue, which allow one live view per
// side at a time.
type Ring struct {
	sqMu   sync.Mutex
	cqMu   sync.Mutex
	closed atomic.Bool

	kernel *kernelRing
	sq     SubmissionQueue
	cq     CompletionQueue
}

func (ring *Ring) Fd() int {
	return ring.kernel.fd
}

func (ring *Ring) Flags() SetupFlags {
	return ring.kernel.flags
}

func (ring *Ring) Features() Features {
	return ring.kernel.features
}

func (ring *Ring) SQEntries() uint32 {
	return ring.kernel.params.sqEntries
}

func (ring *Ring) CQEntries() uint32 {
	return ring.kernel.params.cqEntries
}

// Inflight returns the number of published operations still holding memory
// that the kernel may access. After Close it counts the operations that never
// completed, whose memory stays pinned for the life of the process.
func (ring *Ring) Inflight() int {
	return ring.kernel.inflight.len()
}

func (ring *Ring) WithSubmissionQueue(fn func(*SubmissionQueue) error) error {
	if !ring.sqMu.TryLock() {
		return ErrViewActive
	}
	defer ring.sqMu.Unlock()

	if ring.closed.Load() {
		return ErrRingClosed
	}

	ring.sq.active = true
	defer func() { ring.sq.active = false }()

	return fn(&ring.sq)
}

func (ring *Ring) WithCompletionQueue(fn func(*CompletionQueue) error) error {
	if !ring.cqMu.TryLock() {
		return ErrViewActive
	}
	defer ring.cqMu.Unlock()

	if ring.closed.Load() {
		return ErrRingClosed
	}

	ring.cq.active = true
	defer func() { ring.cq.active = false }()

	return fn(&ring.cq)
}

// Close releases the kernel resources of the ring. Pending operations are
// canceled and awaited first, for at most a second. Closing a closed ring is a
// no-op. Every release step is attempted even if an earlier one fails.
func (ring *Ring) Close() error {
	if !ring.sqMu.TryLock() {
		return ErrViewActive
	}
	defer ring.sqMu.Unlock()

	if !ring.cqMu.TryLock() {
		return ErrViewActive
	}
	defer ring.cqMu.Unlock()

	if ring.closed.Swap(true) {
		return nil
	}
	runtime.SetFinalizer(ring, nil)

	return ring.kernel.teardown()
}

func (ring *Ring) finalize() {
	ring.kernel.logger.Error().Int("fd", ring.kernel.fd).Msg("Ring was not closed before being collected")

	_ = ring.Close()
}
