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
	"sync/atomic"
	"unsafe"
)

// SubmissionQueue is the producer side of a ring. It is valid only inside
// the function passed to Ring.WithSubmissionQueue.
type SubmissionQueue struct {
	kernel *kernelRing
	active bool
}

func (sq *SubmissionQueue) ring() *kernelRing {
	if !sq.active {
		panic("iouring: submission queue used outside of WithSubmissionQueue")
	}

	return sq.kernel
}

// PrepareEntry reserves the next free slot and zeroes it. It returns nil
// when every slot is either prepared or still owned by the kernel.
func (sq *SubmissionQueue) PrepareEntry() *SubmissionEntry {
	kernel := sq.ring()
	ring := &kernel.sq

	head := atomic.LoadUint32(ring.head)
	if ring.sqeTail-head >= kernel.params.sqEntries {
		return nil
	}

	index := ring.sqeTail & *ring.ringMask
	clear(unsafe.Slice(&kernel.sqes[uintptr(index)*kernel.sqeSize], kernel.sqeSize))
	ring.sqeTail++

	entry := &kernel.entries[index]
	entry.reset()

	return entry
}

// flush publishes prepared entries to the kernel and returns the number of
// entries the kernel has not consumed yet.
func (k *kernelRing) flush() uint32 {
	ring := &k.sq
	if ring.sqeHead != ring.sqeTail {
		k.inflight.publish(k.entries, *ring.ringMask, ring.sqeHead, ring.sqeTail)
		ring.sqeHead = ring.sqeTail
		atomic.StoreUint32(ring.tail, ring.sqeTail)
	}

	return atomic.LoadUint32(ring.tail) - atomic.LoadUint32(ring.head)
}

func (k *kernelRing) sqNeedsEnter(flags *uint32) bool {
	if !k.flags.Contains(SetupSQPoll) {
		return true
	}

	if k.sqFlags()&SQNeedWakeup != 0 {
		*flags |= EnterSQWakeup

		return true
	}

	return false
}

func (k *kernelRing) submit(waitNr uint32) (uint, error) {
	var flags uint32

	submitted := k.flush()

	if !k.sqNeedsEnter(&flags) && waitNr == 0 {
		return uint(submitted), nil
	}
	if waitNr > 0 || k.flags.Contains(SetupIOPoll) {
		flags |= EnterGetEvents
	}

	return k.enter(submitted, waitNr, flags)
}

// Submit publishes every prepared entry and returns the number the kernel
// accepted.
func (sq *SubmissionQueue) Submit() (uint, error) {
	return sq.ring().submit(0)
}

// SubmitAndWait is Submit followed by a wait for at least minCompletions
// completions. It blocks.
func (sq *SubmissionQueue) SubmitAndWait(minCompletions uint32) (uint, error) {
	return sq.ring().submit(minCompletions)
}

func (sq *SubmissionQueue) SpaceLeft() uint32 {
	kernel := sq.ring()

	return kernel.params.sqEntries - (kernel.sq.sqeTail - atomic.LoadUint32(kernel.sq.head))
}

// Pending returns the number of prepared entries not yet published.
func (sq *SubmissionQueue) Pending() uint32 {
	kernel := sq.ring()

	return kernel.sq.sqeTail - kernel.sq.sqeHead
}

// Dropped returns the number of invalid entries the kernel skipped.
func (sq *SubmissionQueue) Dropped() uint32 {
	return atomic.LoadUint32(sq.ring().sq.dropped)
}
