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
	"syscall"
	"unsafe"
)

type completionQueueEvent struct {
	userData uint64
	res      int32
	flags    uint32
}

// CompletionEntry is a copy of a completion taken before its slot was
// returned to the kernel.
type CompletionEntry struct {
	UserData uint64
	Res      int32
	RawFlags uint32
	// Big holds the extra 16 bytes of a completion on SetupCQE32 rings.
	Big [2]uint64
}

func (c CompletionEntry) Flags() CQEFlags {
	return CQEFlagsFromRaw(c.RawFlags)
}

// BufferID returns the id of the selected buffer when CQEFBuffer is set.
func (c CompletionEntry) BufferID() (uint16, bool) {
	if !c.Flags().Contains(CQEFBuffer) {
		return 0, false
	}

	return uint16(c.RawFlags >> CQEBufferShift), true
}

// More reports whether further completions will follow for the same request.
func (c CompletionEntry) More() bool {
	return c.Flags().Contains(CQEFMore)
}

func (c CompletionEntry) Err() error {
	if c.Res >= 0 {
		return nil
	}

	return syscall.Errno(-c.Res)
}

// CompletionQueue is the consumer side of a ring. It is valid only inside
// the function passed to Ring.WithCompletionQueue.
type CompletionQueue struct {
	kernel *kernelRing
	active bool
}

func (cq *CompletionQueue) ring() *kernelRing {
	if !cq.active {
		panic("iouring: completion queue used outside of WithCompletionQueue")
	}

	return cq.kernel
}

func (k *kernelRing) cqNeedsEnter() bool {
	return k.flags.Contains(SetupIOPoll) || k.sqFlags()&(SQCQOverflow|SQTaskrun) != 0
}

func (k *kernelRing) readCQE(head uint32) CompletionEntry {
	event := unsafe.Add(k.cq.cqes, uintptr(head&*k.cq.ringMask)*k.cqeSize)
	cqe := (*completionQueueEvent)(event)
	entry := CompletionEntry{
		UserData: cqe.userData,
		Res:      cqe.res,
		RawFlags: cqe.flags,
	}
	if k.flags.Contains(SetupCQE32) {
		entry.Big = *(*[2]uint64)(unsafe.Add(event, unsafe.Sizeof(completionQueueEvent{})))
	}

	return entry
}

// peekBatch copies up to len(entries) completions and retires their slots.
func (k *kernelRing) peekBatch(entries []CompletionEntry) int {
	head := atomic.LoadUint32(k.cq.head)
	ready := atomic.LoadUint32(k.cq.tail) - head
	count := min(uint32(len(entries)), ready)
	if count == 0 {
		return 0
	}
	for i := uint32(0); i < count; i++ {
		entries[i] = k.readCQE(head + i)
	}
	atomic.StoreUint32(k.cq.head, head+count)

	for i := uint32(0); i < count; i++ {
		if !entries[i].More() {
			k.inflight.release(entries[i].UserData)
		}
	}

	return int(count)
}

func (k *kernelRing) flushCompletions() {
	_, err := k.enter(0, 0, EnterGetEvents)
	if err != nil {
		k.logger.Debug().Int("fd", k.fd).Err(err).Msg("Flushing completions failed")
	}
}

// PeekEntry returns the oldest completion without blocking and retires its
// slot. The second result is false when no completion is ready.
func (cq *CompletionQueue) PeekEntry() (CompletionEntry, bool) {
	var entries [1]CompletionEntry

	if cq.PeekBatch(entries[:]) == 0 {
		return CompletionEntry{}, false
	}

	return entries[0], true
}

// PeekBatch fills entries with ready completions, oldest first, retires their
// slots and returns how many were copied.
func (cq *CompletionQueue) PeekBatch(entries []CompletionEntry) int {
	kernel := cq.ring()
	if len(entries) == 0 {
		return 0
	}

	count := kernel.peekBatch(entries)
	if count == 0 && kernel.cqNeedsEnter() {
		kernel.flushCompletions()
		count = kernel.peekBatch(entries)
	}

	return count
}

// Ready returns the number of completions waiting to be consumed.
func (cq *CompletionQueue) Ready() uint32 {
	kernel := cq.ring()

	return atomic.LoadUint32(kernel.cq.tail) - atomic.LoadUint32(kernel.cq.head)
}

// Overflow returns the number of completions the kernel could not post
// because the ring was full.
func (cq *CompletionQueue) Overflow() uint32 {
	return atomic.LoadUint32(cq.ring().cq.overflow)
}
