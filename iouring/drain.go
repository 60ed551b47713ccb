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
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// closeDrainTimeout bounds how long Close waits for canceled operations.
const closeDrainTimeout = time.Second

// User data of the requests Close submits while draining. A caller request
// using one of them is treated as never completed, so its memory is abandoned.
const (
	drainCancelUserData  = ^uint64(0)
	drainTimeoutUserData = ^uint64(0) - 1
)

// discardPending drops entries that were prepared but never published.
func (k *kernelRing) discardPending() {
	ring := &k.sq
	for ; ring.sqeTail != ring.sqeHead; ring.sqeTail-- {
		k.entries[(ring.sqeTail-1)&*ring.ringMask].reset()
	}
}

func (k *kernelRing) submitInternal(prepare func(*SubmissionQueueEntry)) error {
	sq := SubmissionQueue{kernel: k, active: true}
	entry := sq.PrepareEntry()
	if entry == nil {
		return ErrAgain
	}
	prepare(entry.sqe)
	_, err := k.submit(0)

	return err
}

// reapDrained retires every ready completion, releasing pins of finished
// operations. It reports whether the drain deadline passed.
func (k *kernelRing) reapDrained() bool {
	var expired bool

	head := atomic.LoadUint32(k.cq.head)
	tail := atomic.LoadUint32(k.cq.tail)
	for ; head != tail; head++ {
		cqe := k.readCQE(head)
		switch {
		case cqe.UserData == drainTimeoutUserData:
			expired = true
		case cqe.UserData == drainCancelUserData:
			k.logger.Debug().Int("fd", k.fd).Int32("res", cqe.Res).Msg("Pending operations canceled")
		case !cqe.More():
			k.inflight.release(cqe.UserData)
		}
	}
	atomic.StoreUint32(k.cq.head, head)

	return expired
}

// drain cancels every operation that still pins memory and reaps completions
// until none is left or closeDrainTimeout passes. It returns the number of
// operations still pinned.
func (k *kernelRing) drain() int {
	if k.inflight.len() == 0 {
		return 0
	}
	k.discardPending()

	timespec := unix.NsecToTimespec(closeDrainTimeout.Nanoseconds())
	defer runtime.KeepAlive(&timespec)

	err := k.submitInternal(func(sqe *SubmissionQueueEntry) {
		sqe.PrepareCancel(0, AsyncCancelAny)
		sqe.UserData = drainCancelUserData
	})
	if err == nil {
		err = k.submitInternal(func(sqe *SubmissionQueueEntry) {
			sqe.PrepareTimeout(uintptr(unsafe.Pointer(&timespec)), 0, 0)
			sqe.UserData = drainTimeoutUserData
		})
	}
	if err != nil {
		k.logger.Error().Int("fd", k.fd).Err(err).Msg("Canceling pending operations failed")
		k.reapDrained()

		return k.inflight.len()
	}

	for !k.reapDrained() && k.inflight.len() > 0 {
		_, err = k.enter(0, 1, EnterGetEvents)
		if err != nil && !errors.Is(err, ErrInterrupted) {
			k.logger.Error().Int("fd", k.fd).Err(err).Msg("Waiting for canceled operations failed")

			break
		}
	}

	return k.inflight.len()
}
