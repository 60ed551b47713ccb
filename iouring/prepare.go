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
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// prepareRW overwrites the operation part of the entry. User data and
// entry flags are set separately and survive.
func (entry *SubmissionQueueEntry) prepareRW(opcode Opcode, fd int, addr uintptr, length uint32, offset uint64) {
	entry.OpCode = uint8(opcode)
	entry.IoPrio = 0
	entry.Fd = int32(fd)
	entry.Off = offset
	entry.Addr = uint64(addr)
	entry.Len = length
	entry.OpcodeFlags = 0
	entry.BufIG = 0
	entry.Personality = 0
	entry.SpliceFdIn = 0
	entry._pad2[0] = 0
	entry._pad2[1] = 0
}

func (entry *SubmissionQueueEntry) PrepareNop() {
	entry.prepareRW(OpNop, -1, 0, 0, 0)
}

func (entry *SubmissionQueueEntry) PrepareRead(fd int, buffer uintptr, nbytes uint32, offset uint64) {
	entry.prepareRW(OpRead, fd, buffer, nbytes, offset)
}

func (entry *SubmissionQueueEntry) PrepareWrite(fd int, buffer uintptr, nbytes uint32, offset uint64) {
	entry.prepareRW(OpWrite, fd, buffer, nbytes, offset)
}

func (entry *SubmissionQueueEntry) PrepareReadv(fd int, iovecs uintptr, nrVecs uint32, offset uint64) {
	entry.prepareRW(OpReadv, fd, iovecs, nrVecs, offset)
}

func (entry *SubmissionQueueEntry) PrepareWritev(fd int, iovecs uintptr, nrVecs uint32, offset uint64) {
	entry.prepareRW(OpWritev, fd, iovecs, nrVecs, offset)
}

func (entry *SubmissionQueueEntry) PrepareFsync(fd int, flags uint32) {
	entry.prepareRW(OpFsync, fd, 0, 0, 0)
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareClose(fd int) {
	entry.prepareRW(OpClose, fd, 0, 0, 0)
}

func (entry *SubmissionQueueEntry) PrepareTimeout(timespec uintptr, count uint64, flags uint32) {
	entry.prepareRW(OpTimeout, -1, timespec, 1, count)
	entry.OpcodeFlags = flags
}

// PrepareMsgRing posts a completion with the given res (length) and user
// data (data) to the ring behind fd.
func (entry *SubmissionQueueEntry) PrepareMsgRing(fd int, length uint32, data uint64, flags uint32) {
	entry.prepareRW(OpMsgRing, fd, uintptr(MsgData), length, data)
	entry.OpcodeFlags = flags
}

// PrepareCancel cancels the request submitted with userData. With
// AsyncCancelAny every pending request is a match and userData is ignored.
func (entry *SubmissionQueueEntry) PrepareCancel(userData uint64, flags uint32) {
	entry.prepareRW(OpAsyncCancel, -1, 0, 0, 0)
	entry.Addr = userData
	entry.OpcodeFlags = flags
}

func bufferAddr(buffer []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buffer)))
}

func (entry *SubmissionEntry) PrepareNop() *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareNop()

	return entry
}

// PrepareRead reads len(buffer) bytes at offset into buffer. The buffer is
// kept alive until the operation completes and must not be touched before.
func (entry *SubmissionEntry) PrepareRead(fd int, buffer []byte, offset uint64) *SubmissionEntry {
	entry.reset()
	entry.pin(buffer)
	entry.sqe.PrepareRead(fd, bufferAddr(buffer), uint32(len(buffer)), offset)

	return entry
}

func (entry *SubmissionEntry) PrepareWrite(fd int, buffer []byte, offset uint64) *SubmissionEntry {
	entry.reset()
	entry.pin(buffer)
	entry.sqe.PrepareWrite(fd, bufferAddr(buffer), uint32(len(buffer)), offset)

	return entry
}

func (entry *SubmissionEntry) iovecs(buffers [][]byte) uintptr {
	iovecs := make([]unix.Iovec, len(buffers))
	for i, buffer := range buffers {
		iovecs[i].Base = unsafe.SliceData(buffer)
		iovecs[i].SetLen(len(buffer))
	}
	entry.pin(iovecs, buffers)

	return uintptr(unsafe.Pointer(unsafe.SliceData(iovecs)))
}

func (entry *SubmissionEntry) PrepareReadv(fd int, buffers [][]byte, offset uint64) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareReadv(fd, entry.iovecs(buffers), uint32(len(buffers)), offset)

	return entry
}

func (entry *SubmissionEntry) PrepareWritev(fd int, buffers [][]byte, offset uint64) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareWritev(fd, entry.iovecs(buffers), uint32(len(buffers)), offset)

	return entry
}

func (entry *SubmissionEntry) PrepareFsync(fd int, flags uint32) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareFsync(fd, flags)

	return entry
}

func (entry *SubmissionEntry) PrepareClose(fd int) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareClose(fd)

	return entry
}

// PrepareTimeout completes after duration or once count other completions
// were posted, whichever comes first. A count of zero means the duration only.
func (entry *SubmissionEntry) PrepareTimeout(duration time.Duration, count uint64, flags uint32) *SubmissionEntry {
	entry.reset()
	timespec := unix.NsecToTimespec(duration.Nanoseconds())
	entry.pin(&timespec)
	entry.sqe.PrepareTimeout(uintptr(unsafe.Pointer(&timespec)), count, flags)

	return entry
}

func (entry *SubmissionEntry) PrepareCancel(userData uint64, flags uint32) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareCancel(userData, flags)

	return entry
}

func (entry *SubmissionEntry) PrepareMsgRing(fd int, length uint32, data uint64, flags uint32) *SubmissionEntry {
	entry.reset()
	entry.sqe.PrepareMsgRing(fd, length, data, flags)

	return entry
}
