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

// SubmissionQueueEntry mirrors struct io_uring_sqe.
type SubmissionQueueEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64

	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	_pad2       [2]uint64
}

// SubmissionEntry is a reserved slot of the submission queue. It stays valid
// until the next Submit of its queue, after which it belongs to the kernel.
type SubmissionEntry struct {
	sqe  *SubmissionQueueEntry
	pins []any
}

func (entry *SubmissionEntry) reset() {
	clear(entry.pins)
	entry.pins = entry.pins[:0]
}

func (entry *SubmissionEntry) pin(objs ...any) {
	entry.pins = append(entry.pins, objs...)
}

func (entry *SubmissionEntry) SetUserData(userData uint64) *SubmissionEntry {
	entry.sqe.UserData = userData

	return entry
}

func (entry *SubmissionEntry) UserData() uint64 {
	return entry.sqe.UserData
}

func (entry *SubmissionEntry) SetFlags(flags SQEFlags) *SubmissionEntry {
	entry.sqe.Flags = flags.Raw()

	return entry
}

func (entry *SubmissionEntry) Flags() SQEFlags {
	return SQEFlags(entry.sqe.Flags)
}

func (entry *SubmissionEntry) Opcode() Opcode {
	return Opcode(entry.sqe.OpCode)
}

// SQE exposes the raw slot. Memory referenced from it is not kept alive by
// the ring.
func (entry *SubmissionEntry) SQE() *SubmissionQueueEntry {
	return entry.sqe
}
