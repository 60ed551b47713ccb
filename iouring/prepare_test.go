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

package iouring_test

import (
	"testing"

	"github.com/pawelgaczynski/jajo/iouring"
	"github.com/stretchr/testify/assert"
)

func TestPrepareMsgRing(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{}
	entry.PrepareMsgRing(10, 100, 200, 60)

	assert.Equal(t, uint8(40), entry.OpCode)
	assert.Equal(t, int32(10), entry.Fd)
	assert.Equal(t, uint32(100), entry.Len)
	assert.Equal(t, uint64(200), entry.Off)
	assert.Equal(t, uint32(60), entry.OpcodeFlags)
}

func TestPrepareClose(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{}
	entry.PrepareClose(10)

	assert.Equal(t, uint8(19), entry.OpCode)
	assert.Equal(t, int32(10), entry.Fd)
}

func TestPrepareRead(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{}
	entry.PrepareRead(5, 0x1000, 128, 64)

	assert.Equal(t, uint8(22), entry.OpCode)
	assert.Equal(t, int32(5), entry.Fd)
	assert.Equal(t, uint64(0x1000), entry.Addr)
	assert.Equal(t, uint32(128), entry.Len)
	assert.Equal(t, uint64(64), entry.Off)
}

func TestPrepareTimeout(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{}
	entry.PrepareTimeout(0x2000, 3, iouring.TimeoutAbs)

	assert.Equal(t, uint8(11), entry.OpCode)
	assert.Equal(t, int32(-1), entry.Fd)
	assert.Equal(t, uint64(0x2000), entry.Addr)
	assert.Equal(t, uint32(1), entry.Len)
	assert.Equal(t, uint64(3), entry.Off)
	assert.Equal(t, iouring.TimeoutAbs, entry.OpcodeFlags)
}

func TestPrepareKeepsUserDataAndFlags(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{UserData: 77, Flags: iouring.SQEIOLink.Raw()}
	entry.PrepareFsync(4, iouring.FsyncDatasync)
	entry.PrepareNop()

	assert.Equal(t, uint8(0), entry.OpCode)
	assert.Equal(t, int32(-1), entry.Fd)
	assert.Equal(t, uint32(0), entry.OpcodeFlags)
	assert.Equal(t, uint64(77), entry.UserData)
	assert.Equal(t, iouring.SQEIOLink.Raw(), entry.Flags)
}

func TestPrepareCancel(t *testing.T) {
	entry := &iouring.SubmissionQueueEntry{UserData: 5}
	entry.PrepareCancel(1<<40, iouring.AsyncCancelAny)

	assert.Equal(t, uint8(14), entry.OpCode)
	assert.Equal(t, int32(-1), entry.Fd)
	assert.Equal(t, uint64(1<<40), entry.Addr)
	assert.Equal(t, uint32(1<<2), entry.OpcodeFlags)
	assert.Equal(t, uint64(5), entry.UserData)
}
