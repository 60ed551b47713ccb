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
	"testing"
	"unsafe"

	. "github.com/stretchr/testify/require"
)

func TestKernelStructLayout(t *testing.T) {
	Equal(t, uintptr(64), unsafe.Sizeof(SubmissionQueueEntry{}))
	Equal(t, uintptr(16), unsafe.Sizeof(completionQueueEvent{}))
	Equal(t, uintptr(40), unsafe.Sizeof(SQRingOffsets{}))
	Equal(t, uintptr(40), unsafe.Sizeof(CQRingOffsets{}))
	Equal(t, uintptr(120), unsafe.Sizeof(Params{}))
	Equal(t, uintptr(16+8*(int(OpLast)+1)), unsafe.Sizeof(Probe{}))
}

func TestSubmissionQueueEntryOffsets(t *testing.T) {
	var sqe SubmissionQueueEntry

	Equal(t, uintptr(0), unsafe.Offsetof(sqe.OpCode))
	Equal(t, uintptr(1), unsafe.Offsetof(sqe.Flags))
	Equal(t, uintptr(2), unsafe.Offsetof(sqe.IoPrio))
	Equal(t, uintptr(4), unsafe.Offsetof(sqe.Fd))
	Equal(t, uintptr(8), unsafe.Offsetof(sqe.Off))
	Equal(t, uintptr(16), unsafe.Offsetof(sqe.Addr))
	Equal(t, uintptr(24), unsafe.Offsetof(sqe.Len))
	Equal(t, uintptr(28), unsafe.Offsetof(sqe.OpcodeFlags))
	Equal(t, uintptr(32), unsafe.Offsetof(sqe.UserData))
	Equal(t, uintptr(40), unsafe.Offsetof(sqe.BufIG))
	Equal(t, uintptr(42), unsafe.Offsetof(sqe.Personality))
	Equal(t, uintptr(44), unsafe.Offsetof(sqe.SpliceFdIn))
}

func TestParamsOffsets(t *testing.T) {
	var params Params

	Equal(t, uintptr(20), unsafe.Offsetof(params.features))
	Equal(t, uintptr(24), unsafe.Offsetof(params.wqFd))
	Equal(t, uintptr(40), unsafe.Offsetof(params.sqOff))
	Equal(t, uintptr(80), unsafe.Offsetof(params.cqOff))
	Equal(t, uintptr(20), unsafe.Offsetof(params.cqOff.cqes))
	Equal(t, uintptr(24), unsafe.Offsetof(params.sqOff.array))
}

func TestRegisterOpcodes(t *testing.T) {
	Equal(t, uint(8), registerProbe)
	Equal(t, uint(12), registerEnableRings)
}
