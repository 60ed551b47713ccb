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
	"golang.org/x/sys/unix"
)

const (
	EnterGetEvents uint32 = 1 << iota
	EnterSQWakeup
	EnterSQWait
	EnterExtArg
	EnterRegisteredRing
)

// nSig is the size in bytes of the kernel signal mask, _NSIG / 8.
const nSig = 65 / 8

func (k *kernelRing) enter(toSubmit, minComplete, flags uint32) (uint, error) {
	consumed, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_ENTER,
		uintptr(k.fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		0,
		nSig,
	)
	if errno != 0 {
		return 0, convertErrno("io_uring_enter", errno)
	}

	return uint(consumed), nil
}
