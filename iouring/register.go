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
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	registerProbe       uint = 8
	registerEnableRings uint = 12
)

func (k *kernelRing) register(op uint, arg unsafe.Pointer, nrArgs uint32) (uint, error) {
	ret, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_REGISTER,
		uintptr(k.fd),
		uintptr(op),
		uintptr(arg),
		uintptr(nrArgs),
		0,
		0,
	)
	if errno != 0 {
		return 0, convertErrno("io_uring_register", errno)
	}

	return uint(ret), nil
}

// EnableRings starts a ring created with SetupRDisabled.
func (ring *Ring) EnableRings() error {
	if ring.closed.Load() {
		return ErrRingClosed
	}
	_, err := ring.kernel.register(registerEnableRings, nil, 0)

	return err
}

// Probe asks the kernel which opcodes the ring supports.
func (ring *Ring) Probe() (*Probe, error) {
	if ring.closed.Load() {
		return nil, ErrRingClosed
	}
	probe := &Probe{}
	_, err := ring.kernel.register(registerProbe, unsafe.Pointer(probe), probeOpsSize)
	if err != nil {
		return nil, err
	}

	return probe, nil
}
