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
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	offSQRing int64 = 0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000
)

func mmapRegion(fd int, offset int64, size uintptr) ([]byte, error) {
	return unix.Mmap(fd, offset, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
}

func uint32At(buffer []byte, offset uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&buffer[offset]))
}

func (k *kernelRing) mmap() error {
	params := &k.params

	k.sqeSize = unsafe.Sizeof(SubmissionQueueEntry{})
	if k.flags.Contains(SetupSQE128) {
		k.sqeSize *= 2
	}
	k.cqeSize = unsafe.Sizeof(completionQueueEvent{})
	if k.flags.Contains(SetupCQE32) {
		k.cqeSize *= 2
	}

	sqSize := uintptr(params.sqOff.array) + uintptr(params.sqEntries)*unsafe.Sizeof(uint32(0))
	cqSize := uintptr(params.cqOff.cqes) + uintptr(params.cqEntries)*k.cqeSize
	singleMMap := k.features.Contains(FeatSingleMMap)
	if singleMMap {
		sqSize = max(sqSize, cqSize)
		cqSize = sqSize
	}

	buffer, err := mmapRegion(k.fd, offSQRing, sqSize)
	if err != nil {
		return err
	}
	k.sq.buffer = buffer

	if singleMMap {
		k.cq.buffer = buffer
	} else {
		buffer, err = mmapRegion(k.fd, offCQRing, cqSize)
		if err != nil {
			return errors.Join(err, k.unmapRings())
		}
		k.cq.buffer = buffer
	}

	k.sqes, err = mmapRegion(k.fd, offSQEs, uintptr(params.sqEntries)*k.sqeSize)
	if err != nil {
		return errors.Join(err, k.unmapRings())
	}

	sqBuffer := k.sq.buffer
	k.sq.head = uint32At(sqBuffer, params.sqOff.head)
	k.sq.tail = uint32At(sqBuffer, params.sqOff.tail)
	k.sq.ringMask = uint32At(sqBuffer, params.sqOff.ringMask)
	k.sq.ringEntries = uint32At(sqBuffer, params.sqOff.ringEntries)
	k.sq.flags = uint32At(sqBuffer, params.sqOff.flags)
	k.sq.dropped = uint32At(sqBuffer, params.sqOff.dropped)
	if !k.flags.Contains(SetupNoSQArray) {
		k.sq.array = uint32At(sqBuffer, params.sqOff.array)
	}

	cqBuffer := k.cq.buffer
	k.cq.head = uint32At(cqBuffer, params.cqOff.head)
	k.cq.tail = uint32At(cqBuffer, params.cqOff.tail)
	k.cq.ringMask = uint32At(cqBuffer, params.cqOff.ringMask)
	k.cq.ringEntries = uint32At(cqBuffer, params.cqOff.ringEntries)
	k.cq.overflow = uint32At(cqBuffer, params.cqOff.overflow)
	if params.cqOff.flags != 0 {
		k.cq.flags = uint32At(cqBuffer, params.cqOff.flags)
	}
	k.cq.cqes = unsafe.Pointer(&cqBuffer[params.cqOff.cqes])

	return nil
}

func (k *kernelRing) unmapSQEs() error {
	if k.sqes == nil {
		return nil
	}
	err := unix.Munmap(k.sqes)
	k.sqes = nil

	return err
}

func (k *kernelRing) unmapRings() error {
	var sqErr, cqErr error
	if k.sq.buffer != nil {
		sqErr = unix.Munmap(k.sq.buffer)
	}
	if k.cq.buffer != nil && (k.sq.buffer == nil || &k.cq.buffer[0] != &k.sq.buffer[0]) {
		cqErr = unix.Munmap(k.cq.buffer)
	}
	k.sq.buffer = nil
	k.cq.buffer = nil

	return errors.Join(sqErr, cqErr)
}
