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

// Package pagemem allocates page-aligned memory outside of the Go heap.
// Such buffers keep their address for their whole life and satisfy the
// alignment rules of O_DIRECT I/O.
package pagemem

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var pageSize = os.Getpagesize()

var ErrInvalidSize = errors.New("invalid block size")

type Block struct {
	Buf     []byte
	mapping []byte
}

// AlignSize rounds size up to a multiple of the page size.
func AlignSize(size int) int {
	return (size + pageSize - 1) / pageSize * pageSize
}

// Alloc maps a new block of at least size bytes. Buf has length size.
func Alloc(size int) (*Block, error) {
	return alloc(size, AlignSize(size))
}

func alloc(size, mappingSize int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	mapping, err := unix.Mmap(-1, 0, mappingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap of %d bytes failed: %w", mappingSize, err)
	}

	block := &Block{
		Buf:     mapping[:size],
		mapping: mapping,
	}
	runtime.SetFinalizer(block, func(block *Block) {
		_ = block.unmap()
	})

	return block, nil
}

func (b *Block) unmap() error {
	if b.mapping == nil {
		return nil
	}
	err := unix.Munmap(b.mapping)
	b.mapping = nil
	b.Buf = nil

	return err
}

// Abandon keeps the mapping for the life of the process. It is for blocks
// that something outside the Go runtime may still write to.
func (b *Block) Abandon() {
	runtime.SetFinalizer(b, nil)
}

// Free unmaps the block. The block must not be used afterwards.
func (b *Block) Free() error {
	runtime.SetFinalizer(b, nil)

	return b.unmap()
}

// Cap returns the size of the underlying mapping.
func (b *Block) Cap() int {
	return len(b.mapping)
}
