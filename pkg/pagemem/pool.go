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

package pagemem

import (
	"math/bits"
	"sync"
)

const maxPooledSize = 64 * 1024 * 1024

var builtinPool = &Pool{}

func Get(size int) (*Block, error) {
	return builtinPool.Get(size)
}

func Put(block *Block) {
	builtinPool.Put(block)
}

// Pool recycles blocks in power of two size classes. Blocks dropped by the
// pool are unmapped by their finalizer.
type Pool struct {
	classes [32]sync.Pool
}

func index(n uint32) uint32 {
	return uint32(bits.Len32(n - 1))
}

// Get returns a zeroed block with Buf of length size.
func (p *Pool) Get(size int) (*Block, error) {
	if size <= 0 || AlignSize(size) > maxPooledSize {
		return Alloc(size)
	}

	idx := index(uint32(AlignSize(size)))
	if block, ok := p.classes[idx].Get().(*Block); ok {
		block.Buf = block.mapping[:size]

		return block, nil
	}

	return alloc(size, max(1<<idx, pageSize))
}

func (p *Pool) Put(block *Block) {
	mappingSize := block.Cap()
	if mappingSize < pageSize || mappingSize > maxPooledSize {
		return
	}

	idx := index(uint32(mappingSize))
	if mappingSize != 1<<idx {
		// not from Get, file it under the smaller class it fully covers
		idx--
	}
	clear(block.mapping)
	p.classes[idx].Put(block)
}
