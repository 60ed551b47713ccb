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

// Package token hands out small reusable 64-bit request tokens, suitable as
// io_uring user data. Tokens returned to the pool are reissued before new ones
// are minted, so the set of live tokens stays dense.
package token

import "sync/atomic"

// First is the lowest token a Pool issues. Zero is never issued.
const First uint64 = 1

type Pool struct {
	free stack
	next atomic.Uint64
}

func NewPool() *Pool {
	pool := &Pool{}
	pool.next.Store(First)

	return pool
}

func (p *Pool) Get() uint64 {
	if token, ok := p.free.pop(); ok {
		return token
	}

	return p.next.Add(1) - 1
}

func (p *Pool) Put(token uint64) {
	p.free.push(token)
}

// Minted returns the number of distinct tokens issued so far.
func (p *Pool) Minted() uint64 {
	return p.next.Load() - First
}

// Idle returns the number of tokens waiting for reuse.
func (p *Pool) Idle() int {
	return int(p.free.len.Load())
}
