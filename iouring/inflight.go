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
	"sync"
	"sync/atomic"
)

// abandonedPins holds the memory of operations the kernel never completed
// before their ring was closed. It is never released.
var abandonedPins struct {
	mu     sync.Mutex
	groups []*pinGroup
}

type pinGroup struct {
	refs int
	objs []any
}

// inflight keeps Go memory referenced by published entries reachable until
// the kernel reports the final completion for their user data.
// Operations sharing user data share a group and release it together.
type inflight struct {
	mu    sync.Mutex
	ops   map[uint64]*pinGroup
	count atomic.Int64
}

func newInflight() *inflight {
	return &inflight{
		ops: make(map[uint64]*pinGroup),
	}
}

// publish moves the pins of the entries between from and to into the arena.
// Entries without pins are only counted when their user data is already tracked.
func (f *inflight) publish(entries []SubmissionEntry, mask, from, to uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ; from != to; from++ {
		entry := &entries[from&mask]
		userData := entry.sqe.UserData
		group, ok := f.ops[userData]
		if !ok {
			if len(entry.pins) == 0 {
				continue
			}
			group = &pinGroup{}
			f.ops[userData] = group
			f.count.Add(1)
		}
		group.refs++
		group.objs = append(group.objs, entry.pins...)
		clear(entry.pins)
		entry.pins = entry.pins[:0]
	}
}

func (f *inflight) release(userData uint64) bool {
	if f.count.Load() == 0 {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	group, ok := f.ops[userData]
	if !ok {
		return false
	}
	group.refs--
	if group.refs <= 0 {
		delete(f.ops, userData)
		f.count.Add(-1)
	}

	return true
}

func (f *inflight) releaseAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	released := len(f.ops)
	clear(f.ops)
	f.count.Store(0)

	return released
}

// abandon moves every group to abandonedPins and returns how many were moved.
// The count is kept, so len keeps reporting the abandoned operations.
func (f *inflight) abandon() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	abandonedPins.mu.Lock()
	for _, group := range f.ops {
		abandonedPins.groups = append(abandonedPins.groups, group)
	}
	abandonedPins.mu.Unlock()

	abandoned := len(f.ops)
	clear(f.ops)

	return abandoned
}

func (f *inflight) len() int {
	return int(f.count.Load())
}
