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

package token

import "sync/atomic"

type node struct {
	value uint64
	next  *node
}

// stack is a lock-free Treiber stack of tokens. Popped nodes are never
// reused, so the garbage collector rules out ABA.
type stack struct {
	top atomic.Pointer[node]
	len atomic.Int64
}

func (s *stack) pop() (uint64, bool) {
	for {
		top := s.top.Load()
		if top == nil {
			return 0, false
		}

		if s.top.CompareAndSwap(top, top.next) {
			s.len.Add(-1)

			return top.value, true
		}
	}
}

func (s *stack) push(value uint64) {
	item := &node{value: value}

	for {
		item.next = s.top.Load()

		if s.top.CompareAndSwap(item.next, item) {
			s.len.Add(1)

			return
		}
	}
}
