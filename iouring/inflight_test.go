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

	. "github.com/stretchr/testify/require"
)

func newTestEntries(number int) []SubmissionEntry {
	sqes := make([]SubmissionQueueEntry, number)
	entries := make([]SubmissionEntry, number)
	for i := range entries {
		entries[i].sqe = &sqes[i]
	}

	return entries
}

func TestInflightPinnedEntries(t *testing.T) {
	arena := newInflight()
	entries := newTestEntries(4)

	entries[0].PrepareNop().SetUserData(1)
	entries[1].PrepareWrite(3, make([]byte, 16), 0).SetUserData(2)
	entries[2].PrepareRead(3, make([]byte, 16), 0).SetUserData(3)
	entries[3].PrepareNop().SetUserData(4)

	arena.publish(entries, 3, 0, 4)
	Equal(t, 2, arena.len())
	for i := range entries {
		Empty(t, entries[i].pins)
	}

	False(t, arena.release(1))
	True(t, arena.release(2))
	Equal(t, 1, arena.len())
	False(t, arena.release(2))
	True(t, arena.release(3))
	Equal(t, 0, arena.len())
}

func TestInflightSharedUserData(t *testing.T) {
	arena := newInflight()
	entries := newTestEntries(2)

	entries[0].PrepareWrite(3, make([]byte, 8), 0).SetUserData(7)
	entries[1].PrepareNop().SetUserData(7)
	arena.publish(entries, 1, 0, 2)
	Equal(t, 1, arena.len())

	True(t, arena.release(7))
	Equal(t, 1, arena.len())
	True(t, arena.release(7))
	Equal(t, 0, arena.len())
}

func TestInflightWrapsAround(t *testing.T) {
	arena := newInflight()
	entries := newTestEntries(2)

	entries[1].PrepareTimeout(0, 0, 0).SetUserData(10)
	entries[0].PrepareWritev(3, [][]byte{make([]byte, 4), make([]byte, 4)}, 0).SetUserData(11)
	arena.publish(entries, 1, 1, 3)
	Equal(t, 2, arena.len())

	Equal(t, 2, arena.releaseAll())
	Equal(t, 0, arena.len())
	False(t, arena.release(10))
}

func TestPrepareOverwritesPins(t *testing.T) {
	entries := newTestEntries(1)
	entry := &entries[0]

	entry.PrepareWrite(3, make([]byte, 8), 0)
	Len(t, entry.pins, 1)
	entry.PrepareReadv(3, [][]byte{make([]byte, 8)}, 0)
	Len(t, entry.pins, 2)
	entry.PrepareNop()
	Empty(t, entry.pins)
}

func TestInflightAbandon(t *testing.T) {
	arena := newInflight()
	entries := newTestEntries(2)
	buffer := make([]byte, 16)

	entries[0].PrepareRead(3, buffer, 0).SetUserData(21)
	entries[1].PrepareNop().SetUserData(22)
	arena.publish(entries, 1, 0, 2)

	Equal(t, 1, arena.abandon())
	Equal(t, 1, arena.len())
	True(t, isAbandoned(buffer))
	False(t, arena.release(21))
}
