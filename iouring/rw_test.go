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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func createTempFile(t *testing.T) *os.File {
	t.Helper()

	file, err := os.Create(filepath.Join(t.TempDir(), "ring"))
	NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	return file
}

func submitOne(t *testing.T, ring *Ring, prepare func(*SubmissionEntry)) CompletionEntry {
	t.Helper()

	NoError(t, ring.WithSubmissionQueue(func(sq *SubmissionQueue) error {
		entry := sq.PrepareEntry()
		NotNil(t, entry)
		prepare(entry)
		submitted, err := sq.SubmitAndWait(1)
		Equal(t, uint(1), submitted)

		return err
	}))

	entries := drain(t, ring)
	Len(t, entries, 1)

	return entries[0]
}

func TestWriteReadRoundTrip(t *testing.T) {
	ring := newTestRing(t, 4)
	file := createTempFile(t)
	fd := int(file.Fd())

	payload := bytes.Repeat([]byte{69}, 128)
	NoError(t, ring.WithSubmissionQueue(func(sq *SubmissionQueue) error {
		sq.PrepareEntry().PrepareWrite(fd, payload, 0).SetUserData(1)
		_, err := sq.SubmitAndWait(1)

		return err
	}))
	Equal(t, 1, ring.Inflight())

	entries := drain(t, ring)
	Len(t, entries, 1)
	Equal(t, uint64(1), entries[0].UserData)
	Equal(t, int32(128), entries[0].Res)
	Equal(t, 0, ring.Inflight())

	buffer := make([]byte, 128)
	entry := submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareRead(fd, buffer, 0).SetUserData(2)
	})
	Equal(t, uint64(2), entry.UserData)
	Equal(t, int32(128), entry.Res)
	Equal(t, payload, buffer)
	Equal(t, 0, ring.Inflight())
}

func TestVectoredRoundTrip(t *testing.T) {
	ring := newTestRing(t, 4)
	file := createTempFile(t)
	fd := int(file.Fd())

	entry := submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareWritev(fd, [][]byte{[]byte("hello "), []byte("io_uring")}, 0).SetUserData(1)
	})
	Equal(t, int32(14), entry.Res)

	first, second := make([]byte, 6), make([]byte, 8)
	entry = submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareReadv(fd, [][]byte{first, second}, 0).SetUserData(2)
	})
	Equal(t, int32(14), entry.Res)
	Equal(t, "hello ", string(first))
	Equal(t, "io_uring", string(second))

	entry = submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareFsync(fd, FsyncDatasync).SetUserData(3)
	})
	NoError(t, entry.Err())
	Equal(t, OpFsync.String(), "IORING_OP_FSYNC")
}

func TestNegativeResultIsData(t *testing.T) {
	ring := newTestRing(t, 4)

	entry := submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareRead(-1, make([]byte, 8), 0).SetUserData(9)
	})
	Equal(t, uint64(9), entry.UserData)
	Equal(t, -int32(unix.EBADF), entry.Res)
	ErrorIs(t, entry.Err(), unix.EBADF)
	Equal(t, 0, ring.Inflight())
}

func TestCloseOperation(t *testing.T) {
	ring := newTestRing(t, 4)
	file := createTempFile(t)

	fd, err := unix.Dup(int(file.Fd()))
	NoError(t, err)

	entry := submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareClose(fd)
	})
	NoError(t, entry.Err())
	ErrorIs(t, unix.Close(fd), unix.EBADF)
}

func TestTimeout(t *testing.T) {
	ring := newTestRing(t, 4)

	start := time.Now()
	entry := submitOne(t, ring, func(entry *SubmissionEntry) {
		entry.PrepareTimeout(20*time.Millisecond, 0, 0).SetUserData(5)
	})
	GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	Equal(t, uint64(5), entry.UserData)
	ErrorIs(t, entry.Err(), unix.ETIME)
	Equal(t, 0, ring.Inflight())
}
