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
	"testing"

	. "github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()

	var (
		resourceErr *ResourceError
		configErr   *ConfigError
	)
	switch {
	case errors.As(err, &resourceErr) && (errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM)):
		t.Skipf("io_uring is not available: %v", err)
	case errors.As(err, &configErr) && configErr.Errno != 0:
		t.Skipf("kernel rejected ring configuration: %v", err)
	}
}

func newTestRing(t *testing.T, entries uint32, opts ...ConfigOption) *Ring {
	t.Helper()

	ring, err := CreateRing(entries, opts...)
	skipIfUnavailable(t, err)
	NoError(t, err)
	t.Cleanup(func() {
		NoError(t, ring.Close())
	})

	return ring
}

func queueNOPs(t *testing.T, ring *Ring, number int, offset int) {
	t.Helper()

	NoError(t, ring.WithSubmissionQueue(func(sq *SubmissionQueue) error {
		for i := 0; i < number; i++ {
			entry := sq.PrepareEntry()
			NotNil(t, entry)
			entry.PrepareNop().SetUserData(uint64(i + offset))
		}
		submitted, err := sq.SubmitAndWait(uint32(number))
		Equal(t, uint(number), submitted)

		return err
	}))
}

func drain(t *testing.T, ring *Ring) []CompletionEntry {
	t.Helper()

	var entries []CompletionEntry
	NoError(t, ring.WithCompletionQueue(func(cq *CompletionQueue) error {
		for {
			entry, ok := cq.PeekEntry()
			if !ok {
				return nil
			}
			entries = append(entries, entry)
		}
	}))

	return entries
}
