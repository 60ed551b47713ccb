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

package bench

import (
	"errors"

	"github.com/pawelgaczynski/jajo/iouring"
)

var waitForArray = []uint32{
	1,
	32,
	64,
	96,
	128,
	256,
	384,
	512,
	768,
	1024,
	1536,
	2048,
	3072,
	4096,
	5120,
	6144,
	7168,
	8192,
	10240,
}

// batchSubmitter adapts the number of completions waited for on each submit
// to the number reaped by the previous round.
type batchSubmitter struct {
	waitForIndex int
	waitFor      uint32
}

func newBatchSubmitter() *batchSubmitter {
	s := &batchSubmitter{}
	s.waitFor = waitForArray[s.waitForIndex]

	return s
}

func isSkippable(err error) bool {
	return errors.Is(err, iouring.ErrAgain) || errors.Is(err, iouring.ErrInterrupted) ||
		errors.Is(err, iouring.ErrBusy)
}

// submit publishes the prepared entries and waits for completions, never
// for more than inflight of them.
func (s *batchSubmitter) submit(sq *iouring.SubmissionQueue, inflight int) error {
	_, err := sq.SubmitAndWait(min(s.waitFor, uint32(inflight)))
	if isSkippable(err) {
		s.backOff()

		return errSkippable
	}

	return err
}

func (s *batchSubmitter) backOff() {
	if s.waitForIndex != 0 {
		s.waitForIndex--
		s.waitFor = waitForArray[s.waitForIndex]
	}
}

func (s *batchSubmitter) advance(n int) {
	s.waitForIndex = 0
	for i := 1; i < len(waitForArray); i++ {
		if waitForArray[i] > uint32(n) {
			break
		}
		s.waitForIndex = i
	}
	s.waitFor = waitForArray[s.waitForIndex]
}
