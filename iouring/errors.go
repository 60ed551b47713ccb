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
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrRingClosed occurs when a closed ring is used.
	ErrRingClosed = errors.New("ring closed")
	// ErrViewActive occurs when a queue view is requested while another view of the same side is live.
	ErrViewActive = errors.New("queue view already active")
	// ErrTimerExpired matches an IoError caused by ETIME.
	ErrTimerExpired = errors.New("timer expired")
	// ErrInterrupted matches an IoError caused by EINTR.
	ErrInterrupted = errors.New("interrupted system call")
	// ErrAgain matches an IoError caused by EAGAIN.
	ErrAgain = errors.New("try again")
	// ErrBusy matches an IoError caused by EBUSY, the completion ring needs to be drained.
	ErrBusy = errors.New("completion ring busy")
)

// ConfigError reports an invalid or unsupported ring configuration.
// It is never retryable without changing the configuration.
type ConfigError struct {
	Reason string
	Errno  unix.Errno
}

func (e *ConfigError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("invalid ring config: %s: %s", e.Reason, e.Errno.Error())
	}

	return "invalid ring config: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}

	return e.Errno
}

// ResourceError reports that the kernel refused to allocate or release ring resources.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// IoError wraps a negative status returned by io_uring_enter.
type IoError struct {
	Op    string
	Errno unix.Errno
}

func (e *IoError) Error() string {
	return e.Op + ": " + e.Errno.Error()
}

func (e *IoError) Unwrap() error {
	return e.Errno
}

func (e *IoError) Is(target error) bool {
	switch target {
	case ErrTimerExpired:
		return e.Errno == unix.ETIME
	case ErrInterrupted:
		return e.Errno == unix.EINTR
	case ErrAgain:
		return e.Errno == unix.EAGAIN
	case ErrBusy:
		return e.Errno == unix.EBUSY
	}

	return false
}

func configError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func convertErrno(op string, errno unix.Errno) error {
	if errno == 0 {
		return nil
	}

	return &IoError{Op: op, Errno: errno}
}

func setupError(errno unix.Errno) error {
	switch errno {
	case unix.EINVAL, unix.EOPNOTSUPP:
		return &ConfigError{Reason: "rejected by io_uring_setup", Errno: errno}
	default:
		return &ResourceError{Op: "io_uring_setup", Err: errno}
	}
}
