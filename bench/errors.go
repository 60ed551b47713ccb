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
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid benchmark config")
	ErrOpFailed      = errors.New("operation failed")

	errSkippable = errors.New("skippable")
)

func errInvalidConfig(field string, value any) error {
	return fmt.Errorf("%w, %s: %v", ErrInvalidConfig, field, value)
}

func errOpFailed(op Op, userData uint64, err error) error {
	return fmt.Errorf("%w, op: %s, token: %d: %w", ErrOpFailed, op, userData, err)
}
