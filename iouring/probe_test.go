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

func TestCheckAvailableFeatures(t *testing.T) {
	availableFeatures, err := CheckAvailableFeatures()
	skipIfUnavailable(t, err)
	Nil(t, err)
	Contains(t, availableFeatures, "IORING_OP_NOP is supported")
	Contains(t, availableFeatures, "IORING_OP_READV is supported")
	Contains(t, availableFeatures, "IORING_OP_WRITEV is supported")
	Contains(t, availableFeatures, "IORING_OP_FSYNC is supported")
	Contains(t, availableFeatures, "IORING_OP_TIMEOUT is supported")
	Contains(t, availableFeatures, "IORING_OP_CLOSE is supported")
	Contains(t, availableFeatures, "IORING_OP_READ is supported")
	Contains(t, availableFeatures, "IORING_OP_WRITE is supported")
}

func TestIsOpSupported(t *testing.T) {
	for _, opCode := range []Opcode{
		OpNop,
		OpReadv,
		OpWritev,
		OpFsync,
		OpTimeout,
		OpClose,
		OpRead,
		OpWrite,
	} {
		supported, err := IsOpSupported(opCode)
		skipIfUnavailable(t, err)
		Nil(t, err)
		True(t, supported, opCode.String())
	}

	supported, err := IsOpSupported(Opcode(255))
	Nil(t, err)
	False(t, supported)
}

func TestOpcodeString(t *testing.T) {
	Equal(t, "IORING_OP_NOP", OpNop.String())
	Equal(t, "IORING_OP_MSG_RING", OpMsgRing.String())
	Equal(t, "IORING_OP_UNKNOWN(200)", Opcode(200).String())
}
