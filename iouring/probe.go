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
	"fmt"
	"sort"
	"strings"
)

const (
	probeOpsSize = uint32(OpLast + 1)
	opSupported  = uint16(1 << 0)
)

type (
	Probe struct {
		LastOp uint8
		OpsLen uint8
		Res    uint16
		Res2   [3]uint32
		Ops    [probeOpsSize]probeOp
	}
	probeOp struct {
		Op    uint8
		Res   uint8
		Flags uint16
		Res2  uint32
	}
)

func (p *Probe) IsSupported(op Opcode) bool {
	for i := uint8(0); i < p.OpsLen && int(i) < len(p.Ops); i++ {
		if p.Ops[i].Op != uint8(op) {
			continue
		}

		return p.Ops[i].Flags&opSupported > 0
	}

	return false
}

func probeKernel() (*Probe, error) {
	ring, err := CreateRing(1)
	if err != nil {
		return nil, err
	}
	defer ring.Close()

	return ring.Probe()
}

// CheckAvailableFeatures reports, one line per opcode, whether the running
// kernel supports it.
func CheckAvailableFeatures() (string, error) {
	probe, err := probeKernel()
	if err != nil {
		return "", err
	}

	opCodes := make([]Opcode, 0, len(opCodesMap))
	for opCode := range opCodesMap {
		opCodes = append(opCodes, opCode)
	}
	sort.Slice(opCodes, func(i, j int) bool { return opCodes[i] < opCodes[j] })

	var result strings.Builder
	for _, opCode := range opCodes {
		var status string
		if !probe.IsSupported(opCode) {
			status = " NOT"
		}
		fmt.Fprintf(&result, "%s is%s supported\n", opCode, status)
	}

	return result.String(), nil
}

func IsOpSupported(opCode Opcode) (bool, error) {
	probe, err := probeKernel()
	if err != nil {
		return false, err
	}

	return probe.IsSupported(opCode), nil
}
