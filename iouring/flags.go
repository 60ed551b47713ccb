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
	"strings"
)

// SetupFlags are passed to io_uring_setup and change ring-wide behaviour.
type SetupFlags uint32

const (
	SetupIOPoll SetupFlags = 1 << iota
	SetupSQPoll
	SetupSQAff
	SetupCQSize
	SetupClamp
	SetupAttachWQ
	SetupRDisabled
	SetupSubmitAll
	SetupCoopTaskrun
	SetupTaskrunFlag
	SetupSQE128
	SetupCQE32
	SetupSingleIssuer
	SetupDeferTaskrun
	SetupNoMmap
	SetupRegisteredFdOnly
	SetupNoSQArray

	setupLast
)

const setupAll = setupLast - 1

var setupFlagNames = []string{
	"IORING_SETUP_IOPOLL",
	"IORING_SETUP_SQPOLL",
	"IORING_SETUP_SQ_AFF",
	"IORING_SETUP_CQSIZE",
	"IORING_SETUP_CLAMP",
	"IORING_SETUP_ATTACH_WQ",
	"IORING_SETUP_R_DISABLED",
	"IORING_SETUP_SUBMIT_ALL",
	"IORING_SETUP_COOP_TASKRUN",
	"IORING_SETUP_TASKRUN_FLAG",
	"IORING_SETUP_SQE128",
	"IORING_SETUP_CQE32",
	"IORING_SETUP_SINGLE_ISSUER",
	"IORING_SETUP_DEFER_TASKRUN",
	"IORING_SETUP_NO_MMAP",
	"IORING_SETUP_REGISTERED_FD_ONLY",
	"IORING_SETUP_NO_SQARRAY",
}

func (f SetupFlags) Union(other SetupFlags) SetupFlags     { return f | other }
func (f SetupFlags) Intersect(other SetupFlags) SetupFlags { return f & other }
func (f SetupFlags) Contains(other SetupFlags) bool        { return f&other == other }
func (f SetupFlags) Raw() uint32                           { return uint32(f) }

// Unknown returns the bits that do not name any setup flag.
func (f SetupFlags) Unknown() SetupFlags { return f &^ setupAll }

func (f SetupFlags) String() string {
	return flagsString(uint64(f), setupFlagNames)
}

// Features are reported by the kernel at ring creation.
type Features uint32

const (
	FeatSingleMMap Features = 1 << iota
	FeatNoDrop
	FeatSubmitStable
	FeatRWCurPos
	FeatCurPersonality
	FeatFastPoll
	FeatPoll32Bits
	FeatSQPollNonfixed
	FeatExtArg
	FeatNativeWorkers
	FeatRsrcTags
	FeatCQESkip
	FeatLinkedFile
	FeatRegRegRing
	FeatRecvSendBundle
	FeatMinTimeout
)

var featureNames = []string{
	"IORING_FEAT_SINGLE_MMAP",
	"IORING_FEAT_NODROP",
	"IORING_FEAT_SUBMIT_STABLE",
	"IORING_FEAT_RW_CUR_POS",
	"IORING_FEAT_CUR_PERSONALITY",
	"IORING_FEAT_FAST_POLL",
	"IORING_FEAT_POLL_32BITS",
	"IORING_FEAT_SQPOLL_NONFIXED",
	"IORING_FEAT_EXT_ARG",
	"IORING_FEAT_NATIVE_WORKERS",
	"IORING_FEAT_RSRC_TAGS",
	"IORING_FEAT_CQE_SKIP",
	"IORING_FEAT_LINKED_FILE",
	"IORING_FEAT_REG_REG_RING",
	"IORING_FEAT_RECVSEND_BUNDLE",
	"IORING_FEAT_MIN_TIMEOUT",
}

func (f Features) Union(other Features) Features     { return f | other }
func (f Features) Intersect(other Features) Features { return f & other }
func (f Features) Contains(other Features) bool      { return f&other == other }
func (f Features) Raw() uint32                       { return uint32(f) }

// Missing returns the features of want that f does not have.
func (f Features) Missing(want Features) Features { return want &^ f }

func (f Features) String() string {
	return flagsString(uint64(f), featureNames)
}

// SQEFlags are per-entry flags stored in the flags byte of a submission entry.
type SQEFlags uint8

const (
	SQEFixedFile SQEFlags = 1 << iota
	SQEIODrain
	SQEIOLink
	SQEIOHardlink
	SQEAsync
	SQEBufferSelect
	SQECQESkipSuccess
)

var sqeFlagNames = []string{
	"IOSQE_FIXED_FILE",
	"IOSQE_IO_DRAIN",
	"IOSQE_IO_LINK",
	"IOSQE_IO_HARDLINK",
	"IOSQE_ASYNC",
	"IOSQE_BUFFER_SELECT",
	"IOSQE_CQE_SKIP_SUCCESS",
}

func (f SQEFlags) Union(other SQEFlags) SQEFlags     { return f | other }
func (f SQEFlags) Intersect(other SQEFlags) SQEFlags { return f & other }
func (f SQEFlags) Contains(other SQEFlags) bool      { return f&other == other }
func (f SQEFlags) Raw() uint8                        { return uint8(f) }

func (f SQEFlags) String() string {
	return flagsString(uint64(f), sqeFlagNames)
}

// CQEFlags describe auxiliary completion metadata. The upper 16 bits of the
// raw kernel value carry a buffer id and are not part of the set.
type CQEFlags uint32

const (
	CQEFBuffer CQEFlags = 1 << iota
	CQEFMore
	CQEFSockNonempty
	CQEFNotif
	CQEFBufMore

	cqeFlagsLast
)

const (
	CQEBufferShift uint32 = 16

	cqeFlagsAll = cqeFlagsLast - 1
)

var cqeFlagNames = []string{
	"IORING_CQE_F_BUFFER",
	"IORING_CQE_F_MORE",
	"IORING_CQE_F_SOCK_NONEMPTY",
	"IORING_CQE_F_NOTIF",
	"IORING_CQE_F_BUF_MORE",
}

// CQEFlagsFromRaw drops every bit that is not a known completion flag.
func CQEFlagsFromRaw(raw uint32) CQEFlags {
	return CQEFlags(raw) & cqeFlagsAll
}

func (f CQEFlags) Union(other CQEFlags) CQEFlags     { return f | other }
func (f CQEFlags) Intersect(other CQEFlags) CQEFlags { return f & other }
func (f CQEFlags) Contains(other CQEFlags) bool      { return f&other == other }
func (f CQEFlags) Raw() uint32                       { return uint32(f) }

func (f CQEFlags) String() string {
	return flagsString(uint64(f), cqeFlagNames)
}

func flagsString(flags uint64, names []string) string {
	if flags == 0 {
		return "0"
	}
	flagsStrings := make([]string, 0, len(names))
	for bit, name := range names {
		if flags&(1<<bit) != 0 {
			flagsStrings = append(flagsStrings, name)
			flags &^= 1 << bit
		}
	}
	if flags != 0 {
		flagsStrings = append(flagsStrings, fmt.Sprintf("%#x", flags))
	}
	return strings.Join(flagsStrings, " | ")
}
