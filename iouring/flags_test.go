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

func TestFlagBitPositions(t *testing.T) {
	Equal(t, uint32(1), SetupIOPoll.Raw())
	Equal(t, uint32(1<<3), SetupCQSize.Raw())
	Equal(t, uint32(1<<10), SetupSQE128.Raw())
	Equal(t, uint32(1<<16), SetupNoSQArray.Raw())
	Equal(t, uint32(1), FeatSingleMMap.Raw())
	Equal(t, uint32(1<<8), FeatExtArg.Raw())
	Equal(t, uint32(1<<15), FeatMinTimeout.Raw())
	Equal(t, uint8(1<<2), SQEIOLink.Raw())
	Equal(t, uint8(1<<6), SQECQESkipSuccess.Raw())
	Equal(t, uint32(1<<1), CQEFMore.Raw())
	Equal(t, uint32(1<<4), CQEFBufMore.Raw())
	Equal(t, uint32(16), CQEBufferShift)
}

func TestFlagSetOperations(t *testing.T) {
	flags := SetupSQPoll.Union(SetupSQAff)
	True(t, flags.Contains(SetupSQPoll))
	True(t, flags.Contains(SetupSQPoll.Union(SetupSQAff)))
	False(t, flags.Contains(SetupSQPoll.Union(SetupIOPoll)))
	Equal(t, SetupSQAff, flags.Intersect(SetupSQAff.Union(SetupClamp)))
	Equal(t, SetupFlags(0), flags.Unknown())
	Equal(t, SetupFlags(1<<20), flags.Union(SetupFlags(1<<20)).Unknown())

	features := FeatSingleMMap.Union(FeatNoDrop)
	Equal(t, FeatExtArg, features.Missing(FeatNoDrop.Union(FeatExtArg)))
	Equal(t, Features(0), features.Missing(FeatSingleMMap))

	sqeFlags := SQEIOLink.Union(SQEAsync)
	True(t, sqeFlags.Contains(SQEAsync))
	Equal(t, SQEIOLink, sqeFlags.Intersect(SQEIOLink.Union(SQEIODrain)))
}

func TestFlagsString(t *testing.T) {
	Equal(t, "0", SetupFlags(0).String())
	Equal(t, "IORING_SETUP_SQPOLL | IORING_SETUP_SQ_AFF", SetupSQPoll.Union(SetupSQAff).String())
	Equal(t, "IORING_SETUP_CLAMP | 0x100000", SetupClamp.Union(SetupFlags(1<<20)).String())
	Equal(t, "IORING_FEAT_SINGLE_MMAP | IORING_FEAT_EXT_ARG", FeatSingleMMap.Union(FeatExtArg).String())
	Equal(t, "IOSQE_IO_LINK", SQEIOLink.String())
	Equal(t, "IORING_CQE_F_BUFFER | IORING_CQE_F_MORE", CQEFBuffer.Union(CQEFMore).String())
}

func TestCQEFlagsFromRawTruncates(t *testing.T) {
	Equal(t, CQEFMore, CQEFlagsFromRaw(0xabcd0002))
	Equal(t, CQEFlags(0), CQEFlagsFromRaw(1<<10))
	Equal(t, CQEFBuffer.Union(CQEFNotif), CQEFlagsFromRaw(0x00070009))
}
