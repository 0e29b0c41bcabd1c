package mxl

import (
	"github.com/google/uuid"

	"github.com/mlefebvre1/mxl/internal/flow"
	"github.com/mlefebvre1/mxl/internal/rational"
)

// FlowFormat identifies which kind of media a flow carries.
type FlowFormat = flow.Format

const (
	FormatUnspecified = flow.FormatUnspecified
	FormatVideo       = flow.FormatVideo
	FormatAudio       = flow.FormatAudio
	FormatData        = flow.FormatData
	FormatMux         = flow.FormatMux
)

// Rate is a reduced rational rate, e.g. 60000/1001 or 48000/1.
type Rate = rational.Rate

// UndefinedIndex is the sentinel returned when an index does not apply.
const UndefinedIndex = ^uint64(0)

// FlowInfo reports a flow's identity and the header fields common to
// every format, as of the moment it was read. Rate is set for every
// format; GrainCount, ChannelCount and BufferLength are zero-valued for
// formats that don't carry them (e.g. BufferLength == 0 for a discrete flow).
type FlowInfo struct {
	ID              uuid.UUID
	Format          FlowFormat
	Flags           uint32
	HeadIndex       uint64
	LastWriteTime   uint64 // TAI ns; 0 if the writer has never committed
	LastReadTime    uint64 // TAI ns; 0 if no reader has ever read from this region
	CommitBatchHint uint32
	SyncBatchHint   uint32

	Rate         Rate   // grain rate (discrete) or sample rate (continuous)
	GrainCount   uint32 // discrete ring depth; 0 for continuous flows
	ChannelCount uint32 // continuous channel count; 0 for discrete flows
	BufferLength uint32 // continuous per-channel ring length; 0 for discrete flows
}
