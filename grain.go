package mxl

import "github.com/mlefebvre1/mxl/internal/region"

// GrainFlagInvalid marks a grain as producer-signalled corrupt data.
const GrainFlagInvalid = region.GrainFlagInvalid

// GrainInfo is a snapshot of one grain slot's metadata, returned alongside
// its payload by FlowReader.GetGrain and FlowWriter.OpenGrain.
type GrainInfo struct {
	Index       uint64
	Flags       uint32
	ValidSlices uint32
	TotalSlices uint32
	GrainSize   uint32
	CommitTime  uint64 // TAI ns at last commit
}

func snapshotGrain(g region.GrainInfo) GrainInfo {
	return GrainInfo{
		Index:       g.Index(),
		Flags:       g.Flags(),
		ValidSlices: g.ValidSlices(),
		TotalSlices: g.TotalSlices(),
		GrainSize:   g.GrainSize(),
		CommitTime:  g.CommitTime(),
	}
}
