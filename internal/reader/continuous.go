package reader

import (
	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/status"
	"github.com/mlefebvre1/mxl/internal/timing"
)

// ContinuousReader reads sample ranges from a mapped continuous region.
type ContinuousReader struct {
	region    *region.ContinuousRegion
	validFunc func() bool
}

// NewContinuousReader wraps r with a liveness check, mirroring
// NewDiscreteReader.
func NewContinuousReader(r *region.ContinuousRegion, validFunc func() bool) *ContinuousReader {
	return &ContinuousReader{region: r, validFunc: validFunc}
}

func (c *ContinuousReader) isValid() bool {
	if c.validFunc == nil {
		return !c.region.Common.IsInvalid()
	}
	return c.validFunc()
}

// WrappedSlice is one channel's view of a requested sample range: up to
// two contiguous byte fragments, split where the range crosses the ring
// boundary.
type WrappedSlice struct {
	First, Second []byte
}

// GetSamples returns, for every channel, the (at most two) contiguous byte
// fragments covering the count samples [startIndex, startIndex+count-1].
// TOO_EARLY if the range extends past headIndex, TOO_LATE if startIndex has
// already fallen off the back of the ring.
//
// Only the most recent half of the buffer is guaranteed race-free against a
// writer wrapping the ring: a reader asking for samples older than
// headIndex-bufferLength/2 may observe a write in progress (a torn sample)
// rather than the committed value, even though the index is still within
// the TOO_LATE cutoff above. Callers that need race-free reads must keep
// startIndex within the newer half of the ring themselves.
func (c *ContinuousReader) GetSamples(startIndex uint64, count uint32) ([]WrappedSlice, *status.Error) {
	if !c.isValid() {
		return nil, status.New(status.FlowInvalid)
	}

	headIndex := c.region.Common.HeadIndex()
	endIndex := startIndex + uint64(count) - 1
	if endIndex > headIndex {
		return nil, status.New(status.OutOfRangeTooEarly)
	}

	bufferLength := uint64(c.region.BufferLength())
	minIndex := uint64(0)
	if headIndex+1 > bufferLength {
		minIndex = headIndex + 1 - bufferLength
	}
	if startIndex < minIndex {
		return nil, status.New(status.OutOfRangeTooLate)
	}

	startOffset := uint32(startIndex % bufferLength)

	slices := make([]WrappedSlice, c.region.ChannelCount())
	for ch := uint32(0); ch < c.region.ChannelCount(); ch++ {
		first, second := c.region.Fragments(ch, startOffset, count)
		slices[ch] = WrappedSlice{First: first, Second: second}
	}

	c.region.Common.SetLastReadTime(timing.Now())
	return slices, nil
}
