package reader

import (
	"testing"

	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/status"
)

func newContinuousRegion(t *testing.T, bufLen, channels, wordSize uint32) *region.ContinuousRegion {
	t.Helper()
	buf := make([]byte, region.ContinuousHeaderSize+region.ContinuousPayloadSize(wordSize, bufLen, channels))
	region.CommonOf(buf).Init(2, [16]byte{2}, 0, 1, 1)
	return region.InitContinuous(buf, 48000, 1, channels, bufLen, wordSize)
}

func TestGetSamplesTooEarly(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	c := NewContinuousReader(r, nil)

	if _, serr := c.GetSamples(3, 4); serr == nil || serr.Code != status.OutOfRangeTooEarly {
		t.Fatalf("GetSamples before any commit: err=%v, want OutOfRangeTooEarly", serr)
	}
}

func TestGetSamplesWithinWindow(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	r.Common.AdvanceHeadIndex(5)

	c := NewContinuousReader(r, nil)
	slices, serr := c.GetSamples(2, 4)
	if serr != nil {
		t.Fatalf("GetSamples(2, 4): unexpected error %v", serr)
	}
	if len(slices) != 2 {
		t.Fatalf("GetSamples returned %d channel slices, want 2", len(slices))
	}
	totalBytes := len(slices[0].First) + len(slices[0].Second)
	if totalBytes != 4*4 {
		t.Fatalf("channel 0 fragment bytes = %d, want %d", totalBytes, 4*4)
	}
}

func TestGetSamplesPastSafetyWindowTooLate(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	r.Common.AdvanceHeadIndex(20)

	c := NewContinuousReader(r, nil)
	// bufferLength=8, minIndex=headIndex+1-bufferLength=13; startIndex=5
	// has long since fallen off the back of the ring.
	if _, serr := c.GetSamples(5, 4); serr == nil || serr.Code != status.OutOfRangeTooLate {
		t.Fatalf("GetSamples(5, 4) after head=20: err=%v, want OutOfRangeTooLate", serr)
	}
}

func TestGetSamplesFlowInvalid(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	r.Common.AdvanceHeadIndex(5)
	r.Common.SetInvalid()

	c := NewContinuousReader(r, nil)
	if _, serr := c.GetSamples(2, 4); serr == nil || serr.Code != status.FlowInvalid {
		t.Fatalf("GetSamples on invalidated flow: err=%v, want FlowInvalid", serr)
	}
}
