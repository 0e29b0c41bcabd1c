package writer

import (
	"testing"

	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/timing"
)

func newContinuousRegion(t *testing.T, bufLen, channels, wordSize uint32) *region.ContinuousRegion {
	t.Helper()
	buf := make([]byte, region.ContinuousHeaderSize+region.ContinuousPayloadSize(wordSize, bufLen, channels))
	region.CommonOf(buf).Init(2, [16]byte{2}, 0, 1, 1)
	return region.InitContinuous(buf, 48000, 1, channels, bufLen, wordSize)
}

func TestContinuousOpenCommitAdvancesHead(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	w := NewContinuousWriter(r)

	slices, err := w.OpenSamples(0, 4)
	if err != nil {
		t.Fatalf("OpenSamples(0, 4): unexpected error %v", err)
	}
	if len(slices) != 2 {
		t.Fatalf("OpenSamples returned %d channel slices, want 2", len(slices))
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: unexpected error %v", err)
	}
	if r.Common.HeadIndex() != 3 {
		t.Fatalf("HeadIndex after committing [0,4) = %d, want 3", r.Common.HeadIndex())
	}
}

func TestContinuousAppendMustFollowPreviousEnd(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	w := NewContinuousWriter(r)

	if _, err := w.OpenSamples(0, 4); err != nil {
		t.Fatalf("OpenSamples(0, 4): unexpected error %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: unexpected error %v", err)
	}

	if _, err := w.OpenSamples(4, 4); err != nil {
		t.Fatalf("OpenSamples(4, 4) appending after [0,4): unexpected error %v", err)
	}
	w.Cancel()

	if _, err := w.OpenSamples(2, 4); err == nil {
		t.Fatal("OpenSamples(2, 4) starts inside the committed range ending at 3: expected error")
	}
}

func TestContinuousOpenTwiceWithoutCommitFails(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	w := NewContinuousWriter(r)

	if _, err := w.OpenSamples(0, 4); err != nil {
		t.Fatalf("OpenSamples(0, 4): unexpected error %v", err)
	}
	if _, err := w.OpenSamples(4, 4); err == nil {
		t.Fatal("OpenSamples(4, 4) while [0,4) is still open: expected error")
	}
}

func TestContinuousFreshWriterAcceptsAnyStart(t *testing.T) {
	r := newContinuousRegion(t, 8, 2, 4)
	w := NewContinuousWriter(r)
	if w.previousEndIndex != timing.UndefinedIndex {
		t.Fatalf("fresh writer previousEndIndex = %d, want UndefinedIndex", w.previousEndIndex)
	}

	if _, err := w.OpenSamples(100, 4); err != nil {
		t.Fatalf("OpenSamples(100, 4) on a fresh writer: unexpected error %v", err)
	}
}
