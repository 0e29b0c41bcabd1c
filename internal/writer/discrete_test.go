package writer

import (
	"testing"

	"github.com/mlefebvre1/mxl/internal/region"
)

func newDiscreteRegion(t *testing.T, grainSize, grainCount uint32) *region.DiscreteRegion {
	t.Helper()
	buf := make([]byte, region.DiscreteHeaderSize+region.DiscretePayloadSize(grainSize, grainCount))
	region.CommonOf(buf).Init(1, [16]byte{1}, 0, grainSize/2, grainSize/2)
	return region.InitDiscrete(buf, 25, 1, []uint32{grainSize}, grainCount, grainSize, grainSize)
}

func TestOpenCommitAdvancesHead(t *testing.T) {
	r := newDiscreteRegion(t, 64, 4)
	w := NewDiscreteWriter(r)

	info, payload, err := w.OpenGrain(3)
	if err != nil {
		t.Fatalf("OpenGrain(3): unexpected error %v", err)
	}
	if info.Index() != 3 || len(payload) != 64 {
		t.Fatalf("OpenGrain(3) = index %d, payload len %d", info.Index(), len(payload))
	}
	for i := range payload {
		payload[i] = byte(i)
	}

	if serr, err := w.Commit(3, info.TotalSlices(), 0); serr != nil || err != nil {
		t.Fatalf("Commit(3): serr=%v err=%v", serr, err)
	}
	if r.Common.HeadIndex() != 3 {
		t.Fatalf("HeadIndex after commit = %d, want 3", r.Common.HeadIndex())
	}
	if w.haveOpen {
		t.Fatal("writer still reports an open grain after a full commit")
	}
}

func TestOpenGrainTwiceWithoutCommitFails(t *testing.T) {
	r := newDiscreteRegion(t, 64, 4)
	w := NewDiscreteWriter(r)

	if _, _, err := w.OpenGrain(0); err != nil {
		t.Fatalf("OpenGrain(0): unexpected error %v", err)
	}
	if _, _, err := w.OpenGrain(1); err == nil {
		t.Fatal("OpenGrain(1) while grain 0 is still open: expected error")
	}
}

func TestCancelAllowsReopen(t *testing.T) {
	r := newDiscreteRegion(t, 64, 4)
	w := NewDiscreteWriter(r)

	if _, _, err := w.OpenGrain(0); err != nil {
		t.Fatalf("OpenGrain(0): unexpected error %v", err)
	}
	w.Cancel()
	if _, _, err := w.OpenGrain(1); err != nil {
		t.Fatalf("OpenGrain(1) after cancel: unexpected error %v", err)
	}
}

func TestCommitWrongIndexFails(t *testing.T) {
	r := newDiscreteRegion(t, 64, 4)
	w := NewDiscreteWriter(r)

	if _, _, err := w.OpenGrain(0); err != nil {
		t.Fatalf("OpenGrain(0): unexpected error %v", err)
	}
	if _, err := w.Commit(1, r.TotalSlices(), 0); err == nil {
		t.Fatal("Commit(1) with grain 0 open: expected error")
	}
}

func TestCommitBatchSizeRejected(t *testing.T) {
	r := newDiscreteRegion(t, 64, 4)
	w := NewDiscreteWriter(r)

	if _, _, err := w.OpenGrain(0); err != nil {
		t.Fatalf("OpenGrain(0): unexpected error %v", err)
	}
	serr, err := w.Commit(0, 1, 0)
	if serr == nil || err == nil {
		t.Fatal("Commit with validSlices not a multiple of the batch hint: expected error")
	}
}
