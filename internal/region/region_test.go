package region

import "testing"

func TestSlotStrideCacheLineAligned(t *testing.T) {
	cases := []uint32{1, 63, 64, 65, 5_529_600, 8_298_720 / 2}
	for _, grainSize := range cases {
		stride := SlotStride(grainSize)
		if stride%cacheLineSize != 0 {
			t.Errorf("SlotStride(%d) = %d, not a multiple of %d", grainSize, stride, cacheLineSize)
		}
		if stride < GrainInfoSize+grainSize {
			t.Errorf("SlotStride(%d) = %d, smaller than header+payload", grainSize, stride)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{
		0:    128,
		1:    128,
		127:  128,
		128:  128,
		129:  256,
		200:  256,
		1000: 1024,
	}
	for in, want := range cases {
		if got := NextPowerOfTwo(in); got != want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDiscreteHeaderRoundTrip(t *testing.T) {
	grainSize := uint32(5_529_600)
	grainCount := uint32(4)
	buf := make([]byte, DiscreteHeaderSize+DiscretePayloadSize(grainSize, grainCount))

	common := newCommonHeader(buf)
	common.Init(1, [16]byte{1, 2, 3}, 42, 270, 270)

	r := InitDiscrete(buf, 60000, 1001, []uint32{5120}, grainCount, grainSize, 1080)
	if r.GrainRateNum() != 60000 || r.GrainRateDen() != 1001 {
		t.Fatalf("grain rate = %d/%d, want 60000/1001", r.GrainRateNum(), r.GrainRateDen())
	}
	if r.GrainCount() != grainCount || r.GrainSize() != grainSize {
		t.Fatalf("grainCount/grainSize = %d/%d, want %d/%d", r.GrainCount(), r.GrainSize(), grainCount, grainSize)
	}
	if got := r.SliceSizes(); len(got) != 1 || got[0] != 5120 {
		t.Fatalf("sliceSizes = %v, want [5120]", got)
	}

	reopened := OpenDiscrete(buf)
	if reopened.GrainSize() != grainSize {
		t.Fatalf("reopened grainSize = %d, want %d", reopened.GrainSize(), grainSize)
	}
	if err := reopened.Common.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDiscreteSlotNonOverlapping(t *testing.T) {
	grainSize := uint32(64)
	grainCount := uint32(3)
	buf := make([]byte, DiscreteHeaderSize+DiscretePayloadSize(grainSize, grainCount))
	newCommonHeader(buf).Init(1, [16]byte{}, 0, 1, 1)
	r := InitDiscrete(buf, 25, 1, []uint32{64}, grainCount, grainSize, 1)

	seen := map[int]bool{}
	for i := uint32(0); i < grainCount; i++ {
		p := r.Payload(i)
		if len(p) != int(grainSize) {
			t.Fatalf("slot %d payload len = %d, want %d", i, len(p), grainSize)
		}
		p[0] = byte(i + 1)
		start := r.slotOffset(i)
		if seen[start] {
			t.Fatalf("slot %d offset %d collides with another slot", i, start)
		}
		seen[start] = true
	}
	for i := uint32(0); i < grainCount; i++ {
		if got := r.Payload(i)[0]; got != byte(i+1) {
			t.Fatalf("slot %d byte 0 = %d, want %d (slots overlap)", i, got, i+1)
		}
	}
}

func TestGrainInfoOpenCommit(t *testing.T) {
	grainSize := uint32(128)
	buf := make([]byte, DiscreteHeaderSize+DiscretePayloadSize(grainSize, 2))
	newCommonHeader(buf).Init(1, [16]byte{}, 0, 32, 32)
	r := InitDiscrete(buf, 25, 1, []uint32{128}, 2, grainSize, 128)

	_, info, _ := r.Slot(5)
	info.Open(5, 128, grainSize)
	if info.Index() != 5 || info.ValidSlices() != 0 || info.TotalSlices() != 128 {
		t.Fatalf("after Open: index=%d validSlices=%d totalSlices=%d", info.Index(), info.ValidSlices(), info.TotalSlices())
	}

	info.Commit(64, 0, 1000)
	if info.ValidSlices() != 64 || info.CommitTime() != 1000 {
		t.Fatalf("after partial commit: validSlices=%d commitTime=%d", info.ValidSlices(), info.CommitTime())
	}

	info.Commit(128, 0, 2000)
	if info.ValidSlices() != info.TotalSlices() {
		t.Fatalf("after final commit: validSlices=%d != totalSlices=%d", info.ValidSlices(), info.TotalSlices())
	}
}

func TestCommitBatchSizeOK(t *testing.T) {
	if err := CommitBatchSizeOK(270, 1080, 270); err != nil {
		t.Errorf("270/270 hint: unexpected error %v", err)
	}
	if err := CommitBatchSizeOK(540, 1080, 270); err != nil {
		t.Errorf("540 multiple of 270: unexpected error %v", err)
	}
	if err := CommitBatchSizeOK(1080, 1080, 270); err != nil {
		t.Errorf("final commit (validSlices==totalSlices): unexpected error %v", err)
	}
	if err := CommitBatchSizeOK(300, 1080, 270); err == nil {
		t.Errorf("300 not a multiple of 270: expected error")
	}
}

func TestCommonHeaderFlagsAndHeadIndex(t *testing.T) {
	buf := make([]byte, commonHeaderSize)
	h := newCommonHeader(buf)
	h.Init(2, [16]byte{9}, 7, 1, 1)

	if h.IsInvalid() {
		t.Fatal("freshly initialized header reports invalid")
	}
	h.SetInvalid()
	if !h.IsInvalid() {
		t.Fatal("SetInvalid did not stick")
	}

	h.AdvanceHeadIndex(10)
	h.AdvanceHeadIndex(3) // must not regress
	if h.HeadIndex() != 10 {
		t.Fatalf("HeadIndex = %d, want 10 (monotonic)", h.HeadIndex())
	}
	h.AdvanceHeadIndex(20)
	if h.HeadIndex() != 20 {
		t.Fatalf("HeadIndex = %d, want 20", h.HeadIndex())
	}
}

func TestContinuousRegionFragments(t *testing.T) {
	bufLen := uint32(8)
	wordSize := uint32(4)
	channels := uint32(2)
	buf := make([]byte, ContinuousHeaderSize+ContinuousPayloadSize(wordSize, bufLen, channels))
	newCommonHeader(buf).Init(3, [16]byte{}, 0, 1, 1)
	r := InitContinuous(buf, 48000, 1, channels, bufLen, wordSize)

	first, second := r.Fragments(0, 6, 4)
	if len(first) != 2*int(wordSize) || len(second) != 2*int(wordSize) {
		t.Fatalf("wrap split: first=%d second=%d, want 8/8 bytes", len(first), len(second))
	}

	first, second = r.Fragments(0, 0, 4)
	if len(first) != 4*int(wordSize) || second != nil {
		t.Fatalf("non-wrapping read: first=%d second=%v", len(first), second)
	}
}
