package writer

import (
	"fmt"

	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/reader"
	"github.com/mlefebvre1/mxl/internal/timing"
)

// ContinuousWriter mutates sample ranges in a mapped continuous region. Not
// safe for concurrent use.
type ContinuousWriter struct {
	region *region.ContinuousRegion

	haveOpen         bool
	openStart        uint64
	openCount        uint32
	previousEndIndex uint64 // last committed end index; UndefinedIndex before any commit
}

// NewContinuousWriter wraps r for sample-range mutation. previousEndIndex
// should be timing.UndefinedIndex for a freshly created flow.
func NewContinuousWriter(r *region.ContinuousRegion) *ContinuousWriter {
	return &ContinuousWriter{region: r, previousEndIndex: timing.UndefinedIndex}
}

// OpenSamples opens the range [startIndex, startIndex+count-1] across every
// channel for mutation, returning a two-fragment wrapped slice per
// channel. Writes are order-preserving: after the first commit, startIndex
// must be greater than the previously committed end index, either
// previousEnd+1 (strict append) or further ahead, leaving a gap. A range
// that starts at or before the previous end is rejected even when it
// extends past it; already-committed samples cannot be rewritten.
func (w *ContinuousWriter) OpenSamples(startIndex uint64, count uint32) ([]reader.WrappedSlice, error) {
	if w.haveOpen {
		return nil, fmt.Errorf("writer: samples starting at %d are still open, commit or cancel first", w.openStart)
	}
	if err := w.checkOrdering(startIndex); err != nil {
		return nil, err
	}

	bufferLength := w.region.BufferLength()
	startOffset := uint32(startIndex % uint64(bufferLength))

	slices := make([]reader.WrappedSlice, w.region.ChannelCount())
	for ch := uint32(0); ch < w.region.ChannelCount(); ch++ {
		first, second := w.region.Fragments(ch, startOffset, count)
		slices[ch] = reader.WrappedSlice{First: first, Second: second}
	}

	w.haveOpen = true
	w.openStart = startIndex
	w.openCount = count
	return slices, nil
}

func (w *ContinuousWriter) checkOrdering(startIndex uint64) error {
	if w.previousEndIndex == timing.UndefinedIndex {
		return nil
	}
	if startIndex == w.previousEndIndex+1 {
		return nil
	}
	if startIndex <= w.previousEndIndex {
		return fmt.Errorf("writer: opening range starting at %d overlaps the committed range ending at %d", startIndex, w.previousEndIndex)
	}
	return nil
}

// Cancel discards the currently opened range without publishing anything.
func (w *ContinuousWriter) Cancel() {
	w.haveOpen = false
}

// Commit publishes the currently opened range with release ordering:
// advances headIndex to startIndex+count-1 and stamps lastWriteTime.
func (w *ContinuousWriter) Commit() error {
	if !w.haveOpen {
		return fmt.Errorf("writer: no samples are open to commit")
	}
	endIndex := w.openStart + uint64(w.openCount) - 1
	now := timing.Now()
	w.region.Common.AdvanceHeadIndex(endIndex)
	w.region.Common.SetLastWriteTime(now)

	w.previousEndIndex = endIndex
	w.haveOpen = false
	return nil
}
