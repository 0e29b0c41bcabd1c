// Package writer implements the open/commit/cancel protocols for discrete
// and continuous flow writers over an already-mapped region.
package writer

import (
	"fmt"

	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/status"
	"github.com/mlefebvre1/mxl/internal/timing"
)

// DiscreteWriter mutates grains in a mapped discrete region. A DiscreteWriter
// is not safe for concurrent use; MXL supports at most one writer per flow.
type DiscreteWriter struct {
	region       *region.DiscreteRegion
	currentIndex uint64
	haveOpen     bool
}

// NewDiscreteWriter wraps r for grain-at-a-time mutation.
func NewDiscreteWriter(r *region.DiscreteRegion) *DiscreteWriter {
	return &DiscreteWriter{region: r, currentIndex: timing.UndefinedIndex}
}

// OpenGrain locates the slot for index, resets its GrainInfo, and returns a
// writable view of its payload. Nothing is published to readers until
// Commit is called. Opening a new grain before committing or canceling the
// previously opened one is an error.
func (w *DiscreteWriter) OpenGrain(index uint64) (region.GrainInfo, []byte, error) {
	if w.haveOpen {
		return region.GrainInfo{}, nil, fmt.Errorf("writer: grain %d is still open, commit or cancel it first", w.currentIndex)
	}

	_, info, payload := w.region.Slot(index)
	info.Open(index, w.region.TotalSlices(), w.region.GrainSize())
	w.currentIndex = index
	w.haveOpen = true
	return info, payload, nil
}

// Cancel discards the currently opened grain without publishing anything.
func (w *DiscreteWriter) Cancel() {
	w.currentIndex = timing.UndefinedIndex
	w.haveOpen = false
}

// Commit publishes validSlices slices of the currently opened grain with
// release ordering: it writes the slot's GrainInfo, advances headIndex,
// stamps lastWriteTime, and bumps the sync counter to wake spin-waiting
// readers. validSlices must be a multiple of the flow's commit batch hint,
// except for the final commit where it equals totalSlices.
func (w *DiscreteWriter) Commit(index uint64, validSlices, flags uint32) (*status.Error, error) {
	if !w.haveOpen || index != w.currentIndex {
		return nil, fmt.Errorf("writer: commit index %d does not match open grain %d", index, w.currentIndex)
	}

	_, info, _ := w.region.Slot(index)
	if err := region.CommitBatchSizeOK(validSlices, info.TotalSlices(), w.region.Common.CommitBatchHint()); err != nil {
		return status.New(status.InvalidArg), err
	}

	now := timing.Now()
	info.Commit(validSlices, flags, now)
	w.region.Common.AdvanceHeadIndex(index)
	w.region.Common.SetLastWriteTime(now)
	w.region.BumpSyncCounter()

	if validSlices == info.TotalSlices() {
		w.currentIndex = timing.UndefinedIndex
		w.haveOpen = false
	}
	return nil, nil
}
