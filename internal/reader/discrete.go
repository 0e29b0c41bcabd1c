// Package reader implements the blocking and non-blocking read protocols
// for discrete (grain-ring) and continuous (sample-ring) flows over an
// already-mapped region.
package reader

import (
	"github.com/mlefebvre1/mxl/internal/region"
	"github.com/mlefebvre1/mxl/internal/status"
	"github.com/mlefebvre1/mxl/internal/timing"
)

// pollInterval bounds how long a spin-wait iteration sleeps between checks
// of the sync counter, so a reader notices a flow invalidation promptly
// even without a writer commit to wake it.
const pollInterval = 500_000 // 500us, in ns

// DiscreteReader reads grains from a mapped discrete region, racing the
// writer's commits.
type DiscreteReader struct {
	region    *region.DiscreteRegion
	validFunc func() bool // reports whether the backing flow is still valid (INVALID flag + inode check)
}

// NewDiscreteReader wraps r with a liveness check the reader consults
// before every read attempt and while waiting, so an invalidated flow
// reports FLOW_INVALID instead of a timeout or range error.
func NewDiscreteReader(r *region.DiscreteRegion, validFunc func() bool) *DiscreteReader {
	return &DiscreteReader{region: r, validFunc: validFunc}
}

func (d *DiscreteReader) isValid() bool {
	if d.validFunc == nil {
		return !d.region.Common.IsInvalid()
	}
	return d.validFunc()
}

// GetGrainNonBlocking returns the grain at index without waiting.
func (d *DiscreteReader) GetGrainNonBlocking(index uint64) (region.GrainInfo, []byte, *status.Error) {
	info, payload, serr := d.tryGet(index)
	if serr == nil {
		d.region.Common.SetLastReadTime(timing.Now())
	}
	return info, payload, serr
}

// tryGet classifies a single attempt to read index without waiting: OK if
// the slot currently holds that index complete enough to be readable,
// OutOfRangeTooEarly if the writer hasn't reached it yet, OutOfRangeTooLate
// if it has already been overwritten by a newer generation, or if the
// writer advanced headIndex past index without ever committing a grain
// there (an open-then-cancelled or otherwise skipped slot). Both are
// terminal: the slot will never hold index's data again, so GetGrain must
// not retry them the way it retries OutOfRangeTooEarly.
func (d *DiscreteReader) tryGet(index uint64) (region.GrainInfo, []byte, *status.Error) {
	if !d.isValid() {
		return region.GrainInfo{}, nil, status.New(status.FlowInvalid)
	}

	headIndex := d.region.Common.HeadIndex()
	if index > headIndex {
		return region.GrainInfo{}, nil, status.New(status.OutOfRangeTooEarly)
	}

	grainCount := uint64(d.region.GrainCount())
	minIndex := uint64(0)
	if headIndex >= grainCount {
		minIndex = headIndex - grainCount + 1
	}
	if index < minIndex {
		return region.GrainInfo{}, nil, status.New(status.OutOfRangeTooLate)
	}

	_, info, payload := d.region.Slot(index)
	if info.Index() != index {
		return region.GrainInfo{}, nil, status.New(status.OutOfRangeTooLate)
	}
	return info, payload, nil
}

// GetGrain blocks, spin-waiting with short sleeps, until index is
// available or timeoutNs elapses. It returns OutOfRangeTooEarly on
// timeout, OutOfRangeTooLate if index has already fallen off the back of
// the ring, and FlowInvalid if the flow was invalidated while waiting.
func (d *DiscreteReader) GetGrain(index, timeoutNs uint64) (region.GrainInfo, []byte, *status.Error) {
	deadline := timing.Now() + timeoutNs
	for {
		prevSync := d.region.SyncCounter()

		info, payload, serr := d.tryGet(index)
		if serr == nil {
			d.region.Common.SetLastReadTime(timing.Now())
			return info, payload, nil
		}
		if serr.Code != status.OutOfRangeTooEarly {
			return region.GrainInfo{}, nil, serr
		}

		if timing.Now() >= deadline {
			return region.GrainInfo{}, nil, status.New(status.OutOfRangeTooEarly)
		}
		if !d.isValid() {
			return region.GrainInfo{}, nil, status.New(status.FlowInvalid)
		}

		d.waitForSyncChange(prevSync, deadline)
	}
}

// waitForSyncChange sleeps in short increments until the region's sync
// counter differs from prevSync, the flow stops being valid, or deadline
// passes. It never blocks past the deadline, and it wakes early once the
// writer signals a commit.
func (d *DiscreteReader) waitForSyncChange(prevSync uint32, deadline uint64) {
	for d.region.SyncCounter() == prevSync {
		if !d.isValid() {
			return
		}
		now := timing.Now()
		if now >= deadline {
			return
		}
		sleep := uint64(pollInterval)
		if remaining := deadline - now; remaining < sleep {
			sleep = remaining
		}
		timing.SleepForNs(sleep)
	}
}

// PartiallyVisible reports whether a grain has at least minValidSlices
// slices committed, for callers that only need a prefix of the grain.
func PartiallyVisible(info region.GrainInfo, minValidSlices uint32) bool {
	return info.ValidSlices() >= minValidSlices
}
