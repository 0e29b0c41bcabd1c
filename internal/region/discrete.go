package region

import (
	"fmt"
)

// Discrete-specific header field offsets, relative to the end of the
// common header.
const (
	discOffGrainRateNum     = commonHeaderSize + 0
	discOffGrainRateDen     = commonHeaderSize + 8
	discOffSliceSizes       = commonHeaderSize + 16 // MaxPlanesPerGrain * uint32
	discOffComponentCount   = commonHeaderSize + 16 + 4*MaxPlanesPerGrain
	discOffGrainCount       = discOffComponentCount + 4
	discOffGrainSize        = discOffGrainCount + 4
	discOffTotalSlices      = discOffGrainSize + 4
	discOffSyncCounter      = discOffTotalSlices + 4
	discreteHeaderFieldsEnd = discOffSyncCounter + 4

	// DiscreteHeaderSize is the total header size for a discrete region:
	// common fields plus discrete-specific fields, rounded to a cache line.
	DiscreteHeaderSize = commonHeaderSize + 2*cacheLineSize
)

// Grain slot layout: a per-slot GrainInfo immediately followed by the
// grain's payload bytes.
const (
	giOffIndex       = 0
	giOffFlags       = 8
	giOffValidSlices = 12
	giOffTotalSlices = 16
	giOffGrainSize   = 20
	giOffCommitTime  = 24

	// GrainInfoSize is rounded to a cache line so the payload that follows
	// it starts on its own line.
	GrainInfoSize = cacheLineSize
)

// DiscreteRegion is a typed view over a memory-mapped discrete (video or
// data) flow region: the common + discrete header, followed by GrainCount
// fixed-size slots.
type DiscreteRegion struct {
	Common CommonHeader
	buf    []byte

	grainRateNum, grainRateDen uint64
	sliceSizes                 [MaxPlanesPerGrain]uint32
	componentCount             uint32
	grainCount                 uint32
	grainSize                  uint32
	totalSlices                uint32
	slotStride                 uint32
}

// SlotStride returns sizeof(GrainInfo) + grainSize, rounded up to a
// cache-line multiple.
func SlotStride(grainSize uint32) uint32 {
	total := GrainInfoSize + grainSize
	if rem := total % cacheLineSize; rem != 0 {
		total += cacheLineSize - rem
	}
	return total
}

// DiscretePayloadSize returns the total payload area size for a discrete region
// with the given grain size and count.
func DiscretePayloadSize(grainSize, grainCount uint32) int {
	return int(SlotStride(grainSize)) * int(grainCount)
}

// InitDiscrete stamps the discrete-specific header fields. The common
// header must already have been initialized by the caller.
func InitDiscrete(buf []byte, grainRateNum, grainRateDen uint64, sliceSizes []uint32, grainCount, grainSize, totalSlices uint32) *DiscreteRegion {
	*u64At(buf, discOffGrainRateNum) = grainRateNum
	*u64At(buf, discOffGrainRateDen) = grainRateDen
	for i := 0; i < MaxPlanesPerGrain; i++ {
		var v uint32
		if i < len(sliceSizes) {
			v = sliceSizes[i]
		}
		*u32At(buf, discOffSliceSizes+4*i) = v
	}
	*u32At(buf, discOffComponentCount) = uint32(len(sliceSizes))
	*u32At(buf, discOffGrainCount) = grainCount
	*u32At(buf, discOffGrainSize) = grainSize
	*u32At(buf, discOffTotalSlices) = totalSlices
	*u32At(buf, discOffSyncCounter) = 0

	return OpenDiscrete(buf)
}

// OpenDiscrete builds a DiscreteRegion view over an already-initialized
// buffer, reading back the fields InitDiscrete stamped.
func OpenDiscrete(buf []byte) *DiscreteRegion {
	r := &DiscreteRegion{
		Common:         newCommonHeader(buf),
		buf:            buf,
		grainRateNum:   *u64At(buf, discOffGrainRateNum),
		grainRateDen:   *u64At(buf, discOffGrainRateDen),
		componentCount: *u32At(buf, discOffComponentCount),
		grainCount:     *u32At(buf, discOffGrainCount),
		grainSize:      *u32At(buf, discOffGrainSize),
		totalSlices:    *u32At(buf, discOffTotalSlices),
	}
	for i := 0; i < MaxPlanesPerGrain; i++ {
		r.sliceSizes[i] = *u32At(buf, discOffSliceSizes+4*i)
	}
	r.slotStride = SlotStride(r.grainSize)
	return r
}

func (r *DiscreteRegion) GrainRateNum() uint64    { return r.grainRateNum }
func (r *DiscreteRegion) GrainRateDen() uint64    { return r.grainRateDen }
func (r *DiscreteRegion) ComponentCount() uint32  { return r.componentCount }
func (r *DiscreteRegion) SliceSizes() []uint32    { return r.sliceSizes[:r.componentCount] }
func (r *DiscreteRegion) GrainCount() uint32      { return r.grainCount }
func (r *DiscreteRegion) GrainSize() uint32       { return r.grainSize }
func (r *DiscreteRegion) TotalSlices() uint32     { return r.totalSlices }

func (r *DiscreteRegion) SyncCounter() uint32 { return loadU32(r.buf, discOffSyncCounter) }

// BumpSyncCounter increments the sync counter, used by the writer to wake
// readers spin-waiting on a slot becoming available.
func (r *DiscreteRegion) BumpSyncCounter() uint32 { return addU32(r.buf, discOffSyncCounter, 1) }

func (r *DiscreteRegion) slotOffset(slot uint32) int {
	return DiscreteHeaderSize + int(slot)*int(r.slotStride)
}

// GrainInfo is a view over one slot's header fields.
type GrainInfo struct {
	buf []byte
}

func (r *DiscreteRegion) grainInfoAt(slot uint32) GrainInfo {
	off := r.slotOffset(slot)
	return GrainInfo{buf: r.buf[off : off+GrainInfoSize]}
}

// Payload returns the writable payload bytes for the given slot.
func (r *DiscreteRegion) Payload(slot uint32) []byte {
	off := r.slotOffset(slot) + GrainInfoSize
	return r.buf[off : off+int(r.grainSize) : off+int(r.grainSize)]
}

// Slot returns the slot index, payload and GrainInfo view for a grain
// index.
func (r *DiscreteRegion) Slot(index uint64) (uint32, GrainInfo, []byte) {
	slot := uint32(index % uint64(r.grainCount))
	return slot, r.grainInfoAt(slot), r.Payload(slot)
}

func (g GrainInfo) Index() uint64 { return loadU64(g.buf, giOffIndex) }
func (g GrainInfo) setIndex(v uint64) { storeU64(g.buf, giOffIndex, v) }

func (g GrainInfo) Flags() uint32 { return loadU32(g.buf, giOffFlags) }
func (g GrainInfo) setFlags(v uint32) { storeU32(g.buf, giOffFlags, v) }

func (g GrainInfo) ValidSlices() uint32 { return loadU32(g.buf, giOffValidSlices) }
func (g GrainInfo) setValidSlices(v uint32) { storeU32(g.buf, giOffValidSlices, v) }

func (g GrainInfo) TotalSlices() uint32 { return loadU32(g.buf, giOffTotalSlices) }
func (g GrainInfo) setTotalSlices(v uint32) { storeU32(g.buf, giOffTotalSlices, v) }

func (g GrainInfo) GrainSize() uint32 { return loadU32(g.buf, giOffGrainSize) }
func (g GrainInfo) setGrainSize(v uint32) { storeU32(g.buf, giOffGrainSize, v) }

func (g GrainInfo) CommitTime() uint64 { return loadU64(g.buf, giOffCommitTime) }
func (g GrainInfo) setCommitTime(v uint64) { storeU64(g.buf, giOffCommitTime, v) }

// Open resets a slot's GrainInfo for a new grain: sets index, clears flags
// and validSlices, and stamps totalSlices/grainSize. It does not publish
// anything to readers; only Commit does that.
func (g GrainInfo) Open(index uint64, totalSlices, grainSize uint32) {
	g.setIndex(index)
	g.setFlags(0)
	g.setValidSlices(0)
	g.setTotalSlices(totalSlices)
	g.setGrainSize(grainSize)
}

// Commit publishes validSlices and flags with release ordering (the
// underlying stores are already sequentially-consistent atomics, which is
// a strictly stronger guarantee than plain release) and stamps the commit
// time.
func (g GrainInfo) Commit(validSlices, flags uint32, now uint64) {
	g.setValidSlices(validSlices)
	g.setFlags(flags)
	g.setCommitTime(now)
}

// CommitBatchSizeOK validates the "multiple of the hint, except for the
// final commit" rule from the discrete writer protocol.
func CommitBatchSizeOK(validSlices, totalSlices, hint uint32) error {
	if hint == 0 {
		hint = 1
	}
	if validSlices == totalSlices {
		return nil
	}
	if validSlices%hint != 0 {
		return fmt.Errorf("region: validSlices %d is not a multiple of commit batch hint %d", validSlices, hint)
	}
	return nil
}

func u32At(buf []byte, off int) *uint32 {
	return (*uint32)(ptrAt(buf, off))
}

func u64At(buf []byte, off int) *uint64 {
	return (*uint64)(ptrAt(buf, off))
}
