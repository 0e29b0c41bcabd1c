// Package region defines the binary layout of a flow's memory-mapped data
// file and the atomic accessors used to read and write it. A region is one
// contiguous byte slice: a fixed-size header (common fields shared by every
// flow kind, followed by kind-specific fields) immediately followed by the
// payload ring.
//
// Every field that can be touched by more than one process — headIndex,
// lastWriteTime, lastReadTime, a grain slot's GrainInfo, the discrete sync
// counter — lives at a fixed byte offset and is read and written through
// sync/atomic over an unsafe.Pointer into the mapped bytes. This is what
// lets writers and readers in different processes, with no shared Go
// runtime, agree on what "the current value" means.
package region

import (
	"fmt"
	"unsafe"
)

const (
	magicValue    uint32 = 0x4d584c31 // "MXL1"
	headerVersion uint32 = 1

	cacheLineSize = 64

	// MaxPlanesPerGrain bounds how many components (e.g. fill + key) a
	// single discrete grain may carry.
	MaxPlanesPerGrain = 4
)

// Grain flag bits, stored in a slot's GrainInfo.Flags.
const (
	GrainFlagInvalid uint32 = 1 << 0
)

// Header-level flags, stored in the common header's Flags field.
const (
	FlowFlagInvalid uint32 = 1 << 0
)

// Common header field offsets. Reserved space pads the struct out to a
// cache-line multiple so kind-specific fields start on their own line.
const (
	offMagic           = 0
	offVersion         = 4
	offFormat          = 8
	offFlags           = 12
	offID              = 16 // 16 bytes
	offInode           = 32
	offCommitBatchHint = 40
	offSyncBatchHint   = 44
	offLastWriteTime   = 48
	offLastReadTime    = 56
	offHeadIndex       = 64
	// commonHeaderSize rounds the fields above up to 4 cache lines,
	// leaving room to grow without shifting kind-specific offsets.
	commonHeaderSize = 4 * cacheLineSize
)

// CommonHeader is a view over the first commonHeaderSize bytes of a
// region's header, common to every flow kind.
type CommonHeader struct {
	buf []byte
}

func newCommonHeader(buf []byte) CommonHeader {
	return CommonHeader{buf: buf[:commonHeaderSize:commonHeaderSize]}
}

// CommonOf returns a view over the common header fields of a mapped
// region. It is valid for any region regardless of kind, since the common
// header occupies the same fixed prefix in both discrete and continuous
// layouts — callers use it to read Format() before deciding whether to
// open the region as discrete or continuous.
func CommonOf(buf []byte) CommonHeader {
	return newCommonHeader(buf)
}

func (h CommonHeader) u32(off int) *uint32 { return (*uint32)(unsafe.Pointer(&h.buf[off])) }
func (h CommonHeader) u64(off int) *uint64 { return (*uint64)(unsafe.Pointer(&h.buf[off])) }

// Init stamps the magic, version, format and identity fields. Called once
// by the writer that materializes the region.
func (h CommonHeader) Init(format uint32, id [16]byte, inode uint64, commitBatchHint, syncBatchHint uint32) {
	*h.u32(offMagic) = magicValue
	*h.u32(offVersion) = headerVersion
	*h.u32(offFormat) = format
	*h.u32(offFlags) = 0
	copy(h.buf[offID:offID+16], id[:])
	*h.u64(offInode) = inode
	*h.u32(offCommitBatchHint) = commitBatchHint
	*h.u32(offSyncBatchHint) = syncBatchHint
	*h.u64(offLastWriteTime) = 0
	*h.u64(offLastReadTime) = 0
	*h.u64(offHeadIndex) = 0
}

// Validate checks the magic and version stamped by Init, returning an error
// if this byte range is not a region header this package produced.
func (h CommonHeader) Validate() error {
	if got := *h.u32(offMagic); got != magicValue {
		return fmt.Errorf("region: bad magic %#x, want %#x", got, magicValue)
	}
	if got := *h.u32(offVersion); got != headerVersion {
		return fmt.Errorf("region: unsupported header version %d, want %d", got, headerVersion)
	}
	return nil
}

func (h CommonHeader) Format() uint32 { return *h.u32(offFormat) }

func (h CommonHeader) Flags() uint32 {
	return loadU32(h.buf, offFlags)
}

func (h CommonHeader) SetInvalid() {
	storeOrU32(h.buf, offFlags, FlowFlagInvalid)
}

func (h CommonHeader) IsInvalid() bool {
	return h.Flags()&FlowFlagInvalid != 0
}

func (h CommonHeader) ID() [16]byte {
	var id [16]byte
	copy(id[:], h.buf[offID:offID+16])
	return id
}

func (h CommonHeader) Inode() uint64 { return *h.u64(offInode) }

func (h CommonHeader) CommitBatchHint() uint32 { return *h.u32(offCommitBatchHint) }
func (h CommonHeader) SyncBatchHint() uint32   { return *h.u32(offSyncBatchHint) }

func (h CommonHeader) LastWriteTime() uint64 { return loadU64(h.buf, offLastWriteTime) }
func (h CommonHeader) SetLastWriteTime(t uint64) { storeU64(h.buf, offLastWriteTime, t) }

func (h CommonHeader) LastReadTime() uint64 { return loadU64(h.buf, offLastReadTime) }
func (h CommonHeader) SetLastReadTime(t uint64) { storeU64(h.buf, offLastReadTime, t) }

func (h CommonHeader) HeadIndex() uint64 { return loadU64(h.buf, offHeadIndex) }

// AdvanceHeadIndex sets headIndex to max(headIndex, index) with release
// ordering, matching the monotonic-non-decreasing invariant.
func (h CommonHeader) AdvanceHeadIndex(index uint64) {
	for {
		cur := loadU64(h.buf, offHeadIndex)
		if index <= cur {
			return
		}
		if casU64(h.buf, offHeadIndex, cur, index) {
			return
		}
	}
}
