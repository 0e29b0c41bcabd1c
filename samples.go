package mxl

import (
	internalreader "github.com/mlefebvre1/mxl/internal/reader"
)

// WrappedBufferSlice is one channel's view of a sample range: up to two
// contiguous byte fragments, split where the range crosses the ring
// boundary. Second is nil when the range doesn't wrap.
type WrappedBufferSlice struct {
	First, Second []byte
}

// WrappedMultiBufferSlice holds one WrappedBufferSlice per channel, in
// channel order.
type WrappedMultiBufferSlice []WrappedBufferSlice

func wrapSlices(in []internalreader.WrappedSlice) WrappedMultiBufferSlice {
	out := make(WrappedMultiBufferSlice, len(in))
	for i, s := range in {
		out[i] = WrappedBufferSlice{First: s.First, Second: s.Second}
	}
	return out
}
