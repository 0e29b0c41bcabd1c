package region

// Continuous-specific header field offsets, relative to the end of the
// common header.
const (
	contOffSampleRateNum   = commonHeaderSize + 0
	contOffSampleRateDen   = commonHeaderSize + 8
	contOffChannelCount    = commonHeaderSize + 16
	contOffBufferLength    = commonHeaderSize + 20
	contOffSampleWordSize  = commonHeaderSize + 24

	// ContinuousHeaderSize is the total header size for a continuous
	// region: common fields plus continuous-specific fields, rounded to a
	// cache line.
	ContinuousHeaderSize = commonHeaderSize + cacheLineSize
)

// MinContinuousBufferLength is the smallest allowed per-channel ring size.
const MinContinuousBufferLength = 128

// NextPowerOfTwo rounds n up to the next power of two, no smaller than
// MinContinuousBufferLength.
func NextPowerOfTwo(n uint32) uint32 {
	if n < MinContinuousBufferLength {
		n = MinContinuousBufferLength
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

// ContinuousPayloadSize returns the total payload area size for a
// continuous region: channelCount arrays of bufferLength samples each.
func ContinuousPayloadSize(sampleWordSize, bufferLength, channelCount uint32) int {
	return int(sampleWordSize) * int(bufferLength) * int(channelCount)
}

// ContinuousRegion is a typed view over a memory-mapped continuous (audio)
// flow region: the common + continuous header, followed by channelCount
// contiguous per-channel sample rings.
type ContinuousRegion struct {
	Common CommonHeader
	buf    []byte

	sampleRateNum, sampleRateDen uint64
	channelCount                 uint32
	bufferLength                 uint32
	sampleWordSize                uint32
}

// InitContinuous stamps the continuous-specific header fields. The common
// header must already have been initialized by the caller.
func InitContinuous(buf []byte, sampleRateNum, sampleRateDen uint64, channelCount, bufferLength, sampleWordSize uint32) *ContinuousRegion {
	*u64At(buf, contOffSampleRateNum) = sampleRateNum
	*u64At(buf, contOffSampleRateDen) = sampleRateDen
	*u32At(buf, contOffChannelCount) = channelCount
	*u32At(buf, contOffBufferLength) = bufferLength
	*u32At(buf, contOffSampleWordSize) = sampleWordSize

	return OpenContinuous(buf)
}

// OpenContinuous builds a ContinuousRegion view over an already-initialized
// buffer, reading back the fields InitContinuous stamped.
func OpenContinuous(buf []byte) *ContinuousRegion {
	return &ContinuousRegion{
		Common:         newCommonHeader(buf),
		buf:            buf,
		sampleRateNum:  *u64At(buf, contOffSampleRateNum),
		sampleRateDen:  *u64At(buf, contOffSampleRateDen),
		channelCount:   *u32At(buf, contOffChannelCount),
		bufferLength:   *u32At(buf, contOffBufferLength),
		sampleWordSize: *u32At(buf, contOffSampleWordSize),
	}
}

func (r *ContinuousRegion) SampleRateNum() uint64  { return r.sampleRateNum }
func (r *ContinuousRegion) SampleRateDen() uint64  { return r.sampleRateDen }
func (r *ContinuousRegion) ChannelCount() uint32   { return r.channelCount }
func (r *ContinuousRegion) BufferLength() uint32   { return r.bufferLength }
func (r *ContinuousRegion) SampleWordSize() uint32 { return r.sampleWordSize }

func (r *ContinuousRegion) channelStride() int {
	return int(r.sampleWordSize) * int(r.bufferLength)
}

// Channel returns the full ring buffer backing one channel, as raw bytes.
func (r *ContinuousRegion) Channel(ch uint32) []byte {
	stride := r.channelStride()
	off := ContinuousHeaderSize + int(ch)*stride
	return r.buf[off : off+stride : off+stride]
}

// Fragments computes the (at most two) contiguous byte ranges, within one
// channel's ring, covering `count` samples starting at ring position
// `startOffset`. The second range is nil unless the samples wrap past the
// end of the ring. startOffset is a sample position already reduced modulo
// bufferLength by the caller.
func (r *ContinuousRegion) Fragments(ch uint32, startOffset, count uint32) (first, second []byte) {
	channel := r.Channel(ch)
	wordSize := int(r.sampleWordSize)
	bufLen := r.bufferLength

	firstLen := count
	if startOffset+count > bufLen {
		firstLen = bufLen - startOffset
	}
	secondLen := count - firstLen

	first = channel[int(startOffset)*wordSize : int(startOffset+firstLen)*wordSize]
	if secondLen > 0 {
		second = channel[0 : int(secondLen)*wordSize]
	}
	return first, second
}
