package flow

import (
	"encoding/json"
	"fmt"

	"github.com/mlefebvre1/mxl/internal/rational"
)

const (
	maxVideoFrameWidth  = 7680 // 8K UHD
	maxVideoFrameHeight = 4320 // 8K UHD
)

// InterlaceMode identifies whether a video flow carries whole frames or
// individual fields.
type InterlaceMode string

const (
	Progressive    InterlaceMode = "progressive"
	InterlacedTFF  InterlaceMode = "interlaced_tff"
	InterlacedBFF  InterlaceMode = "interlaced_bff"
)

// Component describes one plane of a video flow, e.g. the fill or the key
// (alpha) component.
type Component struct {
	Name     string
	Width    uint32
	Height   uint32
	BitDepth uint32
}

// Video is the Video member of the Flow tagged union.
type Video struct {
	Common Common

	GrainRate     rational.Rate
	FrameWidth    uint32
	FrameHeight   uint32
	InterlaceMode InterlaceMode
	Colorspace    string
	Components    []Component
}

// IsInterlaced reports whether the flow carries separate fields rather
// than whole progressive frames.
func (v Video) IsInterlaced() bool {
	return v.InterlaceMode != Progressive
}

// EffectiveGrainRate doubles the descriptor's nominal grain rate for
// interlaced content, since each field is its own grain.
func (v Video) EffectiveGrainRate() rational.Rate {
	if v.IsInterlaced() {
		return v.GrainRate.Doubled()
	}
	return v.GrainRate
}

// fillSliceLength returns the byte length of a single packed v210 video
// line: ((width+47)/48)*128.
func fillSliceLength(width uint32) uint32 {
	return ((width + 47) / 48) * 128
}

// keySliceLength returns the byte length of a single line of a packed
// 10-bit key (alpha) plane: ((width+2)/3)*4.
func keySliceLength(width uint32) uint32 {
	return ((width + 2) / 3) * 4
}

// SliceLengths returns the per-component slice (line) lengths, in the
// order the components were declared in the descriptor. A video/v210 flow
// with no declared components is assumed to have a single fill component
// matching the flow's frame_width. A component named "key" (the alpha
// plane of a video/v210+alpha flow) uses the narrower key-plane packing
// instead of the fill plane's v210 packing.
func (v Video) SliceLengths() ([]uint32, error) {
	if v.Common.MediaType != "video/v210" {
		return nil, fmt.Errorf("unsupported video media_type: %s", v.Common.MediaType)
	}
	if len(v.Components) == 0 {
		return []uint32{fillSliceLength(v.FrameWidth)}, nil
	}
	lengths := make([]uint32, len(v.Components))
	for i, c := range v.Components {
		if c.Name == "key" {
			lengths[i] = keySliceLength(c.Width)
		} else {
			lengths[i] = fillSliceLength(c.Width)
		}
	}
	return lengths, nil
}

// TotalSlices returns the number of slices (lines) per grain: the frame
// height, halved for interlaced content since fields carry half the
// lines of a full frame.
func (v Video) TotalSlices() (uint32, error) {
	if v.Common.MediaType != "video/v210" {
		return 0, fmt.Errorf("unsupported video media_type: %s", v.Common.MediaType)
	}
	if v.IsInterlaced() {
		return v.FrameHeight / 2, nil
	}
	return v.FrameHeight, nil
}

// PayloadSize returns the total grain payload size in bytes: the sum of
// each component's slice length times the number of slices.
func (v Video) PayloadSize() (uint64, error) {
	lengths, err := v.SliceLengths()
	if err != nil {
		return 0, err
	}
	slices, err := v.TotalSlices()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, l := range lengths {
		total += uint64(l) * uint64(slices)
	}
	return total, nil
}

func (v Video) validate() error {
	if err := v.Common.validate(); err != nil {
		return err
	}
	if v.FrameWidth > maxVideoFrameWidth {
		return fmt.Errorf("frame_width %d exceeds maximum of %d", v.FrameWidth, maxVideoFrameWidth)
	}
	if v.FrameHeight > maxVideoFrameHeight {
		return fmt.Errorf("frame_height %d exceeds maximum of %d", v.FrameHeight, maxVideoFrameHeight)
	}
	switch v.InterlaceMode {
	case Progressive, InterlacedTFF, InterlacedBFF:
	default:
		return fmt.Errorf("invalid interlace_mode %q", v.InterlaceMode)
	}
	if v.IsInterlaced() {
		if v.FrameHeight%2 != 0 {
			return fmt.Errorf("interlaced video frame_height must be even, got %d", v.FrameHeight)
		}
		thirty := rational.Rate{Num: 30000, Den: 1001}
		twentyFive := rational.Rate{Num: 25, Den: 1}
		if !v.GrainRate.Equal(thirty) && !v.GrainRate.Equal(twentyFive) {
			return fmt.Errorf("invalid grain_rate %v for interlaced video, expected 30000/1001 or 25/1", v.GrainRate)
		}
	}
	return nil
}

type videoJSON struct {
	commonJSON
	GrainRate     jsonRate        `json:"grain_rate"`
	FrameWidth    uint32          `json:"frame_width"`
	FrameHeight   uint32          `json:"frame_height"`
	InterlaceMode string          `json:"interlace_mode"`
	Colorspace    string          `json:"colorspace"`
	Components    []componentJSON `json:"components"`
}

type componentJSON struct {
	Name     string `json:"name"`
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
	BitDepth uint32 `json:"bit_depth"`
}

func parseVideo(data []byte) (Video, error) {
	var j videoJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Video{}, fmt.Errorf("invalid video flow descriptor: %w", err)
	}
	common, err := j.commonJSON.toCommon()
	if err != nil {
		return Video{}, err
	}
	rate, err := j.GrainRate.toRate()
	if err != nil {
		return Video{}, fmt.Errorf("invalid grain_rate: %w", err)
	}

	components := make([]Component, len(j.Components))
	for i, c := range j.Components {
		components[i] = Component{Name: c.Name, Width: c.Width, Height: c.Height, BitDepth: c.BitDepth}
	}

	v := Video{
		Common:        common,
		GrainRate:     rate,
		FrameWidth:    j.FrameWidth,
		FrameHeight:   j.FrameHeight,
		InterlaceMode: InterlaceMode(j.InterlaceMode),
		Colorspace:    j.Colorspace,
		Components:    components,
	}
	if err := v.validate(); err != nil {
		return Video{}, err
	}
	return v, nil
}
