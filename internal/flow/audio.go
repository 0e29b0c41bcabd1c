package flow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mlefebvre1/mxl/internal/rational"
)

// Audio is the Audio member of the Flow tagged union.
type Audio struct {
	Common Common

	SampleRate   rational.Rate
	ChannelCount uint32
	BitDepth     uint32
	SourceID     uuid.UUID
	DeviceID     uuid.UUID
}

// SampleWordSize returns the size in bytes of a single sample, bit_depth/8.
func (a Audio) SampleWordSize() uint32 {
	return a.BitDepth / 8
}

func (a Audio) validate() error {
	if err := a.Common.validate(); err != nil {
		return err
	}
	if a.BitDepth != 32 && a.BitDepth != 64 {
		return fmt.Errorf("unsupported bit_depth %d, expected 32 or 64", a.BitDepth)
	}
	if a.ChannelCount == 0 {
		return fmt.Errorf("channel_count must be positive")
	}
	return nil
}

type audioJSON struct {
	commonJSON
	SampleRate   jsonRate `json:"sample_rate"`
	ChannelCount uint32   `json:"channel_count"`
	BitDepth     uint32   `json:"bit_depth"`
	SourceID     string   `json:"source_id"`
	DeviceID     string   `json:"device_id"`
}

func parseAudio(data []byte) (Audio, error) {
	var j audioJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Audio{}, fmt.Errorf("invalid audio flow descriptor: %w", err)
	}
	common, err := j.commonJSON.toCommon()
	if err != nil {
		return Audio{}, err
	}
	rate, err := j.SampleRate.toRate()
	if err != nil {
		return Audio{}, fmt.Errorf("invalid sample_rate: %w", err)
	}

	var sourceID, deviceID uuid.UUID
	if j.SourceID != "" {
		if sourceID, err = uuid.Parse(j.SourceID); err != nil {
			return Audio{}, fmt.Errorf("invalid source_id: %w", err)
		}
	}
	if j.DeviceID != "" {
		if deviceID, err = uuid.Parse(j.DeviceID); err != nil {
			return Audio{}, fmt.Errorf("invalid device_id: %w", err)
		}
	}

	a := Audio{
		Common:       common,
		SampleRate:   rate,
		ChannelCount: j.ChannelCount,
		BitDepth:     j.BitDepth,
		SourceID:     sourceID,
		DeviceID:     deviceID,
	}
	if err := a.validate(); err != nil {
		return Audio{}, err
	}
	return a, nil
}
