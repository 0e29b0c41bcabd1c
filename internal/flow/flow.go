// Package flow parses and validates NMOS-shaped flow descriptor JSON into
// a tagged variant over {Video, Audio, Data}, and exposes the computed
// sizes (payload size, slice length, total slices) the shared-region
// layout needs to materialize a flow.
package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mlefebvre1/mxl/internal/rational"
)

// Format identifies which member of the tagged union a Flow holds. It
// also doubles as the wire value stored in the shared region header,
// where it distinguishes discrete flows (Video, Data) from continuous
// ones (Audio) for dispatch purposes.
type Format uint32

const (
	FormatUnspecified Format = iota
	FormatVideo
	FormatAudio
	FormatData
	// FormatMux is reserved for future multiplexed flows. No creation path
	// produces it; it exists so format classification mirrors the
	// original's mxlDataFormat enum exactly.
	FormatMux
)

func (f Format) String() string {
	switch f {
	case FormatVideo:
		return "video"
	case FormatAudio:
		return "audio"
	case FormatData:
		return "data"
	case FormatMux:
		return "mux"
	default:
		return "unspecified"
	}
}

// IsDiscrete reports whether flows of this format are backed by the
// discrete grain-ring engine.
func (f Format) IsDiscrete() bool { return f == FormatVideo || f == FormatData }

// IsContinuous reports whether flows of this format are backed by the
// continuous sample-ring engine.
func (f Format) IsContinuous() bool { return f == FormatAudio }

const (
	tagVideo = "urn:x-nmos:format:video"
	tagAudio = "urn:x-nmos:format:audio"
	tagData  = "urn:x-nmos:format:data"

	groupHintKey = "urn:x-nmos:tag:grouphint/v1.0"
)

// Common holds the fields shared by every flow format.
type Common struct {
	ID          uuid.UUID
	Label       string
	Description string
	MediaType   string
	GroupHints  []string
}

func (c Common) validate() error {
	if c.Label == "" {
		return fmt.Errorf("label must not be empty")
	}
	if c.MediaType == "" {
		return fmt.Errorf("media_type is required")
	}
	if len(c.GroupHints) == 0 {
		return fmt.Errorf("tags.%s must contain at least one group hint", groupHintKey)
	}
	for _, hint := range c.GroupHints {
		if err := validateGroupHint(hint); err != nil {
			return err
		}
	}
	return nil
}

// validateGroupHint checks the "<group>:<role>[:device|node]" shape
// required by the NMOS group hint tag registry.
func validateGroupHint(hint string) error {
	parts := strings.Split(hint, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("invalid group hint %q: expected '<group-name>:<role>[:device|node]'", hint)
	}
	if parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid group hint %q: group name and role must not be empty", hint)
	}
	if len(parts) == 3 && parts[2] != "device" && parts[2] != "node" {
		return fmt.Errorf("invalid group hint %q: scope must be 'device' or 'node'", hint)
	}
	return nil
}

type commonJSON struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	MediaType   string   `json:"media_type"`
	Tags        tagsJSON `json:"tags"`
}

type tagsJSON struct {
	GroupHints []string `json:"urn:x-nmos:tag:grouphint/v1.0"`
}

func (c commonJSON) toCommon() (Common, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return Common{}, fmt.Errorf("invalid id %q: %w", c.ID, err)
	}
	return Common{
		ID:          id,
		Label:       c.Label,
		Description: c.Description,
		MediaType:   c.MediaType,
		GroupHints:  c.Tags.GroupHints,
	}, nil
}

// Flow is the tagged union over the three supported flow formats. Exactly
// one of Video, Audio, or Data is set, selected by Format.
type Flow struct {
	Format Format
	Video  *Video
	Audio  *Audio
	Data   *Data

	raw json.RawMessage // preserves the original descriptor bytes, byte-for-byte, for GetFlowDef round-trips.
}

// Common returns the fields shared across every flow format.
func (f Flow) Common() Common {
	switch f.Format {
	case FormatVideo:
		return f.Video.Common
	case FormatAudio:
		return f.Audio.Common
	case FormatData:
		return f.Data.Common
	default:
		return Common{}
	}
}

// ID returns the flow's UUID.
func (f Flow) ID() uuid.UUID { return f.Common().ID }

// RawJSON returns the exact descriptor bytes that were parsed to produce
// this Flow.
func (f Flow) RawJSON() []byte { return f.raw }

type discriminatorJSON struct {
	Format string `json:"format"`
}

// Parse validates and parses an NMOS-shaped flow descriptor.
func Parse(data []byte) (Flow, error) {
	var disc discriminatorJSON
	if err := json.Unmarshal(data, &disc); err != nil {
		return Flow{}, fmt.Errorf("invalid flow descriptor JSON: %w", err)
	}

	var flow Flow
	var err error
	switch disc.Format {
	case tagVideo:
		var v Video
		if v, err = parseVideo(data); err == nil {
			flow = Flow{Format: FormatVideo, Video: &v}
		}
	case tagAudio:
		var a Audio
		if a, err = parseAudio(data); err == nil {
			flow = Flow{Format: FormatAudio, Audio: &a}
		}
	case tagData:
		var d Data
		if d, err = parseData(data); err == nil {
			flow = Flow{Format: FormatData, Data: &d}
		}
	default:
		return Flow{}, fmt.Errorf("unsupported flow format %q", disc.Format)
	}
	if err != nil {
		return Flow{}, err
	}

	flow.raw = append(json.RawMessage(nil), data...)
	return flow, nil
}

// GrainRate returns the flow's grain rate for discrete formats, doubled
// for interlaced video to express the effective field rate.
func (f Flow) GrainRate() rational.Rate {
	switch f.Format {
	case FormatVideo:
		return f.Video.EffectiveGrainRate()
	case FormatData:
		return f.Data.GrainRate
	default:
		return rational.Rate{}
	}
}

// SampleRate returns the flow's sample rate for the Audio format.
func (f Flow) SampleRate() rational.Rate {
	if f.Format == FormatAudio {
		return f.Audio.SampleRate
	}
	return rational.Rate{}
}
