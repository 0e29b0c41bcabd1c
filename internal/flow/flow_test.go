package flow

import (
	"encoding/json"
	"testing"
)

const groupHint = `["camera0:video"]`

func videoDescriptor(extra string) []byte {
	return []byte(`{
		"format": "urn:x-nmos:format:video",
		"id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab",
		"label": "cam0",
		"description": "test video flow",
		"media_type": "video/v210",
		"tags": {"urn:x-nmos:tag:grouphint/v1.0": ` + groupHint + `},
		"grain_rate": {"numerator": 60000, "denominator": 1001},
		"frame_width": 1920,
		"frame_height": 1080,
		"interlace_mode": "progressive",
		"colorspace": "BT709"` + extra + `
	}`)
}

func TestParseVideoSizes(t *testing.T) {
	f, err := Parse(videoDescriptor(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lengths, err := f.Video.SliceLengths()
	if err != nil {
		t.Fatalf("SliceLengths: %v", err)
	}
	if len(lengths) != 1 || lengths[0] != 5120 {
		t.Fatalf("sliceLengths = %v, want [5120]", lengths)
	}
	size, err := f.Video.PayloadSize()
	if err != nil {
		t.Fatalf("PayloadSize: %v", err)
	}
	if size != 5_529_600 {
		t.Fatalf("PayloadSize = %d, want 5529600", size)
	}
}

func TestParseVideoWithAlpha(t *testing.T) {
	extra := `, "components": [{"name": "fill", "width": 1920, "height": 1080, "bit_depth": 10}, {"name": "key", "width": 1920, "height": 1080, "bit_depth": 10}]`
	f, err := Parse(videoDescriptor(extra))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lengths, err := f.Video.SliceLengths()
	if err != nil {
		t.Fatalf("SliceLengths: %v", err)
	}
	if len(lengths) != 2 || lengths[0] != 5120 || lengths[1] != 2564 {
		t.Fatalf("sliceLengths = %v, want [5120 2564]", lengths)
	}
	size, err := f.Video.PayloadSize()
	if err != nil {
		t.Fatalf("PayloadSize: %v", err)
	}
	if want := uint64(8_298_720); size != want {
		t.Fatalf("PayloadSize = %d, want %d", size, want)
	}
}

func TestInterlacedRequiresEvenHeightAndPinnedRate(t *testing.T) {
	var j map[string]any
	if err := json.Unmarshal(videoDescriptor(""), &j); err != nil {
		t.Fatal(err)
	}
	j["interlace_mode"] = "interlaced_tff"
	j["frame_height"] = float64(1081)
	j["grain_rate"] = map[string]any{"numerator": 30000, "denominator": 1001}
	data, _ := json.Marshal(j)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for odd frame_height on interlaced video")
	}

	j["frame_height"] = float64(1080)
	j["grain_rate"] = map[string]any{"numerator": 59994, "denominator": 1000}
	data, _ = json.Marshal(j)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for disallowed interlaced grain_rate")
	}
}

func TestInterlacedDoublesEffectiveGrainRate(t *testing.T) {
	var j map[string]any
	if err := json.Unmarshal(videoDescriptor(""), &j); err != nil {
		t.Fatal(err)
	}
	j["interlace_mode"] = "interlaced_tff"
	j["frame_height"] = float64(1080)
	j["grain_rate"] = map[string]any{"numerator": 25, "denominator": 1}
	data, _ := json.Marshal(j)

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rate := f.Video.EffectiveGrainRate()
	if rate.Num != 50 || rate.Den != 1 {
		t.Fatalf("EffectiveGrainRate = %v, want 50/1", rate)
	}
	slices, err := f.Video.TotalSlices()
	if err != nil {
		t.Fatal(err)
	}
	if slices != 540 {
		t.Fatalf("TotalSlices = %d, want 540", slices)
	}
}

func TestRationalNormalization(t *testing.T) {
	desc := []byte(`{
		"format": "urn:x-nmos:format:data",
		"id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab",
		"label": "anc0",
		"description": "",
		"media_type": "video/smpte291",
		"tags": {"urn:x-nmos:tag:grouphint/v1.0": ["anc0:data"]},
		"grain_rate": {"numerator": 100000, "denominator": 2000}
	}`)
	f, err := Parse(desc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rate := f.Data.GrainRate
	if rate.Num != 50 || rate.Den != 1 {
		t.Fatalf("GrainRate = %v, want 50/1", rate)
	}
}

func TestParseAudio(t *testing.T) {
	desc := []byte(`{
		"format": "urn:x-nmos:format:audio",
		"id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab",
		"label": "mic0",
		"description": "",
		"media_type": "audio/L32",
		"tags": {"urn:x-nmos:tag:grouphint/v1.0": ["mic0:audio"]},
		"sample_rate": {"numerator": 48000, "denominator": 1},
		"channel_count": 1,
		"bit_depth": 32,
		"source_id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab",
		"device_id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab"
	}`)
	f, err := Parse(desc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Audio.SampleWordSize() != 4 {
		t.Fatalf("SampleWordSize = %d, want 4", f.Audio.SampleWordSize())
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	desc := []byte(`{"format": "urn:x-nmos:format:mux"}`)
	if _, err := Parse(desc); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRejectsEmptyGroupHints(t *testing.T) {
	desc := []byte(`{
		"format": "urn:x-nmos:format:data",
		"id": "f8a3c6e2-9b1d-4c7a-8e2f-1234567890ab",
		"label": "anc0",
		"media_type": "video/smpte291",
		"tags": {"urn:x-nmos:tag:grouphint/v1.0": []},
		"grain_rate": {"numerator": 25, "denominator": 1}
	}`)
	if _, err := Parse(desc); err == nil {
		t.Fatal("expected error for empty group hints")
	}
}
