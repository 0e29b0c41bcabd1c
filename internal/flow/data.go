package flow

import (
	"encoding/json"
	"fmt"

	"github.com/mlefebvre1/mxl/internal/rational"
)

// DataFormatGrainSize is the fixed grain payload size for ancillary
// ("video/smpte291") data flows: large enough to hold a full VANC
// payload in a single grain, and no smaller than a VFS page for no
// particular benefit.
const DataFormatGrainSize = 4096

// Data is the Data member of the Flow tagged union.
type Data struct {
	Common    Common
	GrainRate rational.Rate
}

func (d Data) validate() error {
	if err := d.Common.validate(); err != nil {
		return err
	}
	if d.Common.MediaType != "video/smpte291" {
		return fmt.Errorf("unsupported data media_type: %s", d.Common.MediaType)
	}
	return nil
}

// PayloadSize returns the fixed ANC grain payload size.
func (d Data) PayloadSize() uint64 { return DataFormatGrainSize }

// SliceLength returns the slice size for a data flow: one byte.
func (d Data) SliceLength() uint32 { return 1 }

// TotalSlices returns the number of slices in a data flow's grain: one
// per payload byte.
func (d Data) TotalSlices() uint32 { return DataFormatGrainSize }

type dataJSON struct {
	commonJSON
	GrainRate jsonRate `json:"grain_rate"`
}

func parseData(data []byte) (Data, error) {
	var j dataJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Data{}, fmt.Errorf("invalid data flow descriptor: %w", err)
	}
	common, err := j.commonJSON.toCommon()
	if err != nil {
		return Data{}, err
	}
	rate, err := j.GrainRate.toRate()
	if err != nil {
		return Data{}, fmt.Errorf("invalid grain_rate: %w", err)
	}

	d := Data{Common: common, GrainRate: rate}
	if err := d.validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}
