// Package mxl implements a local, same-host substrate for exchanging
// professional media (video, audio, ancillary data) between producer and
// consumer processes through a shared domain directory.
//
// A domain is a directory; each flow inside it gets its own subdirectory
// holding a descriptor, an effective options file, a memory-mapped data
// region, and a writer lock sentinel. Producers create a flow and a
// FlowWriter to publish grains (discrete flows: video, data) or sample
// ranges (continuous flows: audio); consumers open a FlowReader against
// the same flow id and read whatever the writer has published so far,
// racing it safely via the region's atomics.
//
// Typical use:
//
//	inst, err := mxl.CreateInstance("/var/run/mxl/domain0", nil)
//	id, err := inst.CreateFlow(descriptorJSON, optionsJSON)
//	writer, err := inst.CreateFlowWriter(id)
//	info, payload, err := writer.OpenGrain(index)
//	// ... fill payload ...
//	err = writer.CommitGrain(index, info.TotalSlices, 0)
//
// The hot read/write path (internal/reader, internal/writer,
// internal/region) performs no logging; this package and
// internal/flowstore use log/slog for lifecycle events.
package mxl
