package mxl

import (
	"encoding/json"
	"fmt"
)

// minDiscreteSlots enforces spec's "never less than 3 slots" floor on a
// discrete ring, regardless of how small history_duration is set.
const minDiscreteSlots = 3

// defaultHistoryDurationNs sizes a flow's ring to at least one second of
// media when history_duration is absent from its options.
const defaultHistoryDurationNs = uint64(1_000_000_000)

// defaultCommitBatchHint and defaultSyncBatchHint match the original's
// FlowManager defaults: both hints default to 1, i.e. no batching
// constraint: every validSlices value is a multiple of 1.
const (
	defaultCommitBatchHint = uint32(1)
	defaultSyncBatchHint   = uint32(1)
)

// defaultHeartbeatThresholdNs is how stale a writer's lastWriteTime may be,
// with no lock held, before IsFlowActive reports the flow as inactive.
const defaultHeartbeatThresholdNs = uint64(5_000_000_000)

type flowOptionsJSON struct {
	HistoryDurationNs *uint64 `json:"urn:x-mxl:option:history_duration/v1.0,omitempty"`
}

// parseFlowOptions decodes a flow's options JSON, applying defaults, and
// returns the history duration plus the effective options JSON (defaults
// filled in) to persist alongside the flow's descriptor.
func parseFlowOptions(raw []byte) (historyDurationNs uint64, effective []byte, err error) {
	var j flowOptionsJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j); err != nil {
			return 0, nil, fmt.Errorf("mxl: invalid options JSON: %w", err)
		}
	}

	historyDurationNs = defaultHistoryDurationNs
	if j.HistoryDurationNs != nil {
		if *j.HistoryDurationNs == 0 {
			return 0, nil, fmt.Errorf("mxl: history_duration must be positive")
		}
		historyDurationNs = *j.HistoryDurationNs
	}

	effective, err = json.Marshal(flowOptionsJSON{HistoryDurationNs: &historyDurationNs})
	if err != nil {
		return 0, nil, err
	}
	return historyDurationNs, effective, nil
}

type instanceOptionsJSON struct {
	HeartbeatThresholdNs *uint64 `json:"urn:x-mxl:option:heartbeat_threshold/v1.0,omitempty"`
}

// parseInstanceOptions decodes createInstance's options JSON, which
// configures how stale a writer heartbeat may be before IsFlowActive
// considers it dead.
func parseInstanceOptions(raw []byte) (uint64, error) {
	var j instanceOptionsJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j); err != nil {
			return 0, fmt.Errorf("mxl: invalid instance options JSON: %w", err)
		}
	}
	if j.HeartbeatThresholdNs != nil {
		if *j.HeartbeatThresholdNs == 0 {
			return 0, fmt.Errorf("mxl: heartbeat_threshold must be positive")
		}
		return *j.HeartbeatThresholdNs, nil
	}
	return defaultHeartbeatThresholdNs, nil
}
