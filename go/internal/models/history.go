package models

// HistoryEntry is one checkpoint on the undo/redo stack. Snapshots are
// full immutable values, not deltas. Sequence is a per-device monotonic
// counter used to order entries when merging remote fragments.
type HistoryEntry struct {
	Snapshot            *GameSession `json:"snapshot"`
	OriginatingDeviceID string       `json:"originating_device_id"`
	Sequence            uint64       `json:"sequence"`
}
