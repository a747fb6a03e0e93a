package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalSnapshot serializes a Snapshot to JSON bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil Snapshot")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Snapshot to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSnapshot deserializes a Snapshot from JSON bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Snapshot: %w", err)
	}

	return &s, nil
}
