// Package snapshot encodes the in-memory sample state into the named buckets
// written by the SQL backed stores.
package snapshot

import (
	"encoding/json"
	"fmt"

	"drugsecure/internal/infra/persistence/memory"
)

// Bucket names persisted in the state table.
const (
	BucketSamples  = "samples"
	BucketSequence = "sequence"
)

// Buckets lists every bucket written on persist, in write order.
var Buckets = []string{BucketSamples, BucketSequence}

// Encode marshals one bucket of the snapshot.
func Encode(s memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case BucketSamples:
		samples := s.Samples
		if samples == nil {
			samples = []memory.Sample{}
		}
		return json.Marshal(samples)
	case BucketSequence:
		return json.Marshal(s.NextSeq)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
}

// Decode merges one bucket payload into the snapshot. Unknown buckets are
// ignored so older tables with extra rows still load.
func Decode(s *memory.Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketSamples:
		target = &s.Samples
	case BucketSequence:
		target = &s.NextSeq
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
