package segment

import (
	"errors"
	"fmt"

	"github.com/roach88/pksplit/internal/ir"
)

// ErrDigestMismatch is returned by Decode when the body does not hash to the
// segment's digest.
var ErrDigestMismatch = errors.New("segment digest mismatch")

// Segment is one persisted unit: every fragment routed to one key.
type Segment struct {
	// Digest is the BLAKE3 hash of the uncompressed body. It is the
	// segment's ID.
	Digest string `json:"id"`

	// RunID is the split run that wrote the segment. Set by the store.
	RunID string `json:"run_id,omitempty"`

	// Component is the routing component the segment was split by.
	Component string `json:"component"`

	// Key is the routing value every partition in the segment shares.
	Key []byte `json:"key"`

	// FirstKey and LastKey are the partition keys of the first and last
	// partition_start in the body.
	FirstKey ir.PartitionKey `json:"first_key"`
	LastKey  ir.PartitionKey `json:"last_key"`

	Partitions int   `json:"partitions"`
	Fragments  int   `json:"fragments"`
	Tombstones int   `json:"tombstones"`
	MinSeq     int64 `json:"min_seq"`
	MaxSeq     int64 `json:"max_seq"`

	Compression Compression `json:"compression"`
	RawSize     int         `json:"raw_size"`
	Body        []byte      `json:"-"`
}

// HasTombstones reports whether the segment holds range tombstones.
func (s *Segment) HasTombstones() bool { return s.Tombstones > 0 }

// MarshalText renders c by name.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Encode packs fragments into a segment without checking that they share a
// routing value. Builder is the checked entry point; Encode exists for
// callers that already hold validated fragments.
func Encode(component string, key []byte, fragments []ir.Fragment, c Compression) (*Segment, error) {
	raw, err := encodeFragments(fragments)
	if err != nil {
		return nil, err
	}
	body, used, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	seg := &Segment{
		Digest:      ir.HashWithDomain(ir.DomainSegment, raw),
		Component:   component,
		Key:         key,
		Fragments:   len(fragments),
		Compression: used,
		RawSize:     len(raw),
		Body:        body,
	}
	for i, f := range fragments {
		if i == 0 || f.Seq < seg.MinSeq {
			seg.MinSeq = f.Seq
		}
		if f.Seq > seg.MaxSeq {
			seg.MaxSeq = f.Seq
		}
		switch f.Kind {
		case ir.KindPartitionStart:
			if seg.FirstKey == nil {
				seg.FirstKey = f.Key
			}
			seg.LastKey = f.Key
			seg.Partitions++
		case ir.KindRangeTombstone:
			seg.Tombstones++
		}
	}
	return seg, nil
}

// Decode decompresses the body, verifies the digest and returns the
// fragments in stored order.
func Decode(seg *Segment) ([]ir.Fragment, error) {
	raw, err := decompress(seg.Body, seg.Compression, seg.RawSize)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.Digest, err)
	}
	if got := ir.HashWithDomain(ir.DomainSegment, raw); got != seg.Digest {
		return nil, fmt.Errorf("segment %s: %w (body hashes to %s)", seg.Digest, ErrDigestMismatch, got)
	}
	fragments, err := decodeFragments(raw)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.Digest, err)
	}
	return fragments, nil
}

// Raw returns the verified, uncompressed CBOR body.
func Raw(seg *Segment) ([]byte, error) {
	raw, err := decompress(seg.Body, seg.Compression, seg.RawSize)
	if err != nil {
		return nil, err
	}
	if ir.HashWithDomain(ir.DomainSegment, raw) != seg.Digest {
		return nil, ErrDigestMismatch
	}
	return raw, nil
}
