package compaction

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
)

// DefaultMinThreshold is the number of segments of one key that triggers a
// merge when none of them holds a tombstone.
const DefaultMinThreshold = 4

// JobKind says what a compaction job does.
type JobKind int

const (
	// JobMerge rewrites all segments of one key as a single segment.
	JobMerge JobKind = iota + 1
	// JobResplit splits a segment holding more than one key back into
	// one segment per key.
	JobResplit
)

func (k JobKind) String() string {
	switch k {
	case JobMerge:
		return "merge"
	case JobResplit:
		return "resplit"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalText renders k by name.
func (k JobKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Job is one unit of compaction work.
type Job struct {
	Kind JobKind `json:"kind"`
	// Key is the routing value of a merge job; nil for resplit.
	Key      []byte             `json:"key,omitempty"`
	Segments []*segment.Segment `json:"segments"`
	Reason   string             `json:"reason"`
}

// IDs returns the IDs of the job's input segments.
func (j Job) IDs() []string {
	ids := make([]string, len(j.Segments))
	for i, s := range j.Segments {
		ids[i] = s.Digest
	}
	return ids
}

// Strategy groups persisted segments by one partition-key component.
//
// Every segment is expected to hold a single routing value. A segment whose
// first and last partitions disagree on it breaks that invariant and is
// resplit before anything else happens to its key. Among well-formed
// segments, a key's segments are merged when any of them holds a range
// tombstone, or when there are at least MinThreshold of them.
type Strategy struct {
	extractor    *split.KeyExtractor
	minThreshold int
}

// NewStrategy resolves component against schema. minThreshold <= 0 selects
// DefaultMinThreshold.
func NewStrategy(schema ir.Schema, component string, minThreshold int) (*Strategy, error) {
	x, err := split.NewKeyExtractor(schema, component)
	if err != nil {
		return nil, err
	}
	if minThreshold <= 0 {
		minThreshold = DefaultMinThreshold
	}
	return &Strategy{extractor: x, minThreshold: minThreshold}, nil
}

// Component returns the grouping component.
func (s *Strategy) Component() string { return s.extractor.Component() }

// MinThreshold returns the segment count that triggers a merge.
func (s *Strategy) MinThreshold() int { return s.minThreshold }

// Plan returns the jobs for segs: resplit jobs first (in input order), then
// merge jobs ordered by key bytes. Segments without partitions are ignored.
func (s *Strategy) Plan(segs []*segment.Segment) ([]Job, error) {
	var (
		resplit []Job
		groups  = make(map[string][]*segment.Segment)
	)
	for _, seg := range segs {
		if seg.Partitions == 0 || seg.FirstKey == nil {
			continue
		}
		first, err := s.extractor.Extract(seg.FirstKey)
		if err != nil {
			return nil, fmt.Errorf("segment %s first key: %w", seg.Digest, err)
		}
		last, err := s.extractor.Extract(seg.LastKey)
		if err != nil {
			return nil, fmt.Errorf("segment %s last key: %w", seg.Digest, err)
		}
		if !bytes.Equal(first, last) {
			resplit = append(resplit, Job{
				Kind:     JobResplit,
				Segments: []*segment.Segment{seg},
				Reason:   fmt.Sprintf("holds %s %q through %q", s.Component(), first, last),
			})
			continue
		}
		groups[string(first)] = append(groups[string(first)], seg)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	jobs := resplit
	for _, k := range keys {
		group := groups[k]
		if reason, ok := s.mergeReason(group); ok {
			jobs = append(jobs, Job{Kind: JobMerge, Key: []byte(k), Segments: group, Reason: reason})
		}
	}
	return jobs, nil
}

// Pending returns how many jobs Plan would produce.
func (s *Strategy) Pending(segs []*segment.Segment) int {
	jobs, err := s.Plan(segs)
	if err != nil {
		return 0
	}
	return len(jobs)
}

func (s *Strategy) mergeReason(group []*segment.Segment) (string, bool) {
	for _, seg := range group {
		if seg.HasTombstones() {
			return fmt.Sprintf("segment %s holds %d range tombstones", seg.Digest, seg.Tombstones), true
		}
	}
	if len(group) >= s.minThreshold {
		return fmt.Sprintf("%d segments, threshold %d", len(group), s.minThreshold), true
	}
	return "", false
}
