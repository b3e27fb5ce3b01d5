package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pksplit/internal/segment"
)

// SegmentFilter narrows ListSegments. Zero fields match everything.
type SegmentFilter struct {
	RunID     string
	Component string
	Key       []byte
}

const segmentColumns = `id, run_id, component, key, first_key, last_key, partitions, fragments,
	tombstones, min_seq, max_seq, compression, raw_size`

// ListSegments returns segment metadata without bodies.
// Results are ordered deterministically: ORDER BY component, key, min_seq, id COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListSegments(ctx context.Context, filter SegmentFilter) ([]*segment.Segment, error) {
	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Component != "" {
		where = append(where, "component = ?")
		args = append(args, filter.Component)
	}
	if filter.Key != nil {
		where = append(where, "key = ?")
		args = append(args, filter.Key)
	}

	query := `SELECT ` + segmentColumns + ` FROM segments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY component ASC, key ASC, min_seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segs := []*segment.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows, false)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segs, nil
}

// ReadSegment returns one segment including its body.
func (s *Store) ReadSegment(ctx context.Context, id string) (*segment.Segment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+`, body FROM segments WHERE id = ?`, id)
	seg, err := scanSegment(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return seg, err
}

// ReadSegments returns full segments (with bodies) for ids, in the order
// given. Fails with ErrNotFound if any ID is missing.
func (s *Store) ReadSegments(ctx context.Context, ids []string) ([]*segment.Segment, error) {
	out := make([]*segment.Segment, 0, len(ids))
	for _, id := range ids {
		seg, err := s.ReadSegment(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// MaxSeq returns the highest arrival seq persisted in any segment, 0 for an
// empty store. A new run continues numbering from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(max_seq) FROM segments`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq.Int64, nil
}

// scanSegment scans segmentColumns, followed by body when withBody is set.
func scanSegment(row scanner, withBody bool) (*segment.Segment, error) {
	var (
		seg               segment.Segment
		firstKey, lastKey []byte
		compression       string
	)
	dest := []any{&seg.Digest, &seg.RunID, &seg.Component, &seg.Key, &firstKey, &lastKey,
		&seg.Partitions, &seg.Fragments, &seg.Tombstones, &seg.MinSeq, &seg.MaxSeq,
		&compression, &seg.RawSize}
	if withBody {
		dest = append(dest, &seg.Body)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan segment: %w", err)
	}

	var err error
	if seg.FirstKey, err = segment.UnmarshalKey(firstKey); err != nil {
		return nil, fmt.Errorf("segment %s first key: %w", seg.Digest, err)
	}
	if seg.LastKey, err = segment.UnmarshalKey(lastKey); err != nil {
		return nil, fmt.Errorf("segment %s last key: %w", seg.Digest, err)
	}
	if seg.Compression, err = segment.ParseCompression(compression); err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.Digest, err)
	}
	return &seg, nil
}
