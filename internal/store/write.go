package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/pksplit/internal/segment"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteSegment inserts a segment produced by runID.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a segment is identified
// by its body digest, so writing identical content twice stores it once.
func (s *Store) WriteSegment(ctx context.Context, runID string, seg *segment.Segment) error {
	if err := writeSegment(ctx, s.db, runID, seg); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}
	return nil
}

// ReplaceSegments atomically writes add (produced by runID) and deletes the
// segments in remove. Used by compaction: readers never observe both the
// merged segment and its inputs, nor neither.
func (s *Store) ReplaceSegments(ctx context.Context, runID string, add []*segment.Segment, remove []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Delete first: a merge of a single segment can reproduce its ID
		if err := deleteSegments(ctx, tx, remove); err != nil {
			return fmt.Errorf("replace segments: %w", err)
		}
		for _, seg := range add {
			if err := writeSegment(ctx, tx, runID, seg); err != nil {
				return fmt.Errorf("replace segments: %w", err)
			}
		}
		return nil
	})
}

// DeleteSegments removes segments by ID. Unknown IDs are ignored.
func (s *Store) DeleteSegments(ctx context.Context, ids []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteSegments(ctx, tx, ids); err != nil {
			return fmt.Errorf("delete segments: %w", err)
		}
		return nil
	})
}

func writeSegment(ctx context.Context, db execer, runID string, seg *segment.Segment) error {
	firstKey, err := segment.MarshalKey(seg.FirstKey)
	if err != nil {
		return err
	}
	lastKey, err := segment.MarshalKey(seg.LastKey)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO segments
		(id, run_id, component, key, first_key, last_key, partitions, fragments, tombstones,
		 min_seq, max_seq, compression, raw_size, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		seg.Digest,
		runID,
		seg.Component,
		seg.Key,
		firstKey,
		lastKey,
		seg.Partitions,
		seg.Fragments,
		seg.Tombstones,
		seg.MinSeq,
		seg.MaxSeq,
		seg.Compression.String(),
		seg.RawSize,
		seg.Body,
	)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", seg.Digest, err)
	}
	return nil
}

func deleteSegments(ctx context.Context, db execer, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM segments WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete %d segments: %w", len(ids), err)
	}
	return nil
}
