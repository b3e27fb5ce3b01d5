package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/split"
)

// RunKind distinguishes split runs from compaction runs.
type RunKind string

const (
	RunKindSplit   RunKind = "split"
	RunKindCompact RunKind = "compact"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Run records one split or compaction run.
type Run struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	Keyspace  string          `json:"keyspace"`
	Table     string          `json:"table"`
	Component string          `json:"component"`
	Status    RunStatus       `json:"status"`
	ErrorCode split.ErrorCode `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Streams   int             `json:"streams"`
	Fragments int64           `json:"fragments"`
	Dropped   int64           `json:"dropped"`
}

// RunIDGenerator produces run IDs.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so listing runs
// by ID lists them by start time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run IDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, to catch a test that starts more
// runs than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all run IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, id string, kind RunKind, schema ir.Schema, component string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, keyspace, table_name, component, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(kind), schema.Keyspace, schema.Table, component, string(RunRunning))
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

// FinishRun records the outcome of a run. A nil runErr marks it finished;
// otherwise it is marked failed with the split error code, if any.
func (s *Store) FinishRun(ctx context.Context, id string, stats split.Stats, runErr error) error {
	status := RunFinished
	var code, msg sql.NullString
	if runErr != nil {
		status = RunFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
		if c := split.CodeOf(runErr); c != "" {
			code = sql.NullString{String: string(c), Valid: true}
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error_code = ?, error = ?, streams = ?, fragments = ?, dropped = ?
		WHERE id = ?
	`, string(status), code, msg, stats.Streams, stats.Fragments, stats.Dropped, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReadRun returns one run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, keyspace, table_name, component, status, error_code, error, streams, fragments, dropped
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ReadRuns returns all runs ordered by ID (start time for UUIDv7 IDs).
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, keyspace, table_name, component, status, error_code, error, streams, fragments, dropped
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run             Run
		kind, status    string
		code, errString sql.NullString
	)
	err := row.Scan(&run.ID, &kind, &run.Keyspace, &run.Table, &run.Component, &status,
		&code, &errString, &run.Streams, &run.Fragments, &run.Dropped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	run.ErrorCode = split.ErrorCode(code.String)
	run.Error = errString.String
	return run, nil
}
