package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
	"github.com/roach88/pksplit/internal/store"
)

// Store is the persistence the compactor needs. *store.Store satisfies it.
type Store interface {
	ListSegments(ctx context.Context, filter store.SegmentFilter) ([]*segment.Segment, error)
	ReadSegments(ctx context.Context, ids []string) ([]*segment.Segment, error)
	ReplaceSegments(ctx context.Context, runID string, add []*segment.Segment, remove []string) error
	BeginRun(ctx context.Context, id string, kind store.RunKind, schema ir.Schema, component string) error
	FinishRun(ctx context.Context, id string, stats split.Stats, runErr error) error
}

// Result describes one executed job.
type Result struct {
	Job     Job      `json:"job"`
	Written []string `json:"written"`
	Removed []string `json:"removed"`
	// Purged counts clustered rows dropped under range tombstones.
	Purged int `json:"purged"`
	// Unchanged is set when the rewrite reproduced its only input.
	Unchanged bool `json:"unchanged,omitempty"`
}

// Report summarises a compaction pass.
type Report struct {
	RunID   string   `json:"run_id,omitempty"`
	Jobs    []Job    `json:"jobs"`
	Results []Result `json:"results,omitempty"`
	DryRun  bool     `json:"dry_run"`
}

// Compactor plans and executes compaction for one schema and component.
type Compactor struct {
	store    Store
	schema   ir.Schema
	strategy *Strategy
	builder  *segment.Builder
	ids      store.RunIDGenerator
	logger   *slog.Logger
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compactor) { c.logger = l }
}

// WithRunIDGenerator sets how compaction run IDs are produced.
// Default: store.UUIDv7Generator.
func WithRunIDGenerator(g store.RunIDGenerator) Option {
	return func(c *Compactor) { c.ids = g }
}

// New creates a compactor. The builder determines the compression of
// rewritten segments and must split by the strategy's component.
func New(st Store, schema ir.Schema, strategy *Strategy, builder *segment.Builder, opts ...Option) (*Compactor, error) {
	if builder.Component() != strategy.Component() {
		return nil, fmt.Errorf("compaction: builder splits by %q, strategy groups by %q",
			builder.Component(), strategy.Component())
	}
	c := &Compactor{
		store:    st,
		schema:   schema,
		strategy: strategy,
		builder:  builder,
		ids:      store.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run plans jobs over every segment of the component and, unless dryRun is
// set, executes them in plan order under one compaction run.
func (c *Compactor) Run(ctx context.Context, dryRun bool) (Report, error) {
	segs, err := c.store.ListSegments(ctx, store.SegmentFilter{Component: c.strategy.Component()})
	if err != nil {
		return Report{}, err
	}
	jobs, err := c.strategy.Plan(segs)
	if err != nil {
		return Report{}, err
	}
	report := Report{Jobs: jobs, DryRun: dryRun}
	c.logger.Info("compaction planned",
		"component", c.strategy.Component(),
		"segments", len(segs),
		"jobs", len(jobs),
		"dry_run", dryRun)
	if dryRun || len(jobs) == 0 {
		return report, nil
	}

	report.RunID = c.ids.Generate()
	if err := c.store.BeginRun(ctx, report.RunID, store.RunKindCompact, c.schema, c.strategy.Component()); err != nil {
		return report, err
	}

	var (
		stats  split.Stats
		runErr error
	)
	for _, job := range jobs {
		res, err := c.Execute(ctx, report.RunID, job)
		if err != nil {
			runErr = fmt.Errorf("%s job: %w", job.Kind, err)
			break
		}
		report.Results = append(report.Results, res)
		stats.Streams += len(res.Written)
		stats.Dropped += int64(res.Purged)
	}
	for _, seg := range segs {
		stats.Fragments += int64(seg.Fragments)
	}

	if err := c.store.FinishRun(context.WithoutCancel(ctx), report.RunID, stats, runErr); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		c.logger.Error("compaction failed", "run_id", report.RunID, "error", runErr)
		return report, runErr
	}
	c.logger.Info("compaction finished", "run_id", report.RunID, "jobs", len(report.Results))
	return report, nil
}

// Execute runs one job, recording its output under runID.
func (c *Compactor) Execute(ctx context.Context, runID string, job Job) (Result, error) {
	segs, err := c.store.ReadSegments(ctx, job.IDs())
	if err != nil {
		return Result{}, err
	}
	inputs := make([][]ir.Fragment, len(segs))
	for i, seg := range segs {
		if inputs[i], err = segment.Decode(seg); err != nil {
			return Result{}, err
		}
	}

	var (
		out    []*segment.Segment
		purged int
	)
	switch job.Kind {
	case JobMerge:
		merged, n := mergeFragments(inputs...)
		seg, err := c.builder.BuildFragments(job.Key, merged)
		if err != nil {
			return Result{}, err
		}
		out, purged = []*segment.Segment{seg}, n
	case JobResplit:
		if out, err = c.resplit(ctx, inputs...); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("unknown job kind %d", int(job.Kind))
	}

	res := Result{Job: job, Purged: purged}
	if len(out) == 1 && len(segs) == 1 && out[0].Digest == segs[0].Digest {
		res.Unchanged = true
		return res, nil
	}
	if err := c.store.ReplaceSegments(ctx, runID, out, job.IDs()); err != nil {
		return Result{}, err
	}
	for _, seg := range out {
		res.Written = append(res.Written, seg.Digest)
	}
	res.Removed = job.IDs()
	c.logger.Debug("compaction job done",
		"kind", job.Kind.String(),
		"inputs", len(segs),
		"outputs", len(out),
		"purged", purged)
	return res, nil
}

// resplit feeds the fragments back through the splitter, keeping their
// original seq, and collects one segment per key in memory so the
// replacement can be committed atomically.
func (c *Compactor) resplit(ctx context.Context, inputs ...[]ir.Fragment) ([]*segment.Segment, error) {
	merged, _ := mergeFragments(inputs...)

	var (
		mu   sync.Mutex
		segs = make(map[string]*segment.Segment)
	)
	consume := func(ctx context.Context, s *split.Stream) error {
		seg, err := c.builder.Build(ctx, s)
		if err != nil {
			return err
		}
		mu.Lock()
		segs[string(seg.Key)] = seg
		mu.Unlock()
		return nil
	}

	sp, err := split.New(c.schema, nil, consume, c.strategy.Component(),
		split.WithPreservedSeq(), split.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	if err := sp.Run(ctx, split.NewSliceSource(c.schema, nil, merged...)); err != nil {
		return nil, err
	}

	out := make([]*segment.Segment, 0, len(segs))
	for _, k := range sp.Keys() {
		out = append(out, segs[string(k)])
	}
	return out, nil
}
