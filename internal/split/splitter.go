package split

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/pksplit/internal/ir"
)

// DefaultChannelCapacity is the per-sub-stream buffer size in fragments.
const DefaultChannelCapacity = 64

// Option configures a Splitter.
type Option func(*Splitter)

// WithChannelCapacity sets the bounded buffer size of every sub-stream.
// Values below 1 are raised to 1 so push always has a suspension point.
func WithChannelCapacity(n int) Option {
	return func(s *Splitter) {
		if n < 1 {
			n = 1
		}
		s.router.capacity = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Splitter) {
		s.logger = l
		s.router.logger = l
	}
}

// WithClock sets the logical clock used to stamp arrival seq.
// Use NewClockAt to continue numbering from previously persisted data.
func WithClock(c *Clock) Option {
	return func(s *Splitter) {
		s.router.clock = c
	}
}

// WithPreservedSeq keeps the seq of fragments that already carry one and
// only stamps unstamped fragments. Used when re-splitting persisted data.
func WithPreservedSeq() Option {
	return func(s *Splitter) {
		s.router.preserveSeq = true
	}
}

// Stats summarises a finished run.
type Stats struct {
	Streams   int   // sub-streams created (distinct routing values)
	Fragments int64 // fragments read from the source and routed
	Dropped   int64 // fragments discarded because their consumer had returned
}

// Splitter drives one split run: it pulls fragments from a Source, routes
// them by routing value and finalises every sub-stream at the end.
//
// A Splitter is single-use.
type Splitter struct {
	router    *router
	logger    *slog.Logger
	fragments int64
	ran       bool
}

// New constructs a Splitter for schema, routing by the partition-key
// component named component. Every distinct routing value gets its own
// consume goroutine, holding a lease on permit for its lifetime.
//
// Returns a configuration error if component is not in the schema; nothing
// has been read or started at that point.
func New(schema ir.Schema, permit *Permit, consume ConsumerFunc, component string, opts ...Option) (*Splitter, error) {
	extractor, err := NewKeyExtractor(schema, component)
	if err != nil {
		return nil, err
	}
	if consume == nil {
		return nil, newConfigError(component, "consumer is required", nil)
	}

	s := &Splitter{
		router: &router{
			schema:    schema,
			extractor: extractor,
			permit:    permit,
			consume:   consume,
			capacity:  DefaultChannelCapacity,
			clock:     NewClock(),
			logger:    slog.Default(),
			streams:   make(map[string]*substream),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run drives the source to exhaustion and returns once every consumer has
// returned.
//
// ERROR HANDLING: the result is nil only if the source ended cleanly and
// every consumer returned nil. A source failure, protocol violation or
// cancellation aborts all open sub-streams, awaits their consumers and is
// returned as-is. Otherwise the first consumer failure observed is returned.
func (s *Splitter) Run(ctx context.Context, src Source) error {
	if s.ran {
		return errors.New("split: Splitter.Run called more than once")
	}
	s.ran = true

	component := s.router.extractor.Component()
	s.logger.Info("split starting",
		"table", s.router.schema.QualifiedName(),
		"component", component,
		"capacity", s.router.capacity)

	runErr := s.drive(ctx, src)
	finalErr := s.router.finalize(runErr)
	stats := s.Stats()

	if runErr != nil {
		s.logger.Error("split aborted",
			"component", component,
			"streams", stats.Streams,
			"fragments", stats.Fragments,
			"error", runErr)
		if finalErr != nil {
			s.logger.Debug("consumer outcome after abort", "error", finalErr)
		}
		return runErr
	}
	if finalErr != nil {
		s.logger.Error("split failed",
			"component", component,
			"streams", stats.Streams,
			"error", finalErr)
		return finalErr
	}

	s.logger.Info("split finished",
		"component", component,
		"streams", stats.Streams,
		"fragments", stats.Fragments,
		"dropped", stats.Dropped)
	return nil
}

// drive pulls fragments one at a time and routes them until the source is
// exhausted or something fails.
func (s *Splitter) drive(ctx context.Context, src Source) error {
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return newUpstreamError(s.router.extractor.Component(), err)
		}
		if err := s.router.route(ctx, f); err != nil {
			return err
		}
		s.fragments++
	}
}

// Stats returns counters for the run so far. Only meaningful after Run.
func (s *Splitter) Stats() Stats {
	st := Stats{
		Streams:   len(s.router.order),
		Fragments: s.fragments,
	}
	for _, h := range s.router.order {
		st.Dropped += h.dropped
	}
	return st
}

// Keys returns the routing values in the order their sub-streams were
// created.
func (s *Splitter) Keys() [][]byte {
	keys := make([][]byte, len(s.router.order))
	for i, h := range s.router.order {
		keys[i] = h.key
	}
	return keys
}

// SplitByKeyComponent splits src by the named partition-key component,
// handing each routing value's sub-stream to its own consume goroutine.
// It is the single entry point most callers need.
func SplitByKeyComponent(ctx context.Context, src Source, consume ConsumerFunc, component string, opts ...Option) error {
	s, err := New(src.Schema(), src.Permit(), consume, component, opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx, src)
}
