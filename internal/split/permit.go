package split

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Permit is the resource budget a split run draws from.
//
// Every sub-stream holds a lease on the permit from creation until its
// consumer goroutine exits, on every exit path. When the permit has a
// fragment budget, each buffered fragment holds one unit from push until the
// consumer reads it (or until it is discarded), bounding the total number of
// fragments in flight across all sub-streams.
//
// A nil *Permit is valid and imposes no limits.
//
// Thread-safety: all methods are safe for concurrent use.
type Permit struct {
	name     string
	budget   *semaphore.Weighted
	capacity int64

	leases   atomic.Int64
	issued   atomic.Int64
	buffered atomic.Int64
}

// NewPermit creates a permit. budget <= 0 means no fragment budget.
func NewPermit(name string, budget int64) *Permit {
	p := &Permit{name: name, capacity: budget}
	if budget > 0 {
		p.budget = semaphore.NewWeighted(budget)
	}
	return p
}

// Name returns the permit's diagnostic name.
func (p *Permit) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Budget returns the fragment budget, 0 if unlimited.
func (p *Permit) Budget() int64 {
	if p == nil {
		return 0
	}
	return p.capacity
}

// ActiveLeases returns the number of sub-streams currently holding a lease.
func (p *Permit) ActiveLeases() int64 {
	if p == nil {
		return 0
	}
	return p.leases.Load()
}

// IssuedLeases returns the number of leases ever taken.
func (p *Permit) IssuedLeases() int64 {
	if p == nil {
		return 0
	}
	return p.issued.Load()
}

// Buffered returns the number of fragment units currently held.
func (p *Permit) Buffered() int64 {
	if p == nil {
		return 0
	}
	return p.buffered.Load()
}

// lease is one sub-stream's hold on the permit.
type lease struct {
	permit *Permit
	once   sync.Once
}

func (p *Permit) takeLease() *lease {
	if p != nil {
		p.leases.Add(1)
		p.issued.Add(1)
	}
	return &lease{permit: p}
}

// release returns the lease. Safe to call more than once.
func (l *lease) release() {
	l.once.Do(func() {
		if l.permit != nil {
			l.permit.leases.Add(-1)
		}
	})
}

// acquireUnit takes one fragment unit, blocking while the budget is exhausted.
func (p *Permit) acquireUnit(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.budget != nil {
		if err := p.budget.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	p.buffered.Add(1)
	return nil
}

// releaseUnit returns one fragment unit.
func (p *Permit) releaseUnit() {
	if p == nil {
		return
	}
	p.buffered.Add(-1)
	if p.budget != nil {
		p.budget.Release(1)
	}
}
