package split

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermit_NilIsUnlimited(t *testing.T) {
	var p *Permit
	l := p.takeLease()
	require.NoError(t, p.acquireUnit(context.Background()))
	p.releaseUnit()
	l.release()

	assert.Empty(t, p.Name())
	assert.Zero(t, p.Budget())
	assert.Zero(t, p.ActiveLeases())
	assert.Zero(t, p.Buffered())
}

func TestPermit_LeaseReleasedOnce(t *testing.T) {
	p := NewPermit("shard-0", 0)
	l1 := p.takeLease()
	l2 := p.takeLease()
	assert.EqualValues(t, 2, p.ActiveLeases())

	l1.release()
	l1.release()
	assert.EqualValues(t, 1, p.ActiveLeases())

	l2.release()
	assert.Zero(t, p.ActiveLeases())
	assert.EqualValues(t, 2, p.IssuedLeases())
	assert.Equal(t, "shard-0", p.Name())
}

func TestPermit_BudgetBlocksUntilRelease(t *testing.T) {
	p := NewPermit("tight", 1)
	assert.EqualValues(t, 1, p.Budget())
	require.NoError(t, p.acquireUnit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.acquireUnit(ctx), context.DeadlineExceeded)
	assert.EqualValues(t, 1, p.Buffered())

	acquired := make(chan error, 1)
	go func() { acquired <- p.acquireUnit(context.Background()) }()
	p.releaseUnit()

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}
	p.releaseUnit()
	assert.Zero(t, p.Buffered())
}
