package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/lifecycle"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/selection"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
	"github.com/groupbuy-hub/groupbuy-hub/internal/testutil"
)

func newSweeper(t *testing.T) (*Service, *memory.Store, *testutil.Clock) {
	t.Helper()
	st := memory.NewStore()
	clock := testutil.NewClock()
	auditSvc := appAudit.NewService(st.Audit(), zerolog.Nop(), nil)

	life := lifecycle.NewService(st, auditSvc, event.Discard{}, lifecycle.Config{
		BuyerDecisionWindow: 48 * time.Hour, SellerDecisionWindow: 24 * time.Hour,
	}, zerolog.Nop())
	life.SetClock(clock.Now)
	sel := selection.NewService(st, auditSvc, event.Discard{}, zerolog.Nop())
	sel.SetClock(clock.Now)

	svc := NewService(st, life, sel, zerolog.Nop())
	svc.SetClock(clock.Now)
	return svc, st, clock
}

func status(t *testing.T, st *memory.Store, id uuid.UUID) groupbuy.Status {
	t.Helper()
	inst, err := st.Repositories().Instances.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inst.Status
}

func TestSweepDue_ClosesAndLapses(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newSweeper(t)

	withBid := testutil.SeedInstance(t, st, clock, testutil.Buyer(), 1, 5)
	testutil.SeedParticipant(t, st, clock, withBid, testutil.Buyer())
	testutil.SeedBid(t, st, withBid, testutil.Seller(), 9000, clock.Now())
	empty := testutil.SeedInstance(t, st, clock, testutil.Buyer(), 1, 5)

	res, err := svc.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, *res, "nothing is due yet")

	clock.Advance(25 * time.Hour)
	res, err = svc.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Closed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, groupbuy.StatusFinalSelectionBuyers, status(t, st, withBid.InstanceID))
	assert.Equal(t, groupbuy.StatusExpired, status(t, st, empty.InstanceID))

	clock.Advance(49 * time.Hour)
	res, err = svc.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Closed)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 1, res.Lapsed)
	assert.Equal(t, groupbuy.StatusCancelled, status(t, st, withBid.InstanceID))

	res, err = svc.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, *res, "second sweep is a no-op")
}

type closerFunc func(ctx context.Context, actor user.Actor, id uuid.UUID) (*lifecycle.CloseResult, error)

func (f closerFunc) CloseBidding(ctx context.Context, actor user.Actor, id uuid.UUID) (*lifecycle.CloseResult, error) {
	return f(ctx, actor, id)
}

func TestSweepDue_SkipsRacesCountsFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	clock := testutil.NewClock()
	raced := testutil.SeedInstance(t, st, clock, testutil.Buyer(), 1, 5)
	testutil.SeedInstance(t, st, clock, testutil.Buyer(), 1, 5)

	var actors []user.Actor
	closer := closerFunc(func(_ context.Context, actor user.Actor, id uuid.UUID) (*lifecycle.CloseResult, error) {
		actors = append(actors, actor)
		if id == raced.InstanceID {
			return nil, errs.InvalidTransition("already closed")
		}
		return nil, errors.New("connection reset")
	})
	svc := NewService(st, closer, nil, zerolog.Nop())
	svc.SetClock(func() time.Time { return clock.Now().Add(48 * time.Hour) })

	res, err := svc.SweepDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Closed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, actors, 2)
	for _, a := range actors {
		assert.Equal(t, user.SystemID, a.UserID)
		assert.True(t, a.IsAdmin())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc, _, _ := newSweeper(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, 5*time.Millisecond, 10)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
