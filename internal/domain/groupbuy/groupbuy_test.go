package groupbuy

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newInstance(t *testing.T, minP, maxP int) *Instance {
	t.Helper()
	inst, err := NewInstance(uuid.New(), NewInstanceInput{
		Title:           "Bulk coffee beans",
		Product:         Product{ProductID: "sku-1", Name: "Beans", BasePrice: 1000},
		MinParticipants: minP,
		MaxParticipants: maxP,
		EndTime:         now.Add(24 * time.Hour),
	}, now)
	require.NoError(t, err)
	return inst
}

func TestNewInstance_Validation(t *testing.T) {
	creator := uuid.New()
	base := NewInstanceInput{Title: "x", MinParticipants: 1, MaxParticipants: 2, EndTime: now.Add(time.Hour)}

	tests := []struct {
		name   string
		mutate func(*NewInstanceInput)
	}{
		{"empty title", func(in *NewInstanceInput) { in.Title = "  " }},
		{"min zero", func(in *NewInstanceInput) { in.MinParticipants = 0 }},
		{"max below min", func(in *NewInstanceInput) { in.MinParticipants = 3 }},
		{"end before start", func(in *NewInstanceInput) { in.StartTime = now.Add(2 * time.Hour) }},
		{"end in past", func(in *NewInstanceInput) { in.StartTime = now.Add(-2 * time.Hour); in.EndTime = now.Add(-time.Hour) }},
		{"bad rule", func(in *NewInstanceInput) { in.BidRule = "amount >" }},
		{"unknown rule variable", func(in *NewInstanceInput) { in.BidRule = "discount > 3" }},
		{"non boolean rule", func(in *NewInstanceInput) { in.BidRule = "amount * 2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := NewInstance(creator, in, now)
			assert.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)
		})
	}

	inst, err := NewInstance(creator, base, now)
	require.NoError(t, err)
	assert.Equal(t, StatusRecruiting, inst.Status)
	assert.Equal(t, now, inst.StartTime)
	assert.Equal(t, creator, inst.CreatorID)
}

func TestInstance_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusRecruiting, StatusFinalSelectionBuyers, true},
		{StatusRecruiting, StatusExpired, true},
		{StatusRecruiting, StatusCompleted, false},
		{StatusFinalSelectionBuyers, StatusFinalSelectionSeller, true},
		{StatusFinalSelectionBuyers, StatusCompleted, false},
		{StatusFinalSelectionSeller, StatusCompleted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusExpired, StatusRecruiting, false},
	}
	for _, tt := range tests {
		inst := &Instance{Status: tt.from}
		assert.Equal(t, tt.ok, inst.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestInstance_EnsureRecruiting(t *testing.T) {
	inst := newInstance(t, 1, 2)

	require.NoError(t, inst.EnsureRecruiting(now))
	assert.True(t, errors.Is(inst.EnsureRecruiting(now.Add(-time.Minute)), errs.ErrInvalidTransition))
	assert.True(t, errors.Is(inst.EnsureRecruiting(inst.EndTime), errs.ErrInvalidTransition))

	inst.Status = StatusCancelled
	assert.True(t, errors.Is(inst.EnsureRecruiting(now), errs.ErrInvalidTransition))
}

func TestInstance_Capacity(t *testing.T) {
	inst := newInstance(t, 1, 2)

	require.NoError(t, inst.AddParticipant(now))
	require.NoError(t, inst.AddParticipant(now))
	assert.True(t, errors.Is(inst.AddParticipant(now), errs.ErrCapacityExceeded))
	assert.Equal(t, 2, inst.CurrentParticipants)

	inst.RemoveParticipant(now)
	inst.RemoveParticipant(now)
	inst.RemoveParticipant(now)
	assert.Equal(t, 0, inst.CurrentParticipants)
}

func TestInstance_TerminalTransitionsStampFinishedAt(t *testing.T) {
	inst := newInstance(t, 1, 2)
	require.NoError(t, inst.Cancel("creator cancelled", now))
	require.NotNil(t, inst.FinishedAt)
	require.NotNil(t, inst.StatusReason)
	assert.Equal(t, "creator cancelled", *inst.StatusReason)

	err := inst.Complete(now)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func mkBid(amount int64, at time.Time) *bid.Bid {
	return bid.NewBid(uuid.New(), uuid.New(), amount, "", at)
}

func TestSelectWinner(t *testing.T) {
	a := mkBid(100, now)
	c := mkBid(150, now.Add(time.Minute))
	b := mkBid(150, now.Add(2*time.Minute))

	winner := SelectWinner([]*bid.Bid{a, b, c})
	assert.Equal(t, c.BidID, winner.BidID)

	assert.Nil(t, SelectWinner(nil))
}

func TestPlanClosing(t *testing.T) {
	t.Run("insufficient participants expires", func(t *testing.T) {
		inst := newInstance(t, 2, 5)
		inst.CurrentParticipants = 1
		b := mkBid(100, now)

		c, err := PlanClosing(inst, []*bid.Bid{b})
		require.NoError(t, err)
		assert.Nil(t, c.Winner)
		assert.Equal(t, ReasonInsufficientParticipants, c.ExpireReason)
		assert.Len(t, c.Rejected, 1)
	})

	t.Run("no pending bid expires", func(t *testing.T) {
		inst := newInstance(t, 1, 5)
		inst.CurrentParticipants = 1
		withdrawn := mkBid(100, now)
		withdrawn.Withdraw(now)

		c, err := PlanClosing(inst, []*bid.Bid{withdrawn})
		require.NoError(t, err)
		assert.Nil(t, c.Winner)
		assert.Equal(t, ReasonNoAcceptableBid, c.ExpireReason)
		assert.Empty(t, c.Rejected)
	})

	t.Run("rule filters candidates", func(t *testing.T) {
		inst := newInstance(t, 1, 5)
		inst.CurrentParticipants = 3
		inst.BidRule = "amount <= base_price * participants"
		tooHigh := mkBid(5000, now)
		ok := mkBid(2500, now.Add(time.Second))

		c, err := PlanClosing(inst, []*bid.Bid{tooHigh, ok})
		require.NoError(t, err)
		require.NotNil(t, c.Winner)
		assert.Equal(t, ok.BidID, c.Winner.BidID)
		require.Len(t, c.Rejected, 1)
		assert.Equal(t, tooHigh.BidID, c.Rejected[0].BidID)
	})

	t.Run("winner and rejected", func(t *testing.T) {
		inst := newInstance(t, 1, 5)
		inst.CurrentParticipants = 1
		a := mkBid(100, now)
		b := mkBid(200, now)

		c, err := PlanClosing(inst, []*bid.Bid{a, b})
		require.NoError(t, err)
		assert.Equal(t, b.BidID, c.Winner.BidID)
		assert.Empty(t, c.ExpireReason)
		require.Len(t, c.Rejected, 1)
		assert.Equal(t, a.BidID, c.Rejected[0].BidID)
	})
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("recruiting")
	assert.True(t, ok)
	assert.Equal(t, StatusRecruiting, s)

	_, ok = ParseStatus("bogus")
	assert.False(t, ok)
}
