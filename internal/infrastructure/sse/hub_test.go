package sse

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
)

func TestHub_DeliversToRecipientsOnly(t *testing.T) {
	h := NewHub(4)
	alice, bob := uuid.New(), uuid.New()
	ca := h.Register(alice, false)
	cb := h.Register(bob, false)
	admin := h.Register(uuid.New(), true)

	e := event.New(event.BidSelected, uuid.New(), []uuid.UUID{alice}, nil, time.Now())
	require.NoError(t, h.Deliver(context.Background(), e))

	got := <-ca.Messages
	assert.Equal(t, e.EventID, got.EventID)
	assert.Len(t, cb.Messages, 0)
	assert.Len(t, admin.Messages, 1)
}

func TestHub_FullClientDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	user := uuid.New()
	c := h.Register(user, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Deliver(context.Background(), event.New(event.DecisionRecorded, uuid.New(), []uuid.UUID{user}, nil, time.Now())))
	}
	assert.Len(t, c.Messages, 1)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	h := NewHub(1)
	c := h.Register(uuid.New(), false)
	assert.Equal(t, 1, h.ClientCount())

	h.Unregister(c.ClientID)
	h.Unregister(c.ClientID)
	_, open := <-c.Messages
	assert.False(t, open)
	assert.Zero(t, h.ClientCount())
}
