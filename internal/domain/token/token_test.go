package token

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func grant(t *testing.T, typ GrantType, qty int, expires *time.Time, issued time.Time) *Grant {
	t.Helper()
	g, err := NewGrant(GrantInput{SellerID: uuid.New(), Type: typ, Source: SourceAdmin, Quantity: qty, ExpiresAt: expires}, issued)
	require.NoError(t, err)
	return g
}

func TestNewGrant_Validation(t *testing.T) {
	seller := uuid.New()

	_, err := NewGrant(GrantInput{SellerID: seller, Type: GrantSingleUse, Quantity: 0}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = NewGrant(GrantInput{SellerID: seller, Type: GrantSubscription}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = NewGrant(GrantInput{SellerID: seller, Type: GrantSingleUse, Quantity: 1, ExpiresAt: ptrTime(now.Add(-time.Hour))}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = NewGrant(GrantInput{SellerID: seller, Type: "BOGUS", Quantity: 1}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	empty := ""
	g, err := NewGrant(GrantInput{SellerID: seller, Type: GrantSingleUse, Quantity: 5, ExternalOrderID: &empty}, now)
	require.NoError(t, err)
	assert.Equal(t, 5, g.Remaining)
	assert.Nil(t, g.ExternalOrderID)
	assert.Nil(t, g.ExpiresAt)
}

func TestComputeBalance(t *testing.T) {
	t.Run("sums unexpired single-use", func(t *testing.T) {
		grants := []*Grant{
			grant(t, GrantSingleUse, 3, ptrTime(now.Add(time.Hour)), now.Add(-time.Hour)),
			grant(t, GrantSingleUse, 2, nil, now.Add(-time.Hour)),
			grant(t, GrantSingleUse, 4, ptrTime(now.Add(time.Minute)), now.Add(-time.Hour)),
		}
		bal := ComputeBalance(grants, now.Add(2*time.Minute))
		assert.False(t, bal.Unlimited)
		assert.Equal(t, 5, bal.Available)
		assert.True(t, bal.CanBid())
	})

	t.Run("active subscription is unlimited", func(t *testing.T) {
		sub := grant(t, GrantSubscription, 0, ptrTime(now.Add(24*time.Hour)), now)
		bal := ComputeBalance([]*Grant{sub}, now.Add(time.Hour))
		assert.True(t, bal.Unlimited)
		require.NotNil(t, bal.SubscriptionUntil)
		assert.Equal(t, now.Add(24*time.Hour), *bal.SubscriptionUntil)

		expired := ComputeBalance([]*Grant{sub}, now.Add(25*time.Hour))
		assert.False(t, expired.Unlimited)
		assert.False(t, expired.CanBid())
	})
}

func TestPickForDebit(t *testing.T) {
	noExpiry := grant(t, GrantSingleUse, 1, nil, now.Add(-3*time.Hour))
	late := grant(t, GrantSingleUse, 1, ptrTime(now.Add(48*time.Hour)), now.Add(-2*time.Hour))
	soon := grant(t, GrantSingleUse, 1, ptrTime(now.Add(time.Hour)), now.Add(-time.Hour))
	empty := grant(t, GrantSingleUse, 1, ptrTime(now.Add(time.Minute)), now.Add(-time.Hour))
	empty.Remaining = 0

	picked := PickForDebit([]*Grant{noExpiry, late, soon, empty}, now)
	require.NotNil(t, picked)
	assert.Equal(t, soon.GrantID, picked.GrantID)

	picked = PickForDebit([]*Grant{noExpiry, late}, now.Add(72*time.Hour))
	require.NotNil(t, picked)
	assert.Equal(t, noExpiry.GrantID, picked.GrantID)

	assert.Nil(t, PickForDebit([]*Grant{empty}, now))
}
