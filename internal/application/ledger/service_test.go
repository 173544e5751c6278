package ledger

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
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
	"github.com/groupbuy-hub/groupbuy-hub/internal/testutil"
)

func newService(t *testing.T) (*Service, *memory.Store, *testutil.Clock) {
	t.Helper()
	st := memory.NewStore()
	clock := testutil.NewClock()
	svc := NewService(st, appAudit.NewService(st.Audit(), zerolog.Nop(), nil), zerolog.Nop())
	svc.SetClock(clock.Now)
	return svc, st, clock
}

func TestGrant_RequiresAdmin(t *testing.T) {
	svc, _, _ := newService(t)
	seller := testutil.Seller()

	_, err := svc.Grant(context.Background(), seller, GrantRequest{SellerID: seller.UserID, Type: token.GrantSingleUse, Quantity: 1})
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}

func TestGrantForPurchase_IsIdempotentByOrderID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	admin, seller := testutil.Admin(), testutil.Seller()
	req := GrantRequest{SellerID: seller.UserID, Type: token.GrantSingleUse, Quantity: 3, ExternalOrderID: "pay-42"}

	first, created, err := svc.GrantForPurchase(ctx, admin, req)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.GrantForPurchase(ctx, admin, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.GrantID, again.GrantID)

	bal, err := svc.GetAvailableBalance(ctx, seller, seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, bal.Available)

	_, _, err = svc.GrantForPurchase(ctx, admin, GrantRequest{SellerID: seller.UserID, Type: token.GrantSingleUse, Quantity: 1})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestGetAvailableBalance_Visibility(t *testing.T) {
	svc, _, _ := newService(t)
	seller := testutil.Seller()

	_, err := svc.GetAvailableBalance(context.Background(), testutil.Seller(), seller.UserID)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	_, err = svc.GetAvailableBalance(context.Background(), testutil.Admin(), seller.UserID)
	assert.NoError(t, err)
}

func TestReserve_DebitsEarliestExpiryAndRecordsConsumption(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newService(t)
	admin, seller := testutil.Admin(), testutil.Seller()

	late := clock.Now().Add(30 * 24 * time.Hour)
	soon := clock.Now().Add(2 * 24 * time.Hour)
	_, err := svc.Grant(ctx, admin, GrantRequest{SellerID: seller.UserID, Type: token.GrantSingleUse, Quantity: 2, ExpiresAt: &late})
	require.NoError(t, err)
	soonGrant, err := svc.Grant(ctx, admin, GrantRequest{SellerID: seller.UserID, Type: token.GrantSingleUse, Quantity: 1, ExpiresAt: &soon})
	require.NoError(t, err)

	instanceID, bidID := uuid.New(), uuid.New()
	var bal token.Balance
	err = st.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		bal, err = svc.Reserve(ctx, repos.Tokens, seller.UserID, instanceID, bidID, clock.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, bal.Available)

	grants, err := svc.ListGrants(ctx, seller, seller.UserID)
	require.NoError(t, err)
	for _, g := range grants {
		if g.GrantID == soonGrant.GrantID {
			assert.Equal(t, 0, g.Remaining)
		}
	}

	consumed, err := svc.ListConsumptions(ctx, seller, seller.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	assert.Equal(t, soonGrant.GrantID, *consumed[0].GrantID)
	assert.Equal(t, bidID, consumed[0].BidID)
}

func TestReserve_SubscriptionDoesNotDebit(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newService(t)
	admin, seller := testutil.Admin(), testutil.Seller()
	until := clock.Now().Add(7 * 24 * time.Hour)
	_, err := svc.Grant(ctx, admin, GrantRequest{SellerID: seller.UserID, Type: token.GrantSubscription, ExpiresAt: &until})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = st.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			bal, err := svc.Reserve(ctx, repos.Tokens, seller.UserID, uuid.New(), uuid.New(), clock.Now())
			assert.True(t, bal.Unlimited)
			return err
		})
		require.NoError(t, err)
	}

	consumed, err := svc.ListConsumptions(ctx, seller, seller.UserID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, consumed, 3)
	assert.True(t, consumed[0].Unlimited)

	clock.Advance(8 * 24 * time.Hour)
	err = st.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, err := svc.Reserve(ctx, repos.Tokens, seller.UserID, uuid.New(), uuid.New(), clock.Now())
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrInsufficientTokens))
}
