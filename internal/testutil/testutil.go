// Package testutil holds fixtures shared by service tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
)

// Epoch is the default start of every test clock.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func actor(role user.Role) user.Actor {
	return user.Actor{UserID: uuid.New(), Role: role, ProfileComplete: true}
}

func Buyer() user.Actor  { return actor(user.RoleBuyer) }
func Seller() user.Actor { return actor(user.RoleSeller) }
func Admin() user.Actor  { return actor(user.RoleAdmin) }

// SeedInstance stores a recruiting instance created by creator that ends a
// day after the clock's current time.
func SeedInstance(t *testing.T, st *memory.Store, clock *Clock, creator user.Actor, minP, maxP int) *groupbuy.Instance {
	t.Helper()
	inst, err := groupbuy.NewInstance(creator.UserID, groupbuy.NewInstanceInput{
		Title:           "Organic olive oil, 12 bottles",
		Product:         groupbuy.Product{ProductID: "sku-olive", Name: "Olive oil", BasePrice: 12000},
		MinParticipants: minP,
		MaxParticipants: maxP,
		EndTime:         clock.Now().Add(24 * time.Hour),
	}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, st.Repositories().Instances.Create(context.Background(), inst))
	return inst
}

// SeedParticipant stores an active participation and bumps the count.
func SeedParticipant(t *testing.T, st *memory.Store, clock *Clock, inst *groupbuy.Instance, buyer user.Actor) {
	t.Helper()
	ctx := context.Background()
	repos := st.Repositories()
	current, err := repos.Instances.GetByID(ctx, inst.InstanceID)
	require.NoError(t, err)
	require.NoError(t, current.AddParticipant(clock.Now()))
	require.NoError(t, repos.Instances.Update(ctx, current))
	require.NoError(t, repos.Instances.CreateParticipation(ctx, groupbuy.NewParticipation(inst.InstanceID, buyer.UserID, clock.Now())))
	*inst = *current
}

// SeedBid stores a pending bid without touching the ledger.
func SeedBid(t *testing.T, st *memory.Store, inst *groupbuy.Instance, seller user.Actor, amount int64, at time.Time) *bid.Bid {
	t.Helper()
	b := bid.NewBid(inst.InstanceID, seller.UserID, amount, "", at)
	require.NoError(t, st.Repositories().Bids.Create(context.Background(), b))
	return b
}

// SeedTokens grants qty single-use tokens expiring in 90 days.
func SeedTokens(t *testing.T, st *memory.Store, clock *Clock, seller user.Actor, qty int) *token.Grant {
	t.Helper()
	expires := clock.Now().Add(90 * 24 * time.Hour)
	g, err := token.NewGrant(token.GrantInput{
		SellerID: seller.UserID, Type: token.GrantSingleUse, Source: token.SourceAdmin,
		Quantity: qty, ExpiresAt: &expires, GrantedBy: "test",
	}, clock.Now())
	require.NoError(t, err)
	_, err = st.Repositories().Tokens.InsertGrant(context.Background(), g)
	require.NoError(t, err)
	return g
}
