package token

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

// GrantType distinguishes counted grants from time-boxed subscriptions.
type GrantType string

const (
	GrantSingleUse    GrantType = "SINGLE_USE"
	GrantSubscription GrantType = "SUBSCRIPTION"
)

// Source records where a grant came from.
type Source string

const (
	SourceAdmin    Source = "ADMIN"
	SourcePurchase Source = "PURCHASE"
)

// Grant is a batch of bid entitlements held by a seller.
type Grant struct {
	ID              int64      `json:"-"`
	GrantID         uuid.UUID  `json:"grantId"`
	SellerID        uuid.UUID  `json:"sellerId"`
	Type            GrantType  `json:"type"`
	Source          Source     `json:"source"`
	Quantity        int        `json:"quantity"`
	Remaining       int        `json:"remaining"`
	IssuedAt        time.Time  `json:"issuedAt"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	ExternalOrderID *string    `json:"externalOrderId,omitempty"`
	GrantedBy       string     `json:"grantedBy"`
}

// GrantInput carries grant parameters.
type GrantInput struct {
	SellerID        uuid.UUID
	Type            GrantType
	Source          Source
	Quantity        int
	ExpiresAt       *time.Time
	ExternalOrderID *string
	GrantedBy       string
}

// NewGrant validates input and creates a grant. Subscriptions must carry an
// expiry that closes their window; single-use grants may omit it.
func NewGrant(in GrantInput, now time.Time) (*Grant, error) {
	switch in.Type {
	case GrantSingleUse:
		if in.Quantity < 1 {
			return nil, errs.Validation("quantity must be at least 1")
		}
	case GrantSubscription:
		if in.ExpiresAt == nil {
			return nil, errs.Validation("subscription grants require an expiry")
		}
		in.Quantity = 0
	default:
		return nil, errs.Validation("unknown grant type %q", in.Type)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, errs.Validation("expiry must be in the future")
	}
	if in.ExternalOrderID != nil && *in.ExternalOrderID == "" {
		in.ExternalOrderID = nil
	}
	var expires *time.Time
	if in.ExpiresAt != nil {
		e := in.ExpiresAt.UTC()
		expires = &e
	}
	return &Grant{
		GrantID:         uuid.New(),
		SellerID:        in.SellerID,
		Type:            in.Type,
		Source:          in.Source,
		Quantity:        in.Quantity,
		Remaining:       in.Quantity,
		IssuedAt:        now,
		ExpiresAt:       expires,
		ExternalOrderID: in.ExternalOrderID,
		GrantedBy:       in.GrantedBy,
	}, nil
}

// Expired reports whether the grant is unusable at now. Expiry is evaluated
// lazily; expired grants are never deleted.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// Covers reports whether a subscription window contains now.
func (g *Grant) Covers(now time.Time) bool {
	return g.Type == GrantSubscription && !now.Before(g.IssuedAt) && !g.Expired(now)
}

// Usable reports whether a single-use grant can be debited at now.
func (g *Grant) Usable(now time.Time) bool {
	return g.Type == GrantSingleUse && g.Remaining > 0 && !g.Expired(now)
}

// Balance is a seller's available entitlement.
type Balance struct {
	Unlimited         bool       `json:"unlimited"`
	Available         int        `json:"available"`
	SubscriptionUntil *time.Time `json:"subscriptionUntil,omitempty"`
}

// CanBid reports whether at least one bid can be placed.
func (b Balance) CanBid() bool {
	return b.Unlimited || b.Available > 0
}

// ComputeBalance sums unexpired single-use grants and detects an active
// subscription.
func ComputeBalance(grants []*Grant, now time.Time) Balance {
	var bal Balance
	for _, g := range grants {
		switch {
		case g.Covers(now):
			bal.Unlimited = true
			if bal.SubscriptionUntil == nil || g.ExpiresAt.After(*bal.SubscriptionUntil) {
				until := *g.ExpiresAt
				bal.SubscriptionUntil = &until
			}
		case g.Usable(now):
			bal.Available += g.Remaining
		}
	}
	return bal
}

// PickForDebit returns the single-use grant to debit: earliest expiry first,
// grants without expiry last, then oldest issue. Returns nil when nothing is usable.
func PickForDebit(grants []*Grant, now time.Time) *Grant {
	usable := make([]*Grant, 0, len(grants))
	for _, g := range grants {
		if g.Usable(now) {
			usable = append(usable, g)
		}
	}
	if len(usable) == 0 {
		return nil
	}
	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.IssuedAt.Before(b.IssuedAt)
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		case !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		default:
			return a.IssuedAt.Before(b.IssuedAt)
		}
	})
	return usable[0]
}

// Consumption records one token debit.
type Consumption struct {
	ID            int64      `json:"-"`
	ConsumptionID uuid.UUID  `json:"consumptionId"`
	SellerID      uuid.UUID  `json:"sellerId"`
	GrantID       *uuid.UUID `json:"grantId,omitempty"`
	InstanceID    uuid.UUID  `json:"instanceId"`
	BidID         uuid.UUID  `json:"bidId"`
	Unlimited     bool       `json:"unlimited"`
	ConsumedAt    time.Time  `json:"consumedAt"`
}
