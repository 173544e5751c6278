package bid

import (
	"time"

	"github.com/google/uuid"
)

// Status represents bid status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusWithdrawn Status = "WITHDRAWN"
	StatusSelected  Status = "SELECTED"
	StatusRejected  Status = "REJECTED"
)

// Bid is one seller's offer against one group-purchase instance.
type Bid struct {
	ID              int64      `json:"-"`
	BidID           uuid.UUID  `json:"bidId"`
	InstanceID      uuid.UUID  `json:"instanceId"`
	SellerID        uuid.UUID  `json:"sellerId"`
	Amount          int64      `json:"amount"`
	Terms           string     `json:"terms,omitempty"`
	Status          Status     `json:"status"`
	Revision        int        `json:"revision"`
	ClientRequestID *string    `json:"clientRequestId,omitempty"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	WithdrawnAt     *time.Time `json:"withdrawnAt,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewBid creates a pending bid.
func NewBid(instanceID, sellerID uuid.UUID, amount int64, terms string, now time.Time) *Bid {
	return &Bid{
		BidID:       uuid.New(),
		InstanceID:  instanceID,
		SellerID:    sellerID,
		Amount:      amount,
		Terms:       terms,
		Status:      StatusPending,
		Revision:    1,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (b *Bid) IsPending() bool {
	return b.Status == StatusPending
}

// Replace overwrites the offer in place. A replaced bid counts as a fresh
// submission for tie-breaking.
func (b *Bid) Replace(amount int64, terms string, now time.Time) {
	b.Amount = amount
	b.Terms = terms
	b.Revision++
	b.SubmittedAt = now
	b.UpdatedAt = now
}

func (b *Bid) Withdraw(now time.Time) {
	b.Status = StatusWithdrawn
	b.WithdrawnAt = &now
	b.UpdatedAt = now
}

func (b *Bid) Select(now time.Time) {
	b.Status = StatusSelected
	b.ResolvedAt = &now
	b.UpdatedAt = now
}

func (b *Bid) Reject(now time.Time) {
	b.Status = StatusRejected
	b.ResolvedAt = &now
	b.UpdatedAt = now
}
