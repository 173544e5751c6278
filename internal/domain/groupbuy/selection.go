package groupbuy

import (
	"bytes"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
)

// SelectWinner picks the winning bid among candidates: highest amount first,
// then earliest submission. The bid id breaks any remaining tie so the result
// is deterministic. Returns nil when candidates is empty.
func SelectWinner(candidates []*bid.Bid) *bid.Bid {
	var winner *bid.Bid
	for _, b := range candidates {
		if winner == nil || outranks(b, winner) {
			winner = b
		}
	}
	return winner
}

func outranks(a, b *bid.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return bytes.Compare(a.BidID[:], b.BidID[:]) < 0
}

// Closing is the outcome of evaluating an instance at bid close.
type Closing struct {
	Winner   *bid.Bid
	Rejected []*bid.Bid
	// ExpireReason is set when the instance expires instead of advancing.
	ExpireReason string
}

// Expire reasons.
const (
	ReasonInsufficientParticipants = "insufficient participants"
	ReasonNoAcceptableBid          = "no acceptable bid"
)

// PlanClosing decides how a recruiting instance closes given its bids.
// Only pending bids are considered; every pending bid other than the winner
// ends up in Rejected.
func PlanClosing(inst *Instance, bids []*bid.Bid) (*Closing, error) {
	pending := make([]*bid.Bid, 0, len(bids))
	for _, b := range bids {
		if b.IsPending() {
			pending = append(pending, b)
		}
	}
	if inst.CurrentParticipants < inst.MinParticipants {
		return &Closing{Rejected: pending, ExpireReason: ReasonInsufficientParticipants}, nil
	}
	acceptable := make([]*bid.Bid, 0, len(pending))
	for _, b := range pending {
		ok, err := EvaluateBidRule(inst, b)
		if err != nil {
			return nil, err
		}
		if ok {
			acceptable = append(acceptable, b)
		}
	}
	winner := SelectWinner(acceptable)
	if winner == nil {
		return &Closing{Rejected: pending, ExpireReason: ReasonNoAcceptableBid}, nil
	}
	c := &Closing{Winner: winner}
	for _, b := range pending {
		if b.BidID != winner.BidID {
			c.Rejected = append(c.Rejected, b)
		}
	}
	return c, nil
}
