// Package store groups the repositories that must change together and the
// unit of work that makes those changes atomic.
package store

import (
	"context"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
)

// Repositories is a consistent set of repositories bound to one connection
// or transaction.
type Repositories struct {
	Instances groupbuy.Repository
	Bids      bid.Repository
	Tokens    token.Repository
	Decisions decision.Repository
	Disputes  dispute.Repository
}

// UnitOfWork runs a function against transaction-scoped repositories.
// Returning an error from fn rolls back every write made through repos.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Repositories() Repositories
}
