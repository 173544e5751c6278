// Package memory is an in-process storage driver. All transactions are
// serialized by one mutex; a transaction works on a copy of the state that
// replaces the shared state only when the transaction function succeeds.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
)

type state struct {
	seq            int64
	instances      map[uuid.UUID]*groupbuy.Instance
	participations map[uuid.UUID]*groupbuy.Participation
	bids           map[uuid.UUID]*bid.Bid
	grants         map[uuid.UUID]*token.Grant
	consumptions   map[uuid.UUID]*token.Consumption
	decisions      map[uuid.UUID]*decision.Record
	reports        map[uuid.UUID]*dispute.Report
	objections     map[uuid.UUID]*dispute.Objection
}

func newState() *state {
	return &state{
		instances:      map[uuid.UUID]*groupbuy.Instance{},
		participations: map[uuid.UUID]*groupbuy.Participation{},
		bids:           map[uuid.UUID]*bid.Bid{},
		grants:         map[uuid.UUID]*token.Grant{},
		consumptions:   map[uuid.UUID]*token.Consumption{},
		decisions:      map[uuid.UUID]*decision.Record{},
		reports:        map[uuid.UUID]*dispute.Report{},
		objections:     map[uuid.UUID]*dispute.Objection{},
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func cloneMap[T any](m map[uuid.UUID]*T, cp func(*T) *T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

func shallow[T any](v *T) *T {
	c := *v
	return &c
}

func copyReport(r *dispute.Report) *dispute.Report {
	c := *r
	c.Evidence = append([]dispute.Evidence(nil), r.Evidence...)
	return &c
}

func copyObjection(o *dispute.Objection) *dispute.Objection {
	c := *o
	c.Evidence = append([]dispute.Evidence(nil), o.Evidence...)
	return &c
}

func (s *state) clone() *state {
	return &state{
		seq:            s.seq,
		instances:      cloneMap(s.instances, shallow[groupbuy.Instance]),
		participations: cloneMap(s.participations, shallow[groupbuy.Participation]),
		bids:           cloneMap(s.bids, shallow[bid.Bid]),
		grants:         cloneMap(s.grants, shallow[token.Grant]),
		consumptions:   cloneMap(s.consumptions, shallow[token.Consumption]),
		decisions:      cloneMap(s.decisions, shallow[decision.Record]),
		reports:        cloneMap(s.reports, copyReport),
		objections:     cloneMap(s.objections, copyObjection),
	}
}

// Store implements store.UnitOfWork in memory.
type Store struct {
	mu    sync.Mutex
	state *state
	audit *AuditRepository
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState(), audit: &AuditRepository{}}
}

// session binds repositories either to the shared state (tx == nil) or to a
// transaction's private copy.
type session struct {
	store *Store
	tx    *state
}

func (s *session) view(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn(s.store.state)
}

func (s *session) repositories() store.Repositories {
	return store.Repositories{
		Instances: &instanceRepository{s},
		Bids:      &bidRepository{s},
		Tokens:    &tokenRepository{s},
		Decisions: &decisionRepository{s},
		Disputes:  &disputeRepository{s},
	}
}

// Repositories returns repositories that operate outside any transaction.
func (st *Store) Repositories() store.Repositories {
	return (&session{store: st}).repositories()
}

// WithinTx runs fn against a private copy of the state.
func (st *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	tx := st.state.clone()
	if err := fn(ctx, (&session{store: st, tx: tx}).repositories()); err != nil {
		return err
	}
	st.state = tx
	return nil
}

// Audit returns the audit log repository.
func (st *Store) Audit() audit.Repository {
	return st.audit
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
