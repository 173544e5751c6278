package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements store.UnitOfWork on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Repositories returns repositories running on the pool outside any
// transaction.
func (s *Store) Repositories() store.Repositories {
	return bind(s.pool)
}

// WithinTx runs fn in one transaction. Row locks taken through the
// ForUpdate methods are held until fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

func bind(q querier) store.Repositories {
	return store.Repositories{
		Instances: &InstanceRepository{q: q},
		Bids:      &BidRepository{q: q},
		Tokens:    &TokenRepository{q: q},
		Decisions: &DecisionRepository{q: q},
		Disputes:  &DisputeRepository{q: q},
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// filter accumulates WHERE clauses and their positional arguments.
type filter struct {
	clauses []string
	args    []interface{}
}

// add appends "column op $n" bound to v.
func (f *filter) add(column, op string, v interface{}) {
	f.args = append(f.args, v)
	f.clauses = append(f.clauses, column+op+"$"+itoa(len(f.args)))
}

// raw appends a clause whose $? placeholders all bind to v.
func (f *filter) raw(clause string, v interface{}) {
	f.args = append(f.args, v)
	f.clauses = append(f.clauses, strings.ReplaceAll(clause, "$?", "$"+itoa(len(f.args))))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// paginate appends ORDER BY and, for a positive limit, LIMIT/OFFSET.
func paginate(query string, args []interface{}, orderBy string, limit, offset int) (string, []interface{}) {
	query += " ORDER BY " + orderBy
	if limit > 0 {
		query += " LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
		args = append(args, limit, offset)
	}
	return query, args
}
