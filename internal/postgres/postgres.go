package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is what every repository method runs against: the pool, or the
// transaction carried in the context by WithinTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the relational repositories over one connection pool.
type Store struct {
	db DB
}

// NewStore wraps an established pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", repository.ErrConnection, err)
	}
	return pool, nil
}

func (s *Store) Users() repository.UserRepository             { return (*userRepo)(s) }
func (s *Store) Tenants() repository.TenantRepository         { return (*tenantRepo)(s) }
func (s *Store) Credentials() repository.CredentialRepository { return (*credentialRepo)(s) }
func (s *Store) Fingerprints() repository.FingerprintRepository {
	return (*fingerprintRepo)(s)
}
func (s *Store) Sessions() session.Repository   { return (*SessionRepo)(s) }
func (s *Store) Codes() verification.Repository { return (*CodeRepo)(s) }

type (
	userRepo        Store
	tenantRepo      Store
	credentialRepo  Store
	fingerprintRepo Store

	// SessionRepo implements session.Repository.
	SessionRepo Store
	// CodeRepo implements verification.Repository.
	CodeRepo Store
)

type txKey struct{}

func txFrom(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithinTx runs fn inside a transaction that carries the tenant id as the
// app.tenant_id session variable for row-level security. Nested calls reuse
// the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrTransaction, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
		return mapError(err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrTransaction, err)
	}
	return nil
}

// mapError folds driver failures onto the repository error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w (%s)", repository.ErrDuplicate, pgErr.ConstraintName)
		case pgErr.Code == "40001":
			return repository.ErrSerialization
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %s", repository.ErrValidation, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %s", repository.ErrConnection, pgErr.Message)
		}
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", repository.ErrConnection, err)
	}
	return fmt.Errorf("%w: %v", repository.ErrDatabase, err)
}
