package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"

	connectionUniqueConstraint = "connections_profile_org_key"

	defaultTxMaxAttempts = 3
)

// ErrTxRetriesExhausted wraps the last error of a transaction that kept
// failing with a retryable error.
var ErrTxRetriesExhausted = errors.New("transaction retries exhausted")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db          *sql.DB
	maxAttempts int
	repository.Repositories
}

func NewStore(db *sql.DB, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxMaxAttempts
	}
	return &Store{
		db:           db,
		maxAttempts:  maxAttempts,
		Repositories: *newRepositories(db),
	}
}

func newRepositories(db DBTX) *repository.Repositories {
	return &repository.Repositories{
		Connections:          NewConnectionRepository(db),
		Messages:             NewConnectionMessageRepository(db),
		Profiles:             NewProfileRepository(db),
		Organizations:        NewOrganizationRepository(db),
		Notifications:        NewNotificationRepository(db),
		AnonymousConnections: NewAnonymousConnectionRepository(db),
	}
}

// Repos returns repositories bound to the connection pool, outside any transaction.
func (s *Store) Repos() *repository.Repositories {
	return &s.Repositories
}

// WithinTx runs fn in a transaction, retrying on serialization failures and deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		telemetry.TxRetriesTotal.Inc()
		logger.Warn("Retrying transaction", "attempt", attempt, "max_attempts", s.maxAttempts, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %w", ErrTxRetriesExhausted, err)
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
	}
	return err
}

func nullableInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}

func int32Ptr(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	i := v.Int32
	return &i
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
