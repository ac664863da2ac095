package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type TxConfig struct {
	// Isolation is "read_committed" or "serializable".
	Isolation     string
	MaxRetries    uint64
	RetryInterval time.Duration
	// OnRetry is called before each retried attempt.
	OnRetry func()
}

type txManager struct {
	db     *sqlx.DB
	opts   *sql.TxOptions
	config TxConfig
}

func NewTxManager(db *sqlx.DB, config TxConfig) repository.TxManager {
	level := sql.LevelReadCommitted
	if strings.EqualFold(config.Isolation, "serializable") {
		level = sql.LevelSerializable
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 20 * time.Millisecond
	}
	return &txManager{
		db:     db,
		opts:   &sql.TxOptions{Isolation: level},
		config: config,
	}
}

func (m *txManager) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.config.RetryInterval
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if attempt > 0 && m.config.OnRetry != nil {
			m.config.OnRetry()
		}
		attempt++
		err := m.withTx(ctx, fn)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, m.config.MaxRetries), ctx))
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %w", repository.ErrRetryExhausted, err)
	}
	return err
}

// withTx executes a function within a transaction
func (m *txManager) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isRetryable(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// translate maps constraint violations onto repository sentinels and keeps the
// driver error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	switch pqCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	case codeExclusionViolation:
		return fmt.Errorf("%w: %w", repository.ErrOverlap, err)
	}
	return err
}
