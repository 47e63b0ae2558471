package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// InTransaction reports whether db is bound to an open transaction.
func InTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	committer, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok && committer != nil
}

// WithTransaction runs fn in db's open transaction when there is one,
// otherwise it opens a transaction and commits or rolls back around fn.
// Callers composing several writes pass their tx so everything commits together.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return errors.New("with transaction: db is nil")
	}
	if InTransaction(db) {
		return asConcurrencyError(fn(db.WithContext(ctx)))
	}
	return asConcurrencyError(db.WithContext(ctx).Transaction(fn))
}

// asConcurrencyError turns lock conflicts reported by the driver into models.ConcurrencyError.
func asConcurrencyError(err error) error {
	if err == nil {
		return nil
	}
	var concurrencyErr *models.ConcurrencyError
	if errors.As(err, &concurrencyErr) {
		return err
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout {
			return &models.ConcurrencyError{Err: err}
		}
		return err
	}
	// sqlite reports busy/locked databases only through the message.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return &models.ConcurrencyError{Err: err}
	}
	return err
}

// RetryOnConcurrency calls fn until it succeeds, fails with something other than a
// ConcurrencyError, or attempts run out.
func RetryOnConcurrency(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, models.ErrConcurrency) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*50) * time.Millisecond):
		}
	}
	return err
}
