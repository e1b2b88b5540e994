package points

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/karibapp/karib/internal/tracing"
)

// PostgresLedger implements Ledger on an append-only point_awards table.
// Totals are computed with SUM rather than a counter column, so the ledger
// stays the audit trail and totals can never drift from it.
type PostgresLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresLedger creates a new PostgresLedger.
func NewPostgresLedger(db *sql.DB, logger *slog.Logger) *PostgresLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLedger{db: db, logger: logger}
}

// Award appends a points entry for the user.
func (l *PostgresLedger) Award(ctx context.Context, userID string, amount int64, reason string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "point_awards", tracing.DBOperationInsert)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO point_awards (user_id, amount, reason) VALUES ($1, $2, $3)`,
		userID, amount, reason)
	endSpan(err)
	if err != nil {
		l.logger.Error("failed to award points",
			"error", err, "user_id", userID, "reason", reason)
		return fmt.Errorf("%w: award failed: %v", ErrUnavailable, err)
	}
	return nil
}

// Total returns the user's accumulated points. Unknown users have zero.
func (l *PostgresLedger) Total(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "point_awards", tracing.DBOperationQuery)
	var total int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM point_awards WHERE user_id = $1`,
		userID).Scan(&total)
	endSpan(err)
	if err != nil {
		return 0, fmt.Errorf("%w: total failed: %v", ErrUnavailable, err)
	}
	return total, nil
}
