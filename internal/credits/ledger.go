// Package credits reads and debits the per-user credit balance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"promoreel/internal/domain"
	"promoreel/internal/infra"
	"promoreel/internal/sqlinline"
)

// Ledger is the Postgres-backed credit store. Balances live in the
// "user".credits column.
type Ledger struct {
	sql infra.TxExecutor
}

func NewLedger(sql infra.TxExecutor) *Ledger {
	return &Ledger{sql: sql}
}

// Balance returns the user's current credits.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}
	var credits int64
	if err := l.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, userID).Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("load credits: %w", err)
	}
	return credits, nil
}

// HasSufficientCredits reports whether the balance covers amount. Unknown
// users have no credits.
func (l *Ledger) HasSufficientCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return balance >= amount, nil
}

// Deduct debits amount under a row lock and returns the new balance. The
// balance never goes negative.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}
	var remaining int64
	err := l.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		var current int64
		if err := tx.QueryRow(ctx, sqlinline.QSelectUserCreditsForUpdate, userID).Scan(&current); err != nil {
			if infra.IsNoRows(err) {
				return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
			}
			return fmt.Errorf("lock credits: %w", err)
		}
		if current < amount {
			return fmt.Errorf("balance %d below %d: %w", current, amount, domain.ErrInsufficientCredits)
		}
		remaining = current - amount
		if _, err := tx.Exec(ctx, sqlinline.QUpdateUserCredits, userID, remaining); err != nil {
			return fmt.Errorf("update credits: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Grant adds amount to the balance and returns the new total.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	var credits int64
	if err := l.sql.QueryRow(ctx, sqlinline.QGrantUserCredits, strings.TrimSpace(userID), amount).Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	return credits, nil
}
