package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/germesbot/germes/internal/models"
)

type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// Find returns the ledger row for a user, or nil when none exists yet.
func (r *CreditRepository) Find(ctx context.Context, userID int64) (*models.UserCredit, error) {
	const query = `SELECT user_id, balance, images_generated FROM user_credit WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var c models.UserCredit
	if err := row.Scan(&c.UserID, &c.Balance, &c.ImagesGenerated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan credit: %w", err)
	}
	return &c, nil
}

// EnsureRow lazily creates the zero ledger row. Losing an insert race
// to a concurrent first-time charge is success: exactly one row ends up
// in the table either way.
func (r *CreditRepository) EnsureRow(ctx context.Context, userID int64) error {
	existing, err := r.Find(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	const query = `INSERT INTO user_credit (user_id, balance, images_generated) VALUES (?, 0, 0)`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		if isDuplicateKey(err) {
			return nil
		}
		return fmt.Errorf("insert credit row: %w", err)
	}
	return nil
}

// Charge attempts to add price to the user's balance, guarded by the
// cap, in a single statement. The store evaluates the guard and the
// update atomically against the row, so two concurrent charges can
// never both read a pre-charge balance and both commit. The same holds
// against a concurrently writing admin console.
func (r *CreditRepository) Charge(ctx context.Context, userID int64, price, cap float64) (bool, error) {
	const query = `
UPDATE user_credit
SET balance = balance + ?, images_generated = images_generated + 1
WHERE user_id = ? AND balance + ? <= ?`
	res, err := r.db.ExecContext(ctx, query, price, userID, price, cap)
	if err != nil {
		return false, fmt.Errorf("charge credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("charge rows affected: %w", err)
	}
	return affected > 0, nil
}

// Refund compensates a charge whose generation subsequently failed.
// Guarded so a concurrent administrative reset cannot drive the
// balance negative.
func (r *CreditRepository) Refund(ctx context.Context, userID int64, price float64) (bool, error) {
	const query = `
UPDATE user_credit
SET balance = balance - ?, images_generated = images_generated - 1
WHERE user_id = ? AND balance >= ? AND images_generated > 0`
	res, err := r.db.ExecContext(ctx, query, price, userID, price)
	if err != nil {
		return false, fmt.Errorf("refund credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refund rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetBalance is administrative: it bypasses the cap entirely.
func (r *CreditRepository) SetBalance(ctx context.Context, userID int64, balance float64) error {
	if err := r.EnsureRow(ctx, userID); err != nil {
		return err
	}
	const query = `UPDATE user_credit SET balance = ? WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, balance, userID); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (r *CreditRepository) List(ctx context.Context) ([]models.UserCredit, error) {
	const query = `SELECT user_id, balance, images_generated FROM user_credit ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var credits []models.UserCredit
	for rows.Next() {
		var c models.UserCredit
		if err := rows.Scan(&c.UserID, &c.Balance, &c.ImagesGenerated); err != nil {
			return nil, fmt.Errorf("scan credit list: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
