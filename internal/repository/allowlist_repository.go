package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/germesbot/germes/internal/models"
)

type AllowListRepository struct {
	db *sql.DB
}

func NewAllowListRepository(db *sql.DB) *AllowListRepository {
	return &AllowListRepository{db: db}
}

func (r *AllowListRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT 1 FROM allowed_users WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check allow list: %w", err)
	}
	return true, nil
}

// Add inserts an allow-list entry. Returns false without error when the
// user is already allowed, including when a concurrent admin wins the
// insert race.
func (r *AllowListRepository) Add(ctx context.Context, userID int64, displayName string) (bool, error) {
	const query = `INSERT INTO allowed_users (user_id, username) VALUES (?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query, userID, displayName); err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert allowed user: %w", err)
	}
	return true, nil
}

// Remove deletes an allow-list entry. Returns false when the user was
// not allowed to begin with.
func (r *AllowListRepository) Remove(ctx context.Context, userID int64) (bool, error) {
	const query = `DELETE FROM allowed_users WHERE user_id = ?`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("delete allowed user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("allowed user rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *AllowListRepository) List(ctx context.Context) ([]models.AllowedUser, error) {
	const query = `SELECT user_id, COALESCE(username, '') FROM allowed_users ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list allowed users: %w", err)
	}
	defer rows.Close()

	var entries []models.AllowedUser
	for rows.Next() {
		var e models.AllowedUser
		if err := rows.Scan(&e.UserID, &e.DisplayName); err != nil {
			return nil, fmt.Errorf("scan allowed user: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
