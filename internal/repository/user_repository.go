package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/germesbot/germes/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	const query = `
SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, '')
FROM identified_user WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var u models.User
	if err := row.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Ensure records a user on first interaction. Existing rows are left
// untouched; a concurrent first-time insert losing the race is treated
// as success.
func (r *UserRepository) Ensure(ctx context.Context, user *models.User) (created bool, err error) {
	existing, err := r.FindByID(ctx, user.UserID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	const query = `
INSERT INTO identified_user (user_id, username, first_name, last_name)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query, user.UserID, user.Username, user.FirstName, user.LastName); err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert user: %w", err)
	}
	return true, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	const query = `
SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, '')
FROM identified_user ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("scan user list: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
