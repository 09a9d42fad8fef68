package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/germesbot/germes/internal/models"
	"github.com/germesbot/germes/internal/repository"
)

// Decision is the outcome of an authorization check. Denied is a normal
// outcome, not an error; callers turn it into a user-facing message.
type Decision int

const (
	DecisionDenied Decision = iota
	DecisionAuthorized
	DecisionAdminBypass
)

func (d Decision) String() string {
	switch d {
	case DecisionAdminBypass:
		return "admin_bypass"
	case DecisionAuthorized:
		return "authorized"
	default:
		return "denied"
	}
}

// AccessService gates metered functionality behind the allow-list and
// the configured super-user bypass.
type AccessService struct {
	superUserID int64
	allowed     *repository.AllowListRepository
	users       *repository.UserRepository
}

func NewAccessService(superUserID int64, allowed *repository.AllowListRepository, users *repository.UserRepository) *AccessService {
	return &AccessService{superUserID: superUserID, allowed: allowed, users: users}
}

func (s *AccessService) IsAdmin(userID int64) bool {
	return userID == s.superUserID
}

// Authorize decides admission for a metered request. The super-user
// check comes first and short-circuits the allow-list lookup.
func (s *AccessService) Authorize(ctx context.Context, userID int64) (Decision, error) {
	if s.IsAdmin(userID) {
		return DecisionAdminBypass, nil
	}
	allowed, err := s.allowed.Exists(ctx, userID)
	if err != nil {
		return DecisionDenied, fmt.Errorf("authorize user: %w", err)
	}
	if allowed {
		return DecisionAuthorized, nil
	}
	return DecisionDenied, nil
}

// Allow adds a user to the allow-list. Returns false when the user was
// already allowed; that is an informational no-op, not an error.
// The display name is copied from identified_user when present, the
// way the admin console records it.
func (s *AccessService) Allow(ctx context.Context, userID int64) (bool, error) {
	displayName := strconv.FormatInt(userID, 10)
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user != nil {
		if name := displayNameOf(user); name != "" {
			displayName = name
		}
	}
	return s.allowed.Add(ctx, userID, displayName)
}

// Disable removes a user from the allow-list. Returns false when the
// user was never allowed.
func (s *AccessService) Disable(ctx context.Context, userID int64) (bool, error) {
	return s.allowed.Remove(ctx, userID)
}

func (s *AccessService) ListAllowed(ctx context.Context) ([]models.AllowedUser, error) {
	return s.allowed.List(ctx)
}

func displayNameOf(u *models.User) string {
	switch {
	case u.Username != "":
		return u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}
