package service

import (
	"context"
	"fmt"

	"github.com/germesbot/germes/internal/models"
	"github.com/germesbot/germes/internal/repository"
)

type UserService struct {
	users *repository.UserRepository
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Ensure records a user on first interaction, idempotently. Profiles
// are never updated afterwards.
func (s *UserService) Ensure(ctx context.Context, user *models.User) (bool, error) {
	created, err := s.users.Ensure(ctx, user)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	return created, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}
