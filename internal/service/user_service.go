package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SearchByEmail is an exact, case-insensitive match on the email handle.
// It returns an empty slice when nobody matches.
func (s *UserService) SearchByEmail(ctx context.Context, email string) ([]domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []domain.User{}, nil
	}
	return []domain.User{*user}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, input domain.ProfileUpdate) (*domain.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = strings.TrimSpace(*input.Username)
	}
	if input.AvatarURL != nil {
		avatar := *input.AvatarURL
		user.AvatarURL = &avatar
	}
	user.UpdatedAt = now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return user, nil
}
