package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventUsernameUpdated is pushed to the owner's realtime channel after a rename.
const EventUsernameUpdated = "user.username_updated"

// Publisher delivers server-push events to a user's live connections.
type Publisher interface {
	SendToUser(userID, event string, payload any)
}

// Service manages user profiles and usernames.
type Service struct {
	repo      Repository
	logger    *slog.Logger
	publisher Publisher
	suffix    func() int
}

// NewService creates a new user service. publisher may be nil.
func NewService(repo Repository, logger *slog.Logger, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		suffix:    func() int { return 1000 + rand.IntN(9000) },
	}
}

// Repository exposes the underlying store for collaborating services.
func (s *Service) Repository() Repository {
	return s.repo
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateUser validates the input, resolves a username and stores the record.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (User, error) {
	if in.Address == "" && in.Email == "" {
		return User{}, ErrMissingIdentity
	}

	username := strings.TrimSpace(in.Username)
	if username != "" {
		if !ValidUsername(username) {
			return User{}, ErrInvalidUsername
		}
		available, err := s.IsUsernameAvailable(ctx, username)
		if err != nil {
			return User{}, err
		}
		if !available {
			return User{}, ErrUsernameTaken
		}
	} else {
		generated, err := s.GenerateUniqueUsername(ctx, usernameBase(in.Email))
		if err != nil {
			return User{}, err
		}
		username = generated
	}

	now := time.Now().UTC()
	u := User{
		ID:               uuid.New().String(),
		Address:          optional(in.Address),
		Email:            optional(in.Email),
		Username:         &username,
		LoginMethod:      in.LoginMethod,
		IsEmailVerified:  in.IsEmailVerified,
		EmailVerifyToken: optional(in.EmailVerifyToken),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	s.logger.Info("user created",
		slog.String("user_id", u.ID),
		slog.String("login_method", u.LoginMethod),
		slog.String("username", username),
	)
	return u, nil
}

// GenerateUniqueUsername appends a random four digit suffix to the sanitized
// base until the result is free.
func (s *Service) GenerateUniqueUsername(ctx context.Context, base string) (string, error) {
	clean := SanitizeBase(base)
	for range maxUsernameAttempts {
		candidate := fmt.Sprintf("%s_%d", clean, s.suffix())
		available, err := s.IsUsernameAvailable(ctx, candidate)
		if err != nil {
			return "", err
		}
		if available {
			return candidate, nil
		}
	}
	s.logger.Error("username generation exhausted", slog.String("base", clean), slog.Int("attempts", maxUsernameAttempts))
	return "", ErrUsernameExhausted
}

// IsUsernameAvailable reports whether no user holds username.
func (s *Service) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup username: %w", err)
	}
	return false, nil
}

// UpdateUsername renames the user. Keeping one's own username is a no-op success.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) (User, error) {
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return User{}, ErrInvalidUsername
	}
	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != userID:
		return User{}, ErrUsernameTaken
	case err != nil && !errors.Is(err, ErrNotFound):
		return User{}, fmt.Errorf("lookup username: %w", err)
	}

	updated, err := s.repo.Update(ctx, userID, Update{Username: &username})
	if err != nil {
		return User{}, err
	}
	if s.publisher != nil {
		s.publisher.SendToUser(updated.ID, EventUsernameUpdated, map[string]string{"username": username})
	}
	return updated, nil
}
