package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predicta-labs/predicta_api/internal/notification"
	"github.com/predicta-labs/predicta_api/internal/user"
)

// Realtime events pushed to the affected user.
const (
	EventWalletConnected = "user.wallet_connected"
	EventEmailVerified   = "user.email_verified"
)

const maxCodeAttempts = 5

// Deps groups the collaborators of the auth Service.
type Deps struct {
	Users       *user.Service
	Sessions    *Sessions
	Credentials *CredentialVerifier
	Codes       CodeTracker
	CodeTTL     time.Duration
	Notifier    notification.Notifier
	Publisher   user.Publisher
	Logger      *slog.Logger
}

// Service runs the signin, verification and wallet linking flows.
type Service struct {
	users       *user.Service
	repo        user.Repository
	sessions    *Sessions
	credentials *CredentialVerifier
	codes       CodeTracker
	codeTTL     time.Duration
	notifier    notification.Notifier
	publisher   user.Publisher
	logger      *slog.Logger
}

// NewService wires the auth flows.
func NewService(d Deps) *Service {
	return &Service{
		users:       d.Users,
		repo:        d.Users.Repository(),
		sessions:    d.Sessions,
		credentials: d.Credentials,
		codes:       d.Codes,
		codeTTL:     d.CodeTTL,
		notifier:    d.Notifier,
		publisher:   d.Publisher,
		logger:      d.Logger,
	}
}

// SigninResult is either a token pair or a pending email verification.
type SigninResult struct {
	Tokens                 *TokenPair
	NeedsEmailVerification bool
	Email                  string
}

// Signin verifies the credential, upserts the user and issues tokens unless
// the email flow requires code verification first.
func (s *Service) Signin(ctx context.Context, req SigninRequest) (SigninResult, error) {
	identity, err := s.credentials.Verify(ctx, req)
	if err != nil {
		return SigninResult{}, err
	}
	u, err := s.Authenticate(ctx, identity)
	if err != nil {
		return SigninResult{}, err
	}
	if identity.EmailFlow() {
		return SigninResult{NeedsEmailVerification: true, Email: u.EmailOrEmpty()}, nil
	}
	pair, err := s.Login(u)
	if err != nil {
		return SigninResult{}, err
	}
	return SigninResult{Tokens: &pair}, nil
}

// Authenticate finds or creates the user behind identity.
func (s *Service) Authenticate(ctx context.Context, identity Identity) (user.User, error) {
	if identity.EmailFlow() {
		return s.authenticateEmail(ctx, identity)
	}
	return s.authenticateWallet(ctx, identity)
}

// Login issues a token pair for u.
func (s *Service) Login(u user.User) (TokenPair, error) {
	return s.sessions.Issue(u.ID, u.UsernameOrEmpty())
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

// authenticateEmail issues a fresh code on every attempt and forces re-verification.
func (s *Service) authenticateEmail(ctx context.Context, identity Identity) (user.User, error) {
	code, err := s.uniqueCode(ctx)
	if err != nil {
		return user.User{}, err
	}

	u, err := s.repo.FindByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		u, err = s.users.CreateUser(ctx, user.CreateInput{
			Email:            identity.Email,
			LoginMethod:      identity.LoginMethod,
			Username:         identity.Username,
			IsEmailVerified:  false,
			EmailVerifyToken: code,
		})
		if err != nil {
			return user.User{}, err
		}
	case err != nil:
		return user.User{}, fmt.Errorf("lookup email: %w", err)
	default:
		pending := false
		u, err = s.repo.Update(ctx, u.ID, user.Update{EmailVerifyToken: &code, IsEmailVerified: &pending})
		if err != nil {
			return user.User{}, fmt.Errorf("store verification code: %w", err)
		}
	}

	// an untracked code could never be verified, so it is not mailed
	if err := s.codes.Track(ctx, code, u.ID, s.codeTTL); err != nil {
		s.logger.Error("verification code expiry not tracked", slog.String("user_id", u.ID), slog.Any("error", err))
		return user.User{}, fmt.Errorf("track verification code: %w", err)
	}
	s.sendCode(ctx, identity.Email, code)
	return u, nil
}

func (s *Service) authenticateWallet(ctx context.Context, identity Identity) (user.User, error) {
	if identity.Address == "" {
		return user.User{}, invalidCredential("Address is required for wallet-based login methods")
	}
	u, err := s.repo.FindByAddress(ctx, identity.Address)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, fmt.Errorf("lookup address: %w", err)
	}

	in := user.CreateInput{
		Address:     identity.Address,
		LoginMethod: identity.LoginMethod,
		Username:    identity.Username,
	}
	if identity.Delegated && identity.Email != "" {
		if _, err := s.repo.FindByEmail(ctx, identity.Email); errors.Is(err, user.ErrNotFound) {
			in.Email = identity.Email
			in.IsEmailVerified = true
		}
	}

	u, err = s.users.CreateUser(ctx, in)
	if errors.Is(err, user.ErrAddressTaken) {
		// lost a race with a concurrent signin for the same wallet
		return s.repo.FindByAddress(ctx, identity.Address)
	}
	return u, err
}

// VerifyEmail consumes a pending code.
func (s *Service) VerifyEmail(ctx context.Context, code string) (user.User, error) {
	u, err := s.repo.FindByEmailVerifyToken(ctx, code)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrCodeNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("lookup verification code: %w", err)
	}

	live, err := s.codes.Valid(ctx, code, u.ID)
	switch {
	case err != nil:
		s.logger.Warn("verification code expiry unavailable", slog.String("user_id", u.ID), slog.Any("error", err))
	case !live:
		return user.User{}, ErrCodeNotFound
	}

	verified := true
	updated, err := s.repo.Update(ctx, u.ID, user.Update{IsEmailVerified: &verified, ClearEmailVerifyToken: true})
	if err != nil {
		return user.User{}, fmt.Errorf("mark email verified: %w", err)
	}
	if err := s.codes.Forget(ctx, code); err != nil {
		s.logger.Warn("verification code not forgotten", slog.String("user_id", u.ID), slog.Any("error", err))
	}
	s.publish(updated.ID, EventEmailVerified, map[string]any{"email": updated.EmailOrEmpty(), "isEmailVerified": true})
	return updated, nil
}

// ConnectWallet binds address to userID. Re-binding the owner's own address succeeds.
func (s *Service) ConnectWallet(ctx context.Context, userID, address, loginMethod string) (user.User, error) {
	owner, err := s.repo.FindByAddress(ctx, address)
	switch {
	case err == nil && owner.ID != userID:
		return user.User{}, ErrWalletOwned
	case err != nil && !errors.Is(err, user.ErrNotFound):
		return user.User{}, fmt.Errorf("lookup address: %w", err)
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return user.User{}, err
	}

	updated, err := s.repo.Update(ctx, userID, user.Update{Address: &address, LoginMethod: &loginMethod})
	if errors.Is(err, user.ErrAddressTaken) {
		return user.User{}, ErrWalletOwned
	}
	if err != nil {
		return user.User{}, err
	}
	s.publish(updated.ID, EventWalletConnected, map[string]string{"address": address, "loginMethod": loginMethod})
	return updated, nil
}

// GenerateUsername suggests a free username derived from base.
func (s *Service) GenerateUsername(ctx context.Context, base string) (string, error) {
	return s.users.GenerateUniqueUsername(ctx, base)
}

// uniqueCode avoids handing out a code that is still pending for another account.
func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := newVerificationCode()
		if err != nil {
			return "", err
		}
		_, err = s.repo.FindByEmailVerifyToken(ctx, code)
		if errors.Is(err, user.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check verification code: %w", err)
		}
	}
	return "", errors.New("could not allocate a verification code")
}

// sendCode dispatches the code; delivery failures are logged, never returned.
func (s *Service) sendCode(ctx context.Context, email, code string) {
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindEmailVerification,
		Destination: email,
		Code:        code,
	})
	if err != nil {
		s.logger.Error("verification email not sent", slog.String("destination", email), slog.Any("error", err))
	}
}

func (s *Service) publish(userID, event string, payload any) {
	if s.publisher != nil {
		s.publisher.SendToUser(userID, event, payload)
	}
}
