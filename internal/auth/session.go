package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/predicta-labs/predicta_api/internal/config"
	"github.com/predicta-labs/predicta_api/internal/user"
)

// Claims is the session token payload. Refresh marks the long-lived half of a pair.
type Claims struct {
	Refresh bool `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is returned on signin and refresh. ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Username     string `json:"username,omitempty"`
}

// Sessions signs and verifies HS256 session tokens with one process-wide secret.
type Sessions struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      user.Repository
	now        func() time.Time
}

// NewSessions builds a session issuer resolving subjects through users.
func NewSessions(cfg config.JWTConfig, users user.Repository) *Sessions {
	return &Sessions{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		users:      users,
		now:        time.Now,
	}
}

// Issue mints an access/refresh pair for userID.
func (s *Sessions) Issue(userID, username string) (TokenPair, error) {
	access, err := s.sign(userID, false, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, true, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
		Username:     username,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. Every failure is ErrInvalidRefreshToken.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil || !claims.Refresh {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	u, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	return s.Issue(u.ID, u.UsernameOrEmpty())
}

// Resolve maps a bearer token to its user. It never errors: tampered, expired,
// malformed or unknown-subject tokens yield (nil, false).
func (s *Sessions) Resolve(ctx context.Context, token string) (*user.User, bool) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, false
	}
	u, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, false
	}
	return &u, true
}

func (s *Sessions) sign(userID string, refresh bool, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *Sessions) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
