// Package web3auth verifies delegated identity tokens issued by Web3Auth and
// turns their embedded wallet keys into addresses.
package web3auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/predicta-labs/predicta_api/internal/config"
)

const (
	curveSecp256k1 = "secp256k1"
	typeAppKey     = "web3auth_app_key"
)

var (
	// ErrNoWalletKey is returned when the token carries no usable wallet entry.
	ErrNoWalletKey = errors.New("no usable wallet key in token")
	// ErrInvalidToken covers signature, algorithm and expiry failures.
	ErrInvalidToken = errors.New("invalid identity token")
)

// Wallet is one entry of the token's wallets claim.
type Wallet struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
	Type      string `json:"type"`
	Curve     string `json:"curve"`
}

// Claims is the subset of the identity token payload in use.
type Claims struct {
	Wallets  []Wallet `json:"wallets"`
	Email    string   `json:"email,omitempty"`
	Verifier string   `json:"verifier,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a verified token asserts.
type Identity struct {
	Address  string
	Email    string
	Verifier string
}

// KeySet resolves verification keys by the token's kid.
type KeySet interface {
	KeyfuncCtx(ctx context.Context) jwt.Keyfunc
}

// Verifier checks ES256 identity tokens against the issuer key set.
type Verifier struct {
	keys    KeySet
	timeout time.Duration
}

// New builds a verifier backed by the remote JWKS. The first fetch happens
// here but a failure is only logged; the set is refreshed every
// cfg.RefreshInterval and on demand when an unknown kid shows up.
func New(ctx context.Context, cfg config.Web3AuthConfig, logger *slog.Logger) (*Verifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Ctx:                       ctx,
		HTTPTimeout:               cfg.Timeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Warn("jwks refresh failed", slog.String("url", cfg.JWKSURL), slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}
	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{cfg.JWKSURL: storage},
		RateLimitWaitMax:  cfg.Timeout,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(5*time.Minute), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("jwks client: %w", err)
	}
	kf, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: client})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return NewWithKeySet(kf, cfg.Timeout), nil
}

// NewWithKeySet builds a verifier over an existing key set.
func NewWithKeySet(keys KeySet, timeout time.Duration) *Verifier {
	return &Verifier{keys: keys, timeout: timeout}
}

// Verify checks idToken and extracts the asserted identity. Wallet login
// methods (metamask, wallet_connect) take the first embedded wallet address;
// every other method derives the address from the secp256k1 app key.
func (v *Verifier) Verify(ctx context.Context, idToken, loginMethod string) (Identity, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(idToken, claims, v.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	method := loginMethod
	if method == "" {
		method = claims.Verifier
	}
	var address string
	if isWalletLogin(method) {
		address, err = firstWalletAddress(claims.Wallets)
	} else {
		address, err = appKeyAddress(claims.Wallets)
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{Address: address, Email: claims.Email, Verifier: claims.Verifier}, nil
}

func isWalletLogin(method string) bool {
	return method == "metamask" || method == "wallet_connect"
}

func appKeyAddress(wallets []Wallet) (string, error) {
	for _, w := range wallets {
		if w.Curve == curveSecp256k1 && w.Type == typeAppKey && w.PublicKey != "" {
			addr, err := PublicKeyToAddress(w.PublicKey)
			if err != nil {
				return "", fmt.Errorf("%w: %w", ErrNoWalletKey, err)
			}
			return addr, nil
		}
	}
	return "", ErrNoWalletKey
}

func firstWalletAddress(wallets []Wallet) (string, error) {
	for _, w := range wallets {
		if w.Address != "" {
			return w.Address, nil
		}
	}
	return "", ErrNoWalletKey
}
