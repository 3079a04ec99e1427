package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/predicta-labs/predicta_api/internal/user"
	"github.com/predicta-labs/predicta_api/internal/web3auth"
)

// SigninRequest is the inbound login payload. Exactly one of the direct
// fields (address/email) or IDToken is expected.
type SigninRequest struct {
	LoginMethod string `json:"loginMethod" validate:"omitempty,oneof=email google facebook twitter metamask wallet_connect"`
	Address     string `json:"address" validate:"omitempty,eth_addr"`
	Email       string `json:"email" validate:"omitempty,email"`
	IDToken     string `json:"idToken"`
	Username    string `json:"username" validate:"omitempty,min=3,max=30,username"`
}

// Identity is a normalized login identity; Address and Email are never both empty.
type Identity struct {
	Address     string
	Email       string
	LoginMethod string
	Username    string
	// Delegated marks identities asserted by the external issuer rather than typed by the client.
	Delegated bool
}

// EmailFlow reports whether the identity must round-trip through code verification.
func (i Identity) EmailFlow() bool {
	return i.LoginMethod == user.LoginMethodEmail && !i.Delegated
}

// TokenVerifier checks a delegated identity token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken, loginMethod string) (web3auth.Identity, error)
}

// CredentialVerifier normalizes signin requests into identities.
type CredentialVerifier struct {
	delegated TokenVerifier
}

// NewCredentialVerifier builds a verifier. delegated may be nil, in which case
// idToken logins are rejected.
func NewCredentialVerifier(delegated TokenVerifier) *CredentialVerifier {
	return &CredentialVerifier{delegated: delegated}
}

// Verify validates req and returns the normalized identity.
func (v *CredentialVerifier) Verify(ctx context.Context, req SigninRequest) (Identity, error) {
	username := strings.TrimSpace(req.Username)
	if req.IDToken != "" {
		return v.verifyDelegated(ctx, req, username)
	}

	if req.LoginMethod == "" {
		return Identity{}, invalidCredential("Login method is required")
	}
	if req.Address == "" && req.Email == "" {
		return Identity{}, invalidCredential("Either address or email must be provided")
	}
	if req.LoginMethod == user.LoginMethodEmail && req.Email == "" {
		return Identity{}, invalidCredential("Email is required for email-based login methods")
	}
	return Identity{
		Address:     req.Address,
		Email:       req.Email,
		LoginMethod: req.LoginMethod,
		Username:    username,
	}, nil
}

func (v *CredentialVerifier) verifyDelegated(ctx context.Context, req SigninRequest, username string) (Identity, error) {
	if v.delegated == nil {
		return Identity{}, invalidCredential("Delegated login is not configured")
	}
	claims, err := v.delegated.Verify(ctx, req.IDToken, req.LoginMethod)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", invalidCredential("Invalid token"), err)
	}
	method := req.LoginMethod
	if method == "" {
		method = claims.Verifier
	}
	if claims.Address == "" && claims.Email == "" {
		return Identity{}, invalidCredential("No usable wallet key found in token")
	}
	return Identity{
		Address:     claims.Address,
		Email:       claims.Email,
		LoginMethod: method,
		Username:    username,
		Delegated:   true,
	}, nil
}
