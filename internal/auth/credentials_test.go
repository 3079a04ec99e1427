package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/predicta-labs/predicta_api/internal/web3auth"
)

type stubTokenVerifier struct {
	identity web3auth.Identity
	err      error
	method   string
}

func (s *stubTokenVerifier) Verify(_ context.Context, _ string, loginMethod string) (web3auth.Identity, error) {
	s.method = loginMethod
	return s.identity, s.err
}

func TestVerifyDirectCredentials(t *testing.T) {
	v := NewCredentialVerifier(nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  SigninRequest
		msg  string
	}{
		{"no method", SigninRequest{Address: "0xabc"}, "Login method is required"},
		{"no identity", SigninRequest{LoginMethod: "metamask"}, "Either address or email must be provided"},
		{"email without email", SigninRequest{LoginMethod: "email", Address: "0xabc"}, "Email is required for email-based login methods"},
	}
	for _, tc := range cases {
		_, err := v.Verify(ctx, tc.req)
		if !errors.Is(err, ErrInvalidCredential) || err.Error() != tc.msg {
			t.Fatalf("%s: got %v", tc.name, err)
		}
	}

	id, err := v.Verify(ctx, SigninRequest{LoginMethod: "email", Email: "a@example.com", Username: "  alice  "})
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !id.EmailFlow() || id.Username != "alice" || id.Delegated {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestVerifyDelegatedCredentials(t *testing.T) {
	stub := &stubTokenVerifier{identity: web3auth.Identity{Address: "0xabc", Email: "s@example.com", Verifier: "google"}}
	v := NewCredentialVerifier(stub)

	id, err := v.Verify(context.Background(), SigninRequest{IDToken: "tok"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.LoginMethod != "google" || !id.Delegated || id.Address != "0xabc" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.EmailFlow() {
		t.Fatalf("delegated identities never use the code flow")
	}

	// an explicit email method with a token is still delegated
	id, _ = v.Verify(context.Background(), SigninRequest{IDToken: "tok", LoginMethod: "email"})
	if id.EmailFlow() || stub.method != "email" {
		t.Fatalf("unexpected identity %+v (method %q)", id, stub.method)
	}
}

func TestVerifyDelegatedFailures(t *testing.T) {
	if _, err := NewCredentialVerifier(nil).Verify(context.Background(), SigninRequest{IDToken: "tok"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected rejection without delegated verifier, got %v", err)
	}

	bad := NewCredentialVerifier(&stubTokenVerifier{err: web3auth.ErrInvalidToken})
	_, err := bad.Verify(context.Background(), SigninRequest{IDToken: "tok"})
	if !errors.Is(err, ErrInvalidCredential) || !errors.Is(err, web3auth.ErrInvalidToken) {
		t.Fatalf("expected wrapped token error, got %v", err)
	}

	empty := NewCredentialVerifier(&stubTokenVerifier{})
	if _, err := empty.Verify(context.Background(), SigninRequest{IDToken: "tok"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected rejection for empty identity, got %v", err)
	}
}
