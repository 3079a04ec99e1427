package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Address  string `json:"address" validate:"omitempty,eth_addr"`
	Email    string `json:"email" validate:"omitempty,email"`
	Method   string `json:"loginMethod" validate:"omitempty,oneof=email google"`
	Username string `json:"username" validate:"omitempty,min=3,max=30,username"`
	Token    string `json:"token" validate:"required,len=6,numeric"`
}

func TestStructCollectsEveryViolation(t *testing.T) {
	err := Struct(sample{Address: "0x123", Email: "nope", Method: "fax", Username: "a!", Token: ""})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d: %v", len(verr.Messages), verr.Messages)
	}
	joined := verr.Error()
	for _, want := range []string{
		"address must be an Ethereum address",
		"email must be an email",
		"loginMethod must be one of the following values: email, google",
		"token should not be empty",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %q", want, joined)
		}
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	err := Struct(sample{
		Address:  "0x52908400098527886E0F7030069857D2E4169EE7",
		Email:    "a@b.com",
		Method:   "google",
		Username: "alice_01",
		Token:    "123456",
	})
	if err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestIsUsername(t *testing.T) {
	cases := map[string]bool{
		"ab":                    false,
		"abc":                   true,
		"user_1234":             true,
		"has space":             false,
		"dash-name":             false,
		strings.Repeat("a", 30): true,
		strings.Repeat("a", 31): false,
	}
	for in, want := range cases {
		if got := IsUsername(in); got != want {
			t.Fatalf("IsUsername(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestUnmarshalStrictRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Token string `json:"token"`
	}
	err := UnmarshalStrict([]byte(`{"token":"123456","extra":true}`), &dst)
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if verr.Messages[0] != "property extra should not exist" {
		t.Fatalf("unexpected message %q", verr.Messages[0])
	}

	if err := UnmarshalStrict([]byte(`{"token":"123456"}`), &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Token != "123456" {
		t.Fatalf("token not decoded: %q", dst.Token)
	}
}
