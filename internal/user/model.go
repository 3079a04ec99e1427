package user

import "time"

// Login methods accepted on direct sign-in. Delegated logins may record an
// issuer-specific verifier id instead.
const (
	LoginMethodEmail         = "email"
	LoginMethodGoogle        = "google"
	LoginMethodFacebook      = "facebook"
	LoginMethodTwitter       = "twitter"
	LoginMethodMetamask      = "metamask"
	LoginMethodWalletConnect = "wallet_connect"
)

// User is the account record. At least one of Address or Email is set.
type User struct {
	ID               string    `json:"id"`
	Address          *string   `json:"address"`
	Email            *string   `json:"email"`
	Username         *string   `json:"username"`
	LoginMethod      string    `json:"loginMethod"`
	IsEmailVerified  bool      `json:"isEmailVerified"`
	EmailVerifyToken *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UsernameOrEmpty returns the username or "" when unset.
func (u User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// EmailOrEmpty returns the email or "" when unset.
func (u User) EmailOrEmpty() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// CreateInput captures the fields accepted when creating a user.
type CreateInput struct {
	Address          string
	Email            string
	LoginMethod      string
	Username         string
	IsEmailVerified  bool
	EmailVerifyToken string
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	Address          *string
	Email            *string
	Username         *string
	LoginMethod      *string
	IsEmailVerified  *bool
	EmailVerifyToken *string
	// ClearEmailVerifyToken sets the pending code to NULL and wins over EmailVerifyToken.
	ClearEmailVerifyToken bool
}

func (u Update) empty() bool {
	return u.Address == nil && u.Email == nil && u.Username == nil && u.LoginMethod == nil &&
		u.IsEmailVerified == nil && u.EmailVerifyToken == nil && !u.ClearEmailVerifyToken
}

// apply mutates the user in place with the non-nil fields of the update.
func (u Update) apply(target *User) {
	if u.Address != nil {
		target.Address = stringPtr(*u.Address)
	}
	if u.Email != nil {
		target.Email = stringPtr(*u.Email)
	}
	if u.Username != nil {
		target.Username = stringPtr(*u.Username)
	}
	if u.LoginMethod != nil {
		target.LoginMethod = *u.LoginMethod
	}
	if u.IsEmailVerified != nil {
		target.IsEmailVerified = *u.IsEmailVerified
	}
	if u.ClearEmailVerifyToken {
		target.EmailVerifyToken = nil
	} else if u.EmailVerifyToken != nil {
		target.EmailVerifyToken = stringPtr(*u.EmailVerifyToken)
	}
}

func stringPtr(s string) *string {
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
