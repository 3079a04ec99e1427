package user

import "errors"

var (
	// ErrNotFound is returned by repositories when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates the username belongs to another account.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAddressTaken indicates the wallet address belongs to another account.
	ErrAddressTaken = errors.New("address already in use")
	// ErrEmailTaken indicates the email belongs to another account.
	ErrEmailTaken = errors.New("email already in use")
	// ErrMissingIdentity is returned when a user would have neither address nor email.
	ErrMissingIdentity = errors.New("either address or email must be provided")
	// ErrInvalidUsername indicates a username outside the accepted shape.
	ErrInvalidUsername = errors.New("username must be 3-30 letters, numbers or underscores")
	// ErrUsernameExhausted is returned when no free username was found within the retry budget.
	ErrUsernameExhausted = errors.New("could not generate a unique username")
)
