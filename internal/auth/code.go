package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// newVerificationCode returns a uniformly random six digit code without a leading zero.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeFloor), nil
}
