package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPIN is returned when the spending PIN does not match.
var ErrInvalidPIN = errors.New("invalid spending pin")

// PINVerifier checks the spending PIN against a bcrypt hash.
type PINVerifier struct {
	hash []byte
}

// NewPINVerifier builds a verifier. An empty hash disables the check.
func NewPINVerifier(hash string) *PINVerifier {
	return &PINVerifier{hash: []byte(hash)}
}

// Enabled reports whether a PIN is configured.
func (v *PINVerifier) Enabled() bool { return len(v.hash) > 0 }

// Verify compares pin with the configured hash.
func (v *PINVerifier) Verify(pin string) error {
	if !v.Enabled() {
		return nil
	}
	if pin == "" {
		return ErrInvalidPIN
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

// HashPIN produces the value expected in SPENDING_PIN_HASH.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
