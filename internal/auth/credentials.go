package auth

import (
	"crypto/subtle"
	"errors"

	"callpulse/internal/config"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid credentials")

// Authenticator verifies the env-configured dashboard admin credentials.
// There is exactly one operator account; no user storage exists.
type Authenticator struct {
	user string
	hash []byte
}

func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	if cfg.AdminUser == "" || cfg.AdminPasswordHash == "" {
		return nil, errors.New("admin credentials are required")
	}
	return &Authenticator{user: cfg.AdminUser, hash: []byte(cfg.AdminPasswordHash)}, nil
}

// VerifyCredentials returns ErrBadCredentials on any mismatch; callers must
// not distinguish unknown user from wrong password.
func (a *Authenticator) VerifyCredentials(user, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}
