package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrDemoDisabled is returned by Demo.Login when no demo account is set up.
var ErrDemoDisabled = errors.New("demo login is not configured")

// Demo is the single shared demo account.
type Demo struct {
	User         string
	PasswordHash string // bcrypt
}

// Enabled reports whether demo login is configured.
func (d Demo) Enabled() bool {
	return d.User != "" && d.PasswordHash != ""
}

// Login checks the demo account's credentials and issues a demo credential.
func (d Demo) Login(user, password string, now time.Time) (string, error) {
	if !d.Enabled() {
		return "", ErrDemoDisabled
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(d.User)) != 1 {
		return "", ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}
	return IssueDemoToken(user, now), nil
}

// IssueDemoToken builds a demo credential. The resolver treats the whole
// string as the user id, so every login yields a distinct identity.
func IssueDemoToken(user string, now time.Time) string {
	raw := fmt.Sprintf("%s:%d", user, now.UnixMilli())
	return DemoPrefix + base64.StdEncoding.EncodeToString([]byte(raw))
}

// HashPassword hashes a demo password for configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
