package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// SessionCookie names the cookie that scopes an admin's pending imports.
const SessionCookie = "kz_admin_session"

// Session ids look like kzs_<32 hex>.
const (
	sessionPrefix    = "kzs_"
	sessionSecretLen = 16
)

// ErrInvalidSession indicates a malformed session id.
var ErrInvalidSession = errors.New("invalid admin session id")

var sessionFormat = regexp.MustCompile(`^kzs_[a-f0-9]{32}$`)

// NewSessionID returns a fresh random session id.
func NewSessionID() (string, error) {
	secret := make([]byte, sessionSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return sessionPrefix + hex.EncodeToString(secret), nil
}

// ValidSessionID reports whether id has the session id format.
func ValidSessionID(id string) bool {
	return sessionFormat.MatchString(id)
}
