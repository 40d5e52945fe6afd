package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Credentials checks organizer logins against one configured account.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Verify reports whether username and password match. An empty hash disables login.
func (c Credentials) Verify(username, password string) bool {
	if c.PasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

// HashPassword produces a hash suitable for PANITIA_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
