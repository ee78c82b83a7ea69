package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// AdminCredentials is the single operator account configured through env.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// Check reports whether email/password match. An unconfigured account never matches.
func (c AdminCredentials) Check(email, password string) bool {
	if c.Email == "" || c.PasswordHash == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(c.Email)) == 1
	pwErr := VerifyPassword(password, c.PasswordHash)
	return emailOK && pwErr == nil
}
