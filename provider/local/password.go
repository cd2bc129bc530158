package local

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new password hashes. Tests may lower
// it to bcrypt.MinCost.
var BcryptCost = 12

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation)

// HashPassword derives a bcrypt hash for a cleartext password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(h), err
}

// ComparePasswordAndHash checks a cleartext password against a stored
// hash. A mismatch comes back as an auth-category error so callers can
// collapse it with the unknown-account path.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return goerrors.New("password does not match", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized)
		}
		return err
	}
	return nil
}
