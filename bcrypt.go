package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the player accounts were created with
const DefaultBcryptCost = 10

// BcryptHasher implements PasswordAuthenticator
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher, a zero cost means DefaultBcryptCost
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (b BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

var (
	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password can not be empty")
	// ErrMismatchedHashAndPassword is returned on a password mismatch
	ErrMismatchedHashAndPassword = errors.New("password does not match hash")
)
