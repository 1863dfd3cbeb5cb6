package onboard

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is intentionally above the library default; hashing
// is supposed to be expensive.
const DefaultBcryptCost = 14

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, passwordHashCost())
}

// HashPasswordWithCost hashes with an explicit work factor. Tests use a
// lower cost to stay fast.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password. Any failure, including a malformed
// stored hash, reports as a credentials mismatch.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		// Malformed stored hashes report as a plain mismatch too.
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// GenerateTemporaryPassword returns a random plaintext password and its
// hash. The plaintext exists only to be delivered to the user; it is
// never persisted.
func GenerateTemporaryPassword() (plaintext, hash string, err error) {
	plaintext = uuid.NewString()
	hash, err = HashPassword(plaintext)
	if err != nil {
		return "", "", err
	}
	return plaintext, hash, nil
}
