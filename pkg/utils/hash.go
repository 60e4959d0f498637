package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when an account does not exist so both login
// failure paths spend the same bcrypt work.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("raci-tracker-timing-equaliser"), bcrypt.DefaultCost)

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares plain password with hashed password.
func CheckPassword(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

// BurnPasswordCheck runs a comparison that always fails.
func BurnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}

// SHA256Hex returns the hex SHA-256 digest of s. Used for OTP codes and refresh token ids at rest.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
