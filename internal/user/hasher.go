package user

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher defines the hashing interface used for new passwords.
// Verification goes through VerifyPassword so rows written by either
// implementation keep working when the configured hasher changes.
type PasswordHasher interface {
	Hash(pw string) (hash string, salt string, err error)
}

// SaltedSHA256 stores hex(sha256(password + salt)) with a random per-user
// salt. This is the format of every row created by the original admin panel.
type SaltedSHA256 struct{}

func (SaltedSHA256) Hash(pw string) (string, string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	salt := hex.EncodeToString(b)
	return sha256Hex(pw, salt), salt, nil
}

// BcryptHasher implementation. Salt is embedded in the hash.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), "", nil
}

// HasherFor returns the hasher configured by name ("sha256" or "bcrypt").
func HasherFor(name string) PasswordHasher {
	if name == "bcrypt" {
		return BcryptHasher{Cost: 12}
	}
	return SaltedSHA256{}
}

// VerifyPassword checks pw against a stored hash of either format.
func VerifyPassword(hash, salt, pw string) bool {
	if hash == "" {
		return false
	}
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(sha256Hex(pw, salt)), []byte(hash)) == 1
}

func sha256Hex(pw, salt string) string {
	sum := sha256.Sum256([]byte(pw + salt))
	return hex.EncodeToString(sum[:])
}
