package shared

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new hashes. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

// maxBcryptInput is the longest input bcrypt accepts.
const maxBcryptInput = 72

// bcryptInput passes short passwords through unchanged and reduces longer
// ones to the base64 of their SHA-256, which fits bcrypt's limit.
func bcryptInput(plain string) []byte {
	if len(plain) <= maxBcryptInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// HashPassword returns a bcrypt hash of plain. Passwords of any length are
// accepted.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsPasswordHash reports whether stored looks like a bcrypt hash rather than
// a legacy plaintext credential.
func IsPasswordHash(stored string) bool {
	if !strings.HasPrefix(stored, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// CheckPassword compares plain against a stored credential. Legacy plaintext
// credentials are compared in constant time and reported with legacy=true so
// the caller can re-hash them.
func CheckPassword(stored, plain string) (ok bool, legacy bool) {
	if IsPasswordHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), bcryptInput(plain)) == nil, false
	}
	if stored == "" {
		return false, true
	}
	return SecureEqual(stored, plain), true
}

func SecureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewID returns an opaque identifier such as "annonce_<uuid>".
func NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}
