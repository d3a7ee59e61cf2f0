// Package credential computes and compares salted password digests.
//
// A Credential stores hex(SHA-256(password ++ salt)) alongside the hex
// salt it was computed with. Two credentials are equal when their hashes
// are equal; the salt is not compared.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	// SaltBytes is the number of random bytes in a salt before hex encoding.
	SaltBytes = 32

	// HashLength is the width of an encoded hash in hex characters.
	HashLength = sha256.Size * 2

	// SaltLength is the width of an encoded salt in hex characters.
	SaltLength = SaltBytes * 2
)

// Credential is an immutable (hash, salt) pair.
type Credential struct {
	hash string
	salt string
}

// New creates a credential for password with a fresh random salt.
func New(password string) (Credential, error) {
	salt, err := randomSalt()
	if err != nil {
		return Credential{}, err
	}
	return Credential{hash: digest(password, salt), salt: salt}, nil
}

// FromStored rebuilds a credential from persisted fields without hashing.
func FromStored(hash, salt string) Credential {
	return Credential{hash: hash, salt: salt}
}

// Verify hashes candidate with this credential's salt.
// The result equals c iff candidate is the original password.
func (c Credential) Verify(candidate string) Credential {
	return Credential{hash: digest(candidate, c.salt), salt: c.salt}
}

// Matches reports whether candidate is the password c was created from.
func (c Credential) Matches(candidate string) bool {
	return c.Equal(c.Verify(candidate))
}

// Equal compares hashes in constant time.
func (c Credential) Equal(other Credential) bool {
	return subtle.ConstantTimeCompare([]byte(c.hash), []byte(other.hash)) == 1
}

// Hash returns the hex digest.
func (c Credential) Hash() string { return c.hash }

// Salt returns the hex salt.
func (c Credential) Salt() string { return c.salt }

// String never exposes the hash.
func (c Credential) String() string {
	return "credential{salt=" + c.salt + "}"
}

// digest computes hex(SHA-256(password ++ salt)).
func digest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func randomSalt() (string, error) {
	buf := make([]byte, SaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
