package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Deterministic digest parameters. The login flow compares digests
// byte-for-byte and looks users up by hash equality, so the digest must be
// reproducible for a given password (no per-call salt).
var passwordSalt = []byte("go-user-admin.v1")

const pbkdf2Iterations = 50_000

// HashPassword returns the one-way digest stored for a password.
func HashPassword(pw string) string {
	key := pbkdf2.Key([]byte(pw), passwordSalt, pbkdf2Iterations, sha256.Size, sha256.New)
	return hex.EncodeToString(key)
}

// CheckPassword reports whether pw digests to hashed.
func CheckPassword(pw, hashed string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(pw)), []byte(hashed)) == 1
}
