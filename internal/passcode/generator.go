package passcode

import (
	"crypto/rand"
	"encoding/hex"
	mathrand "math/rand/v2"
)

// alphabet is the 62-character set passcodes are drawn from.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// tokenBytes gives session tokens 256 bits of entropy.
const tokenBytes = 32

// Generate produces a random alphanumeric passcode of exactly length
// characters. Passcodes are not secrets in the cryptographic sense (they are
// checked by equality against the store), so the shared PRNG is enough; the
// store's uniqueness constraint catches the rare collision and the caller
// retries with a fresh code.
func Generate(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[mathrand.IntN(len(alphabet))]
	}
	return string(b)
}

// NewSessionToken mints an unguessable session token: 32 bytes from
// crypto/rand, hex encoded. Uniqueness is enforced by the session store;
// the engine regenerates on the (astronomically unlikely) collision.
func NewSessionToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("passcode: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
