package pin

import (
	"crypto/rand"
	"strings"
)

// Length is the required PIN length in digits.
const Length = 6

const (
	backupCodeChars = 16
	backupCodeGroup = 4
	// Crockford base32 alphabet. 32 divides 256, so indexing by a random
	// byte modulo the length introduces no bias, and the set avoids the
	// characters users misread (I, L, O, U).
	backupCodeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// Valid reports whether pin is exactly 6 ASCII digits.
func Valid(pin string) bool {
	if len(pin) != Length {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// GenerateBackupCode returns a recovery code in the form XXXX-XXXX-XXXX-XXXX.
// Uses crypto/rand for randomness. The code is shown to the user exactly
// once; only its bcrypt hash is stored.
func GenerateBackupCode() (string, error) {
	b := make([]byte, backupCodeChars)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 0; i < backupCodeChars; i++ {
		if i > 0 && i%backupCodeGroup == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(backupCodeAlphabet[int(b[i])%len(backupCodeAlphabet)])
	}
	return sb.String(), nil
}

// NormalizeBackupCode strips separators and upcases so user input matches
// regardless of how the code was transcribed. Hashes are always computed
// over the normalized form.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
