package auth

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const backupCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// GenerateBackupCodes returns n codes of the form xxxxx-xxxxx
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	max := big.NewInt(int64(len(backupCodeAlphabet)))

	for len(codes) < n {
		var b strings.Builder
		for i := range 10 {
			if i == 5 {
				b.WriteByte('-')
			}
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, err
			}
			b.WriteByte(backupCodeAlphabet[idx.Int64()])
		}
		code := b.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode lower-cases and restores the dash so user input like
// "ABCDE FGHJK" matches the stored hash.
func NormalizeBackupCode(code string) string {
	code = strings.ToLower(code)
	code = strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, code)
	if len(code) != 10 {
		return code
	}
	return code[:5] + "-" + code[5:]
}
