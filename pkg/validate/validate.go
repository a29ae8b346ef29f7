// Package validate holds small input predicates for user-supplied values.
package validate

import "strings"

const (
	tokenAddressLen = 44
	base58Alphabet  = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	maxQueryLen     = 50
)

// IsTokenAddress reports whether s looks like a Solana token mint address:
// exactly 44 base58 characters.
func IsTokenAddress(s string) bool {
	if len(s) != tokenAddressLen {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

// SanitizeQuery strips characters we never want to forward to the market-data
// API and caps the query length.
func SanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range q {
		switch r {
		case '<', '>', '"', '\'':
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxQueryLen {
		out = out[:maxQueryLen]
	}
	return out
}
