package library

import "strings"

// ISBNPrefix is the publisher prefix every stored ISBN carries.
const ISBNPrefix = "978-"

// NormalizeISBN returns the canonical form of an ISBN: trimmed and prefixed
// with ISBNPrefix. The remainder may hold digits and hyphens only, and must
// contain 5 (legacy), 10 or 13 digits.
func NormalizeISBN(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", withMessage(ErrInvalidISBN, "ISBN cannot be empty")
	}
	body := strings.TrimPrefix(s, ISBNPrefix)

	digits := 0
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
		default:
			return "", withMessage(ErrInvalidISBN, "invalid ISBN %q: only digits and hyphens are allowed", input)
		}
	}
	if strings.HasPrefix(body, "-") || strings.HasSuffix(body, "-") {
		return "", withMessage(ErrInvalidISBN, "invalid ISBN %q", input)
	}
	switch digits {
	case 5, 10, 13:
	default:
		return "", withMessage(ErrInvalidISBN, "invalid ISBN %q: expected 5, 10 or 13 digits", input)
	}
	return ISBNPrefix + body, nil
}

// IsLegacyISBN reports whether input is the bare 5-digit form readers use
// when publishing a book.
func IsLegacyISBN(input string) bool {
	s := strings.TrimSpace(input)
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// canonicalKey normalizes isbn for lookups. Inputs that fail validation are
// kept as typed so legacy rows can still be matched exactly.
func canonicalKey(isbn string) string {
	if n, err := NormalizeISBN(isbn); err == nil {
		return n
	}
	return strings.TrimSpace(isbn)
}
