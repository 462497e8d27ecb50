package lifecycle

import (
	"fmt"
	"strings"
)

// maxSlugLen caps the sanitized name so the local part stays well under the
// provider's email length limit.
const maxSlugLen = 60

// SanitizeName normalizes an account name for use in an email local part:
// lowercase, runs of anything outside [a-z0-9-] collapsed to a single
// hyphen, leading and trailing hyphens trimmed.
func SanitizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	lastHyphen := false
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// GenerateEmail derives the unique account email from the counter snapshot.
// The result is a pure function of (prefix, n, name, domain); uniqueness is
// guaranteed by the monotonic counter, not by the provider.
func GenerateEmail(prefix string, n int, name, domain string) string {
	return fmt.Sprintf("%s+%d-%s@%s", prefix, n, SanitizeName(name), domain)
}
