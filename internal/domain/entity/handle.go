package entity

import "strings"

// NormalizeHandleBasis lowercases s and drops every character outside [a-z0-9-], so
// "john.doe" becomes "johndoe". Runs of '-' collapse to one and leading or trailing '-'
// are trimmed.
func NormalizeHandleBasis(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-':
			pendingDash = true
		}
	}

	return b.String()
}

// EmailLocalPart returns the part of email before '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")

	return local
}
