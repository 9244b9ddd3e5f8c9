// Package email derives a provisional profile name from an email address.
// Registration collects no name of its own, so until the user supplies one
// the local part of the address stands in.
package email

import (
	"strings"
	"unicode"
)

// DeriveNames splits the local part of the address on common separators and
// titles the first and last segments as a given and family name. Addresses
// that yield nothing fall back to "User".
func DeriveNames(address string) (string, string) {
	local := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		local = address[:at]
	}

	segments := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(segments) == 0 {
		return "User", "User"
	}

	given := title(segments[0])
	family := "User"
	if len(segments) > 1 {
		family = title(segments[len(segments)-1])
	}

	return given, family
}

func title(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
