package logger

import (
	"log/slog"
	"strings"
)

// MaskIdentifier masks a login identifier for logging. Email-shaped values
// become "u***@*******.com"; anything else keeps only its first character.
func MaskIdentifier(identifier string) string {
	if identifier == "" {
		return "[empty]"
	}

	parts := strings.Split(identifier, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return maskTail(identifier)
	}

	username := maskTail(parts[0])
	domain := parts[1]

	// Mask all but the TLD
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	} else {
		domain = strings.Repeat("*", len(domain))
	}

	return username + "@" + domain
}

func maskTail(s string) string {
	r := []rune(s)
	if len(r) <= 1 {
		return s
	}
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

// IdentifierAttr returns the masked identifier as a slog attribute
func IdentifierAttr(identifier string) slog.Attr {
	return slog.String("identifier", MaskIdentifier(identifier))
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "token", "secret", "api_key", "apikey",
		"email", "identifier", "auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
