// Package keyclass classifies env var names by how sensitive they look,
// for presentation purposes only — it never inspects values. Adapted
// from the cloud-resource secret-naming heuristics used to infer env
// var names and secret types from infrastructure field names; here the
// same name-pattern heuristics classify keys already present in a
// parsed env block, for `nevr vault status`'s summary view and for
// `nevr scan`'s generic key-like-assignment pattern tuning.
package keyclass

import (
	"regexp"
	"strings"
)

// sensitivePatterns mirrors common naming conventions for secret-like
// configuration keys.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^.*PASSWORD.*$`),
	regexp.MustCompile(`(?i)^.*SECRET.*$`),
	regexp.MustCompile(`(?i)^.*API[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*TOKEN.*$`),
	regexp.MustCompile(`(?i)^.*CREDENTIAL.*$`),
	regexp.MustCompile(`(?i)^.*PRIVATE[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*ACCESS[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*CLIENT[_-]?SECRET.*$`),
	regexp.MustCompile(`(?i)^.*ENCRYPTION[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*SIGNING[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*DB[_-]?PASS.*$`),
	regexp.MustCompile(`(?i)^.*SSH[_-]?KEY.*$`),
	regexp.MustCompile(`(?i)^.*JWT[_-]?SECRET.*$`),
}

var explicitNames = map[string]bool{
	"PASSWORD": true, "SECRET": true, "API_KEY": true, "APIKEY": true,
	"TOKEN": true, "AUTH_TOKEN": true, "ACCESS_TOKEN": true, "REFRESH_TOKEN": true,
	"PRIVATE_KEY": true, "SECRET_KEY": true, "ENCRYPTION_KEY": true,
	"DB_PASSWORD": true, "DATABASE_PASSWORD": true, "JWT_SECRET": true,
	"SESSION_SECRET": true, "COOKIE_SECRET": true, "SIGNING_KEY": true,
	"SSH_KEY": true, "SSH_PRIVATE_KEY": true, "TLS_KEY": true, "SSL_KEY": true,
}

// IsSensitive reports whether an env var name likely names a secret.
func IsSensitive(name string) bool {
	upper := strings.ToUpper(name)
	if explicitNames[upper] {
		return true
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// Category is a coarse grouping used only for display, e.g. in `nevr
// vault status` to report counts without revealing which specific keys
// are sensitive alongside their values.
type Category int

const (
	CategoryGeneric Category = iota
	CategoryPassword
	CategoryAPIKey
	CategoryPrivateKey
	CategoryConnectionString
)

func (c Category) String() string {
	switch c {
	case CategoryPassword:
		return "password"
	case CategoryAPIKey:
		return "api-key"
	case CategoryPrivateKey:
		return "private-key"
	case CategoryConnectionString:
		return "connection-string"
	default:
		return "generic"
	}
}

// Classify guesses a name's category for display grouping.
func Classify(name string) Category {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "PASSWORD") || strings.Contains(upper, "PASSWD"):
		return CategoryPassword
	case strings.Contains(upper, "API_KEY") || strings.Contains(upper, "APIKEY") || strings.Contains(upper, "TOKEN"):
		return CategoryAPIKey
	case strings.Contains(upper, "PRIVATE_KEY") || strings.Contains(upper, "SSH_KEY") || strings.Contains(upper, "TLS_KEY"):
		return CategoryPrivateKey
	case strings.Contains(upper, "CONNECTION_STRING") || strings.Contains(upper, "DATABASE_URL") || strings.Contains(upper, "DB_URL"):
		return CategoryConnectionString
	default:
		return CategoryGeneric
	}
}
