package redact

import "strings"

// sensitiveKeyNames is the key-name policy used by RedactObject: a map
// value whose key matches (case-insensitively, substring) one of these is
// replaced wholesale, regardless of whether its value looks like a secret.
var sensitiveKeyNames = []string{
	"password",
	"passwd",
	"token",
	"apikey",
	"api_key",
	"secret",
	"auth",
	"credential",
	"privatekey",
	"private_key",
}

// isSensitiveKey reports whether name matches the sensitive-name policy.
func isSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitive := range sensitiveKeyNames {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
