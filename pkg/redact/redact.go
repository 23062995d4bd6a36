// Package redact masks account identifiers before they reach logs,
// reports or notifications.
package redact

import "strings"

// Placeholder is returned for identifiers that cannot be masked safely.
const Placeholder = "****@****"

const (
	separator   = "@"
	prefixRunes = 3
	mask        = "****"
)

// Identifier masks an email-like identifier: at most the first three
// characters of the local part are kept, the domain is kept in full.
//
//	abcdef@gmail.com -> abc****@gmail.com
//
// Identifiers without exactly one separator yield Placeholder.
func Identifier(id string) string {
	if strings.Count(id, separator) != 1 {
		return Placeholder
	}

	name, domain, _ := strings.Cut(id, separator)

	prefix := []rune(name)
	if len(prefix) > prefixRunes {
		prefix = prefix[:prefixRunes]
	}
	return string(prefix) + mask + separator + domain
}
