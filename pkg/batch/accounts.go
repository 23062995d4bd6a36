package batch

import (
	"strings"

	"github.com/entrhq/wisplogin/pkg/login"
)

// ParseAccounts splits a comma-separated identifier:secret list. Entries
// are trimmed, entries without a colon are dropped, and each entry splits
// at its first colon so secrets may contain colons. Order is preserved.
func ParseAccounts(raw string) []login.Account {
	var accounts []login.Account
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		id, secret, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		accounts = append(accounts, login.Account{
			Identifier: id,
			Secret:     secret,
		})
	}
	return accounts
}

// CountValid returns how many entries of raw contain a colon, the same
// rule ParseAccounts applies. It is used for startup diagnostics.
func CountValid(raw string) int {
	return len(ParseAccounts(raw))
}
