package ledger

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail trims, NFC-normalizes and lowercases an email so that
// visually identical addresses compare equal.
func NormalizeEmail(email string) string {
	// Casers carry state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(email)))
}

// NormalizeName trims and NFC-normalizes a display name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Accounts is the full ledger collection in registration order.
type Accounts []Account

// ByEmail returns the index of the account with the given normalized email.
func (as Accounts) ByEmail(email string) (int, bool) {
	for i := range as {
		if as[i].Email == email {
			return i, true
		}
	}
	return -1, false
}

// ByID returns the index of the account with the given ID.
func (as Accounts) ByID(id string) (int, bool) {
	for i := range as {
		if as[i].ID == id {
			return i, true
		}
	}
	return -1, false
}
