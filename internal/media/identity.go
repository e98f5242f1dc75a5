package media

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IdentityKey identifies a title by an external provider id, e.g. Tmdb/603.
type IdentityKey struct {
	Provider string
	Value    string
}

// NewIdentityKey builds a key from a provider name and value. ok is false
// when either part is blank.
func NewIdentityKey(provider, value string) (IdentityKey, bool) {
	provider = strings.TrimSpace(provider)
	value = strings.TrimSpace(value)
	if provider == "" || value == "" {
		return IdentityKey{}, false
	}
	return IdentityKey{Provider: provider, Value: value}, true
}

// String renders the key in the form Emby accepts for AnyProviderIdEquals:
// the lowercased provider name, a dot, and the provider value.
func (k IdentityKey) String() string {
	if k.IsZero() {
		return ""
	}
	// Casers carry state, so one is built per call.
	return cases.Lower(language.Und).String(k.Provider) + "." + k.Value
}

// IsZero reports whether the key is unset.
func (k IdentityKey) IsZero() bool {
	return k.Provider == "" || k.Value == ""
}
