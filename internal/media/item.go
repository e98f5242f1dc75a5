package media

// LibraryItem is a single library entry as reported by the media server.
// Items are built once per decision cycle and never mutated.
type LibraryItem struct {
	ID          string
	Name        string
	Path        string
	ProviderIDs map[string]string
}

// ProviderID returns the value stored for provider, matched case-sensitively.
func (i LibraryItem) ProviderID(provider string) (string, bool) {
	if i.ProviderIDs == nil {
		return "", false
	}
	value, ok := i.ProviderIDs[provider]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
