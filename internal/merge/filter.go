package merge

import (
	"strings"

	"embymerge/internal/media"
)

// Filter excludes items whose path contains any ignored substring.
type Filter struct {
	ignore []string
}

// NewFilter builds a filter from ignore entries. Entries are trimmed and
// empty ones dropped.
func NewFilter(ignore []string) Filter {
	entries := make([]string, 0, len(ignore))
	for _, entry := range ignore {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return Filter{ignore: entries}
}

// Includes reports whether item takes part in merging. Only the path is consulted.
func (f Filter) Includes(item media.LibraryItem) bool {
	if item.Path == "" {
		return true
	}
	for _, entry := range f.ignore {
		if strings.Contains(item.Path, entry) {
			return false
		}
	}
	return true
}

// Apply returns the included items in their original order and the number excluded.
func (f Filter) Apply(items []media.LibraryItem) ([]media.LibraryItem, int) {
	if len(f.ignore) == 0 {
		return items, 0
	}
	kept := make([]media.LibraryItem, 0, len(items))
	for _, item := range items {
		if f.Includes(item) {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept)
}
