package merge

import "embymerge/internal/media"

// unknownName labels a group when no item supplies a name.
const unknownName = "unknown"

// Group is an ordered set of item ids that share a grouping key.
type Group struct {
	Name string
	IDs  []string
}

// GroupByName buckets items by exact display name. Groups come back in the
// order each name was first seen; ids keep their input order and are not
// deduplicated.
func GroupByName(items []media.LibraryItem) []Group {
	if len(items) == 0 {
		return nil
	}
	index := make(map[string]int, len(items))
	groups := make([]Group, 0, len(items))
	for _, item := range items {
		pos, ok := index[item.Name]
		if !ok {
			pos = len(groups)
			index[item.Name] = pos
			groups = append(groups, Group{Name: item.Name})
		}
		groups[pos].IDs = append(groups[pos].IDs, item.ID)
	}
	return groups
}

// GroupByIdentity places every item in one group named after the first item.
// Used when the items were already selected by a shared provider identity.
func GroupByIdentity(items []media.LibraryItem) Group {
	group := Group{Name: unknownName, IDs: make([]string, 0, len(items))}
	if len(items) > 0 && items[0].Name != "" {
		group.Name = items[0].Name
	}
	for _, item := range items {
		group.IDs = append(group.IDs, item.ID)
	}
	return group
}
