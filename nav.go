package portal

// NavEntry describes one navigation item. Permission names the permission
// required to see it; empty means any authenticated session qualifies.
type NavEntry struct {
	Label      string
	Path       string
	Permission string
	Children   []NavEntry
}

// VisibleEntries filters a navigation tree against the current session.
// Visibility fails closed: loading and anonymous sessions see nothing, a
// hidden parent hides its whole subtree, and child lists are filtered
// recursively. The input slice is never mutated.
func VisibleEntries(entries []NavEntry, s SessionReader) []NavEntry {
	if s == nil || s.Status() != StatusAuthenticated {
		return nil
	}
	return filterEntries(entries, s)
}

func filterEntries(entries []NavEntry, s SessionReader) []NavEntry {
	var visible []NavEntry
	for _, entry := range entries {
		if entry.Permission != "" && !s.HasPermission(entry.Permission) {
			continue
		}
		entry.Children = filterEntries(entry.Children, s)
		visible = append(visible, entry)
	}
	return visible
}
