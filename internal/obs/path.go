package obs

import "strings"

// collections whose immediate child segment is a record id. Keeps metric label
// cardinality bounded regardless of how many records exist.
var idCollections = map[string]struct{}{
	"leads":          {},
	"customers":      {},
	"communications": {},
	"renewals":       {},
	"users":          {},
}

// CanonicalPath collapses record identifiers in request paths to ":id" so that
// per-path metrics stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := idCollections[parts[i]]; ok && parts[i+1] != "" {
			parts[i+1] = ":id"
			// only the segment right after the collection is an id; deeper
			// segments are fixed sub-resources like /permissions
			break
		}
	}
	return strings.Join(parts, "/")
}
