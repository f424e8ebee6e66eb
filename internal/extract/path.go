package extract

// Path addresses a node inside a decoded JSON tree: string steps index
// objects, int steps index arrays.
type Path []any

// Lookup walks v along p. It reports false (absent) instead of failing when
// a step does not exist or the node has an unexpected shape.
func Lookup(v any, p Path) (any, bool) {
	cur := v
	for _, step := range p {
		switch k := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := m[k]
			if !ok {
				return nil, false
			}
			cur = next
		case int:
			arr, ok := cur.([]any)
			if !ok || k < 0 || k >= len(arr) {
				return nil, false
			}
			cur = arr[k]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// LookupString is Lookup restricted to string leaves.
func LookupString(v any, p Path) (string, bool) {
	n, ok := Lookup(v, p)
	if !ok {
		return "", false
	}
	s, ok := n.(string)
	return s, ok
}

// LookupList is Lookup restricted to array nodes. An empty array is
// reported as present but empty.
func LookupList(v any, p Path) ([]any, bool) {
	n, ok := Lookup(v, p)
	if !ok {
		return nil, false
	}
	arr, ok := n.([]any)
	return arr, ok
}
