package codec

// Lookup walks nested objects by key. It returns false as soon as a level is
// missing or is not an object.
func Lookup(doc any, path ...string) (any, bool) {
	cur := doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns obj[key] if it is a non-empty string.
func String(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Bool returns obj[key] if it is a JSON boolean.
func Bool(doc any, key string) (bool, bool) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return false, false
	}
	b, ok := obj[key].(bool)
	return b, ok
}
