package framework

import "strings"

// Settings is a read-only view of the application settings.
type Settings interface {
	// Get returns the value at a dotted path, such as "http.baseUri".
	Get(path string) (any, bool)
}

// MapSettings implements Settings over a nested map.
type MapSettings map[string]any

var _ Settings = MapSettings(nil)

func (m MapSettings) Get(path string) (any, bool) {
	var current any = map[string]any(m)

	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// String returns the string at path, or "" if it is unset or not a string.
func String(s Settings, path string) string {
	if s == nil {
		return ""
	}

	v, ok := s.Get(path)
	if !ok {
		return ""
	}

	str, _ := v.(string)
	return str
}
