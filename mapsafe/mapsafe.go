// Package mapsafe reads typed values out of decoded JSON/YAML documents.
package mapsafe

// Get retrieves a typed value from a map[string]any.
// JSON numbers decode as float64, so int and float64 are converted into each other.
// If the key is missing or the value cannot be converted, defaultValue is returned.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T)
		case int64:
			return any(int(x)).(T)
		case float64:
			if x != float64(int(x)) {
				return defaultValue
			}
			return any(int(x)).(T)
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T)
		case int:
			return any(float64(x)).(T)
		}
	default:
		if v, ok := val.(T); ok {
			return v
		}
	}

	return defaultValue
}

// Map returns the nested object stored under key, or nil.
func Map(m map[string]any, key string) map[string]any {
	return Get[map[string]any](m, key, nil)
}

// IntMap converts a nested object of numbers into map[string]int,
// skipping entries that are not whole numbers.
func IntMap(m map[string]any, key string) map[string]int {
	nested := Map(m, key)
	out := make(map[string]int, len(nested))
	for k := range nested {
		if v := Get(nested, k, -1); v >= 0 {
			out[k] = v
		}
	}
	return out
}
