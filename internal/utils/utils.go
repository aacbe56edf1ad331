// Package utils holds small generic helpers shared across packages.
package utils

// Ptr returns a pointer to v. Handy for returning copies of map-held values.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences v, returning the zero value for a nil pointer.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// ToStringSlice keeps the string members of a decoded JSON array. Non-string
// members are dropped, not an error: token claims come from outside and are
// best-effort input.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}
