// Package enums holds the string enums shared by the API, the workers and the
// postgres schema. Values match the database CHECK constraints.
package enums

import "fmt"

func isOneOf[T ~string](v T, valid []T) bool {
	for _, candidate := range valid {
		if candidate == v {
			return true
		}
	}
	return false
}

func parseOneOf[T ~string](value string, valid []T, kind string) (T, error) {
	for _, candidate := range valid {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
