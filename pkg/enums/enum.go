package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of valid spelled exactly as value.
func parse[T ~string](label, value string, valid []T) (T, error) {
	if i := slices.Index(valid, T(value)); i >= 0 {
		return valid[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", label, value)
}
