// Package clone produces independently owned copies of model inputs.
package clone

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// Func returns a deep copy of its argument.
type Func[T any] func(T) (T, error)

// Deep copies src with go-deepcopy. Slices, maps and pointers are
// duplicated.
func Deep[T any](src T) (T, error) {
	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return dst, fmt.Errorf("deep copy %T: %w", src, err)
	}
	return dst, nil
}
