package patch

import (
	"errors"
	"fmt"
)

var ErrPathNotAllowed = errors.New("path is not in the allowed paths set")

func ValidatePatchOperations(ops []Operation, allowedPaths map[string]bool) error {
	for i, op := range ops {
		if len(allowedPaths) > 0 && !allowedPaths[op.Path] {
			return fmt.Errorf("operation %d: %q: %w", i, op.Path, ErrPathNotAllowed)
		}
	}
	return nil
}
