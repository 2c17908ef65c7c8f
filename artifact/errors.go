package artifact

import "fmt"

var (
	// ErrNotFound is returned when no artifact exists for the given id.
	ErrNotFound = fmt.Errorf("artifact not found")
)
