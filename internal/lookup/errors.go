package lookup

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when PubChem has no answer for a query.
var ErrNotFound = errors.New("not found")

// StatusError reports an unexpected HTTP status from PubChem.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pubchem returned status %d for %s", e.StatusCode, e.URL)
}

// NotFound reports whether the status means the compound does not exist.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == 404
}
