package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("catalog service unavailable")
)

// ResolutionError is returned when a category or subcategory slug can not be
// turned into an id. Err is ErrNotFound for a slug that does not exist and
// wraps ErrUnavailable when the lookup itself failed.
type ResolutionError struct {
	Kind string
	Slug string
	Err  error
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Err, ErrNotFound) {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Slug)
	}
	return fmt.Sprintf("resolve %s %q: %v", e.Kind, e.Slug, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) NotFound() bool {
	return errors.Is(e.Err, ErrNotFound)
}

func (e *ResolutionError) Retryable() bool {
	return errors.Is(e.Err, ErrUnavailable)
}
