package maps

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("map not found")
	ErrParse             = errors.New("invalid map definition")
	ErrRotationEmpty     = errors.New("map rotation is empty")
	ErrRotationExhausted = errors.New("map rotation exhausted")
)

// ParseError reports a definition that exists but cannot be used.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("map %q: %s", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
