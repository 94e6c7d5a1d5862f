package world

import (
	"errors"
	"fmt"
)

var ErrNotActive = errors.New("no active world for map")

// CopyError means the map template could not be copied into an instance
// directory.
type CopyError struct {
	Key string
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copying template for map %q: %s", e.Key, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// InstantiationError means the host refused to create or configure the world.
type InstantiationError struct {
	Key   string
	World string
	Err   error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiating world %q for map %q: %s", e.World, e.Key, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}
