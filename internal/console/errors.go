package console

import (
	"context"
	"errors"

	"github.com/pixil98/go-arena/internal/display"
	"github.com/pixil98/go-arena/internal/driver"
)

var (
	ErrNameInUse    = errors.New("that name is already connected")
	ErrTooManyTries = errors.New("too many tries")
)

// UserError is shown to the participant and the session carries on.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}

// userErr turns a rejected operation into a UserError. Errors that mean the
// arena is going away are passed through so the session ends.
func userErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, driver.ErrStopped):
		return err
	}
	return NewUserError(display.Capitalize(err.Error()) + ".")
}
