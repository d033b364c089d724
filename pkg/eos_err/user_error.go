// pkg/eos_err/user_error.go

package eos_err

import (
	"context"
	"errors"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// UserError marks an error the operator can fix by changing input.
// It is not wrapped with a stack trace by the CLI wrapper.
type UserError struct {
	cause error
}

func (e *UserError) Error() string { return e.cause.Error() }
func (e *UserError) Unwrap() error { return e.cause }

// NewExpectedError wraps err as a UserError and logs it at warn level.
func NewExpectedError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	otelzap.Ctx(ctx).Warn("Expected user error", zap.Error(err))
	return &UserError{cause: err}
}

// IsExpectedUserError reports whether err is an operator-facing error:
// either a UserError or a validation / decline classification.
func IsExpectedUserError(err error) bool {
	if err == nil {
		return false
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return true
	}
	c, ok := CategoryOf(err)
	return ok && (c == CategoryValidation || c == CategoryDeclined)
}
