// pkg/eos_err/classification.go
//
// Error classification with exit codes. Every failure the bootstrap engine
// reports to the operator is one of these categories.

package eos_err

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategoryEnvironment - unsupported OS, missing package manager, not root (exit 1)
	CategoryEnvironment ErrorCategory = iota
	// CategoryValidation - bad or missing operator input (exit 1)
	CategoryValidation
	// CategoryDeclined - operator answered "no" at the confirmation gate (exit 0)
	CategoryDeclined
	// CategoryStage - a required provisioning stage failed (exit 1)
	CategoryStage
	// CategoryConvergence - puppet run reported failures (recoverable, exit 1 if surfaced)
	CategoryConvergence
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryEnvironment:
		return "environment"
	case CategoryValidation:
		return "validation"
	case CategoryDeclined:
		return "declined"
	case CategoryStage:
		return "stage"
	case CategoryConvergence:
		return "convergence"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	if e.Category == CategoryDeclined {
		return 0
	}
	return 1
}

// GetExitCode extracts exit code from any error.
// Returns 0 for nil and for operator declines, 1 for everything else.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	return 1
}

// CategoryOf reports the category of err, or false if err is not classified.
func CategoryOf(err error) (ErrorCategory, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category, true
	}
	return 0, false
}

// NewEnvironmentError is returned when the host cannot be bootstrapped at all.
func NewEnvironmentError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryEnvironment,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewValidationError creates an error for input validation failures
func NewValidationError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		Remediation: remediation,
	}
}

// NewValidationErrorf is NewValidationError with formatting and no remediation.
func NewValidationErrorf(format string, args ...any) error {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewDeclinedError marks a clean operator abort.
func NewDeclinedError(operation string) error {
	return &ClassifiedError{
		Category: CategoryDeclined,
		Message:  fmt.Sprintf("operation declined by operator: %s", operation),
	}
}

// NewStageError creates an error for a required provisioning stage.
func NewStageError(stage string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryStage,
		Message:     fmt.Sprintf("stage %q failed", stage),
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewConvergenceError reports a puppet run that exited outside {0, 2}.
func NewConvergenceError(message string, exitCode int, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryConvergence,
		Message:     fmt.Sprintf("%s (exit code %d)", message, exitCode),
		Remediation: remediation,
	}
}

// IsDeclined reports whether err is an operator decline.
func IsDeclined(err error) bool {
	c, ok := CategoryOf(err)
	return ok && c == CategoryDeclined
}
