package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Validation errors - bad dates, ranges, probabilities or flag values
	ErrorTypeValidation ErrorType = iota
	// Configuration errors - unreadable or malformed configuration
	ErrorTypeConfig
	// Precondition errors - repository state forbids the operation
	ErrorTypePrecondition
	// Subsystem errors - a repository read or write failed
	ErrorTypeSubsystem
	// Conflict errors - replayed content does not apply on the new base
	ErrorTypeConflict
	// FileSystem errors - scratch file or journal I/O failures
	ErrorTypeFileSystem
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, stops the current run
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypePrecondition:
		return "PRECONDITION"
	case ErrorTypeSubsystem:
		return "SUBSYSTEM"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(3),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(3),
	}
}

// Convenience constructors for common error types

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// WrapValidation wraps a parse failure as a validation error
func WrapValidation(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// ConfigErrorf wraps a configuration error with formatting
func ConfigErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// PreconditionErrorf creates a precondition error with formatting
func PreconditionErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypePrecondition, SeverityHigh, fmt.Sprintf(format, args...))
}

// WrapPrecondition wraps the failure that revealed a broken precondition
func WrapPrecondition(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypePrecondition, SeverityHigh, fmt.Sprintf(format, args...))
}

// SubsystemErrorf wraps a repository error with formatting
func SubsystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeSubsystem, SeverityCritical, fmt.Sprintf(format, args...))
}

// ConflictErrorf wraps a content replay failure with formatting
func ConflictErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeConflict, SeverityCritical, fmt.Sprintf(format, args...))
}

// FileSystemErrorf wraps a filesystem error with formatting
func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// Sentinels for errors.Is matching by category.
var (
	ErrValidation   = &Error{Type: ErrorTypeValidation}
	ErrConfig       = &Error{Type: ErrorTypeConfig}
	ErrPrecondition = &Error{Type: ErrorTypePrecondition}
	ErrSubsystem    = &Error{Type: ErrorTypeSubsystem}
	ErrConflict     = &Error{Type: ErrorTypeConflict}
	ErrFileSystem   = &Error{Type: ErrorTypeFileSystem}
	ErrInternal     = &Error{Type: ErrorTypeInternal}
)

// As finds the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	e, ok := As(err)
	if !ok {
		return 1
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeConfig:
		return 2
	case ErrorTypePrecondition:
		return 3
	case ErrorTypeSubsystem, ErrorTypeFileSystem, ErrorTypeInternal:
		return 4
	case ErrorTypeConflict:
		return 5
	default:
		return 1
	}
}
