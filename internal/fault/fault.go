// Package fault provides classified errors for the timetable service.
//
// Errors carry a category (for routing and HTTP mapping), a severity, an
// optional cause, and a structured context map. Use the builder constructors
// (StorageError, RemoteError, ...) rather than constructing Error directly.
package fault

import (
	"errors"
	"fmt"
)

// Category is the broad classification of an error.
type Category string

const (
	// CategoryValidation covers malformed caller input.
	CategoryValidation Category = "validation"
	// CategoryConfig covers configuration file and environment problems.
	CategoryConfig Category = "config"
	// CategoryNotFound covers lookups of absent sheets or entities.
	CategoryNotFound Category = "not_found"
	// CategoryStorage covers local mirror failures.
	CategoryStorage Category = "storage"
	// CategoryRemote covers remote backend I/O failures.
	CategoryRemote Category = "remote"
	// CategoryMigration covers legacy data upgrade failures.
	CategoryMigration Category = "migration"
	// CategoryInternal covers programming errors and unexpected states.
	CategoryInternal Category = "internal"
)

// Severity indicates the impact of an error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Context is a structured key-value bag attached to an error.
type Context map[string]any

// Error is a classified error.
type Error struct {
	category Category
	severity Severity
	message  string
	cause    error
	context  Context
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap supports errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *Error) Category() Category { return e.category }

// Severity returns the error severity.
func (e *Error) Severity() Severity { return e.severity }

// Message returns the message without classification prefix.
func (e *Error) Message() string { return e.message }

// Context returns the structured context attached to the error.
func (e *Error) Context() Context { return e.context }

// AsClassified extracts a classified *Error from an error chain.
func AsClassified(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CategoryOf returns the category of err, or CategoryInternal for
// unclassified errors.
func CategoryOf(err error) Category {
	if ce, ok := AsClassified(err); ok {
		return ce.category
	}
	return CategoryInternal
}

// Builder assembles an Error fluently.
type Builder struct {
	err Error
}

// New starts a builder with the given category and message.
func New(category Category, message string) *Builder {
	return &Builder{err: Error{
		category: category,
		severity: SeverityError,
		message:  message,
	}}
}

// Wrap starts a builder around an existing cause.
func Wrap(cause error, category Category, message string) *Builder {
	b := New(category, message)
	b.err.cause = cause
	return b
}

// WithCause attaches an underlying error.
func (b *Builder) WithCause(cause error) *Builder {
	b.err.cause = cause
	return b
}

// WithSeverity overrides the default severity.
func (b *Builder) WithSeverity(s Severity) *Builder {
	b.err.severity = s
	return b
}

// WithContext adds one context key-value pair.
func (b *Builder) WithContext(key string, value any) *Builder {
	if b.err.context == nil {
		b.err.context = make(Context)
	}
	b.err.context[key] = value
	return b
}

// Warning sets the severity to warning.
func (b *Builder) Warning() *Builder { return b.WithSeverity(SeverityWarning) }

// Fatal sets the severity to fatal.
func (b *Builder) Fatal() *Builder { return b.WithSeverity(SeverityFatal) }

// Build finalizes the error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for the common categories.

// ValidationError creates a validation error builder.
func ValidationError(message string) *Builder { return New(CategoryValidation, message) }

// ConfigError creates a configuration error builder (fatal by default).
func ConfigError(message string) *Builder { return New(CategoryConfig, message).Fatal() }

// NotFoundError creates a not-found error builder.
func NotFoundError(message string) *Builder { return New(CategoryNotFound, message) }

// StorageError creates a local storage error builder.
func StorageError(message string) *Builder { return New(CategoryStorage, message) }

// RemoteError creates a remote backend error builder.
func RemoteError(message string) *Builder { return New(CategoryRemote, message) }

// MigrationError creates a data migration error builder.
func MigrationError(message string) *Builder { return New(CategoryMigration, message) }

// InternalError creates an internal error builder.
func InternalError(message string) *Builder { return New(CategoryInternal, message) }
