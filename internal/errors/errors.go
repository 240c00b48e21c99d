// Package errors provides centralized error definitions and error handling utilities
// for proctree. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures of one subsystem:
//   - SnapshotError: a sampling pass produced an enumeration that cannot form a tree
//   - TreeError: the live tree or an incoming snapshot violated a structural invariant
//   - SamplerError: the background sampler could not be reached or failed
//
// Semantic errors represent common error conditions:
//   - NotFoundError: a pid or other resource is not present
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSnapshotError("parent missing from enumeration", errors.ErrCorruptEnumeration).
//		WithPID(42).WithParent(7)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrCorruptEnumeration) { ... }
//
//	var treeErr *errors.TreeError
//	if errors.As(err, &treeErr) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: a later pass may succeed (enumeration failures)
//   - UserFacing: safe to show to users (vs internal invariant violations)
//   - Severity: debug, info, warning, error, critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Sampling-related sentinel errors
var (
	// ErrEnumerationFailed indicates that the OS process table could not be read.
	ErrEnumerationFailed = New("process enumeration failed")
	// ErrCorruptEnumeration indicates that an enumeration's parent/child links disagree.
	ErrCorruptEnumeration = New("corrupt process enumeration")
	// ErrSamplerStopped indicates that the background sampler is no longer running.
	ErrSamplerStopped = New("sampler stopped")
)

// Tree-related sentinel errors
var (
	// ErrTreeInconsistent indicates that a tree references a pid it does not hold,
	// or that a merge ended with unbalanced cursors.
	ErrTreeInconsistent = New("process tree inconsistent")
)

// General sentinel errors
var (
	// ErrNotFound indicates that a requested resource does not exist.
	ErrNotFound = New("not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ProctreeError is the base interface for all proctree errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type ProctreeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if a later attempt may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SnapshotError reports a sampling pass whose enumeration could not be turned
// into a snapshot. The pass is abandoned; later passes may succeed.
//
// Example:
//
//	err := errors.NewSnapshotError("task declares a different parent", errors.ErrCorruptEnumeration)
//	err = err.WithPID(812).WithParent(1)
//	fmt.Println(err) // "snapshot error [pid=812, parent=1]: task declares a different parent: corrupt process enumeration"
type SnapshotError struct {
	baseError
	PID    int64
	Parent int64
	hasPID bool
	hasPar bool
}

// NewSnapshotError creates a new SnapshotError.
func NewSnapshotError(message string, cause error) *SnapshotError {
	return &SnapshotError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithPID adds the offending pid to the error context.
func (e *SnapshotError) WithPID(pid int64) *SnapshotError {
	e.PID = pid
	e.hasPID = true
	return e
}

// WithParent adds the declared parent pid to the error context.
func (e *SnapshotError) WithParent(parent int64) *SnapshotError {
	e.Parent = parent
	e.hasPar = true
	return e
}

// WithSeverity sets the error severity.
func (e *SnapshotError) WithSeverity(s Severity) *SnapshotError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SnapshotError) Error() string {
	var parts []string
	if e.hasPID {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.hasPar {
		parts = append(parts, fmt.Sprintf("parent=%d", e.Parent))
	}
	return e.format("snapshot error", parts)
}

// Is checks if this error matches the target.
func (e *SnapshotError) Is(target error) bool {
	if _, ok := target.(*SnapshotError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TreeError reports a structural invariant violation in the live tree or in
// an incoming snapshot during a sync. It is never expected in correct
// operation and is not retryable.
//
// Example:
//
//	err := errors.NewTreeError("child pid missing from node map", errors.ErrTreeInconsistent).
//		WithPID(77).WithRow(3)
type TreeError struct {
	baseError
	PID    int64
	Parent int64
	Row    int
	hasPID bool
	hasPar bool
	hasRow bool
}

// NewTreeError creates a new TreeError.
func NewTreeError(message string, cause error) *TreeError {
	return &TreeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithPID adds the pid that failed to resolve.
func (e *TreeError) WithPID(pid int64) *TreeError {
	e.PID = pid
	e.hasPID = true
	return e
}

// WithParent adds the parent whose sibling sequence was being merged.
func (e *TreeError) WithParent(parent int64) *TreeError {
	e.Parent = parent
	e.hasPar = true
	return e
}

// WithRow adds the sibling row at which the violation occurred.
func (e *TreeError) WithRow(row int) *TreeError {
	e.Row = row
	e.hasRow = true
	return e
}

// Error returns the formatted error message.
func (e *TreeError) Error() string {
	var parts []string
	if e.hasPID {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.hasPar {
		parts = append(parts, fmt.Sprintf("parent=%d", e.Parent))
	}
	if e.hasRow {
		parts = append(parts, fmt.Sprintf("row=%d", e.Row))
	}
	return e.format("tree error", parts)
}

// Is checks if this error matches the target.
func (e *TreeError) Is(target error) bool {
	if _, ok := target.(*TreeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SamplerError reports a failure to communicate with the background sampler.
// The owner should treat it as fatal to the monitoring session.
//
// Example:
//
//	err := errors.NewSamplerError("control signal not delivered", errors.ErrSamplerStopped).
//		WithSignal("activate")
type SamplerError struct {
	baseError
	Signal string
}

// NewSamplerError creates a new SamplerError.
func NewSamplerError(message string, cause error) *SamplerError {
	return &SamplerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSignal adds the control signal that could not be delivered.
func (e *SamplerError) WithSignal(signal string) *SamplerError {
	e.Signal = signal
	return e
}

// Error returns the formatted error message.
func (e *SamplerError) Error() string {
	var parts []string
	if e.Signal != "" {
		parts = append(parts, fmt.Sprintf("signal=%s", e.Signal))
	}
	return e.format("sampler error", parts)
}

// Is checks if this error matches the target.
func (e *SamplerError) Is(target error) bool {
	if _, ok := target.(*SamplerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("process", "4242")
//	fmt.Println(err) // "process '4242' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("unknown output format").WithField("format").WithValue("xml")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that a later sampling pass may not hit again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ptErr ProctreeError
	if As(err, &ptErr) {
		return ptErr.IsRetryable()
	}

	return Is(err, ErrEnumerationFailed)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var ptErr ProctreeError
	if As(err, &ptErr) {
		return ptErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ProctreeError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    logger.Error("invariant violated", "error", err)
//	case errors.SeverityWarning:
//	    logger.Warn("warning", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var ptErr ProctreeError
	if As(err, &ptErr) {
		return ptErr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (SnapshotError, TreeError or SamplerError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var snapErr *SnapshotError
	var treeErr *TreeError
	var samplerErr *SamplerError

	return As(err, &snapErr) || As(err, &treeErr) || As(err, &samplerErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike a bare fmt.Errorf call site, a nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
