// Package errors provides centralized error definitions and error handling utilities
// for the buildrecorder codebase. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to the observed build session
//   - ModuleError: errors related to processing one build module
//   - DeployError: errors raised while uploading artifacts or publishing build info
//   - ConfigError: errors related to configuration loading and templating
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewDeployError(errors.PhaseArtifactUpload, transportErr).
//	    WithRepository("libs-release").WithPath("org/acme/app/1.0/app-1.0.jar")
//
//	// Semantic error
//	err := errors.NewNotFoundError("manifest", "session.yaml")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrUploadFailed) { ... }
//
//	// Check for error types
//	var deployErr *errors.DeployError
//	if errors.As(err, &deployErr) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
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

// Deployment phases reported by DeployError.
const (
	PhaseArtifactUpload   = "artifact-upload"
	PhaseBuildInfoPublish = "build-info-publish"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionAborted indicates that the build session reported errors, so no
	// build info was produced.
	ErrSessionAborted = New("build session aborted")
	// ErrSessionComplete indicates an event arrived after the session ended.
	ErrSessionComplete = New("build session already ended")
	// ErrManifestInvalid indicates that a session manifest could not be used.
	ErrManifestInvalid = New("session manifest is invalid")
)

// Module-related sentinel errors
var (
	// ErrModuleFailed indicates that a build module reported failure.
	ErrModuleFailed = New("module failed")
	// ErrChecksumFailed indicates that digests could not be computed for a file.
	ErrChecksumFailed = New("checksum computation failed")
)

// Deploy-related sentinel errors
var (
	// ErrUploadFailed indicates that an artifact upload failed.
	ErrUploadFailed = New("artifact upload failed")
	// ErrPublishFailed indicates that build info publication failed.
	ErrPublishFailed = New("build info publication failed")
)

// Config-related sentinel errors
var (
	// ErrInvalidPattern indicates a malformed include or exclude glob.
	ErrInvalidPattern = New("invalid path pattern")
	// ErrUnresolvedTemplate indicates a {{...}} template with no value and no default.
	ErrUnresolvedTemplate = New("unresolved template")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RecorderError is the base interface for all buildrecorder errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type RecorderError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
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

// SessionError represents errors related to the observed build session.
//
// Example:
//
//	err := errors.NewSessionError("session ended with failures", errors.ErrSessionAborted)
//	err = err.WithBuild("app", "42")
//	fmt.Println(err) // "session error [build=app, number=42]: session ended with failures: build session aborted"
type SessionError struct {
	baseError
	BuildName   string
	BuildNumber string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithBuild adds the build name and number to the error context.
func (e *SessionError) WithBuild(name, number string) *SessionError {
	e.BuildName = name
	e.BuildNumber = number
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.BuildName != "" {
		parts = append(parts, fmt.Sprintf("build=%s", e.BuildName))
	}
	if e.BuildNumber != "" {
		parts = append(parts, fmt.Sprintf("number=%s", e.BuildNumber))
	}
	return e.format("session error", parts)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ModuleError represents errors raised while processing one build module.
//
// Example:
//
//	err := errors.NewModuleError("checksum failed", ioErr)
//	err = err.WithModuleID("org.acme:app:1.0").WithWorker("worker-2")
type ModuleError struct {
	baseError
	ModuleID string
	Worker   string
}

// NewModuleError creates a new ModuleError.
func NewModuleError(message string, cause error) *ModuleError {
	return &ModuleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithModuleID adds the module identifier to the error context.
func (e *ModuleError) WithModuleID(id string) *ModuleError {
	e.ModuleID = id
	return e
}

// WithWorker adds the build worker identifier to the error context.
func (e *ModuleError) WithWorker(worker string) *ModuleError {
	e.Worker = worker
	return e
}

// Error returns the formatted error message.
func (e *ModuleError) Error() string {
	var parts []string
	if e.ModuleID != "" {
		parts = append(parts, fmt.Sprintf("module=%s", e.ModuleID))
	}
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	return e.format("module error", parts)
}

// Is checks if this error matches the target.
func (e *ModuleError) Is(target error) bool {
	if _, ok := target.(*ModuleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DeployError represents a fatal failure of the deployment phase. Phase is
// either PhaseArtifactUpload or PhaseBuildInfoPublish, and the transport error
// is kept as the cause.
//
// Example:
//
//	err := errors.NewDeployError(errors.PhaseArtifactUpload, transportErr)
//	err = err.WithRepository("libs-release").WithPath("org/acme/app/1.0/app-1.0.jar")
//	errors.Is(err, errors.ErrUploadFailed) // true
type DeployError struct {
	baseError
	Phase      string
	Repository string
	Path       string
}

// NewDeployError creates a new DeployError for the given phase.
func NewDeployError(phase string, cause error) *DeployError {
	message := "deployment failed"
	switch phase {
	case PhaseArtifactUpload:
		message = ErrUploadFailed.Error()
	case PhaseBuildInfoPublish:
		message = ErrPublishFailed.Error()
	}
	return &DeployError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Phase: phase,
	}
}

// WithRepository adds the target repository to the error context.
func (e *DeployError) WithRepository(repo string) *DeployError {
	e.Repository = repo
	return e
}

// WithPath adds the repository-relative artifact path to the error context.
func (e *DeployError) WithPath(path string) *DeployError {
	e.Path = path
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *DeployError) WithRetryable(r bool) *DeployError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *DeployError) Error() string {
	var parts []string
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return e.format("deploy error", parts)
}

// Is checks if this error matches the target. The phase sentinels
// ErrUploadFailed and ErrPublishFailed match according to Phase.
func (e *DeployError) Is(target error) bool {
	if _, ok := target.(*DeployError); ok {
		return true
	}
	switch target {
	case ErrUploadFailed:
		return e.Phase == PhaseArtifactUpload
	case ErrPublishFailed:
		return e.Phase == PhaseBuildInfoPublish
	}
	return e.baseError.Is(target)
}

// ConfigError represents errors related to configuration loading.
//
// Example:
//
//	err := errors.NewConfigError("cannot resolve value", errors.ErrUnresolvedTemplate)
//	err = err.WithKey("build.name")
type ConfigError struct {
	baseError
	Key string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithKey adds the configuration key to the error context.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	return e.format("config error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
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
//	err := errors.NewNotFoundError("manifest", "session.yaml")
//	fmt.Println(err) // "manifest 'session.yaml' not found"
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

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("module has no group id")
//	err = err.WithField("group").WithValue("")
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

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("uploading app-1.0.jar", 30*time.Second)
//	fmt.Println(err) // "timeout error: uploading app-1.0.jar (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing RecorderError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var recErr RecorderError
	if As(err, &recErr) {
		return recErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var recErr RecorderError
	if As(err, &recErr) {
		return recErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RecorderError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var recErr RecorderError
	if As(err, &recErr) {
		return recErr.Severity()
	}

	return SeverityError
}

// DeployPhase returns the phase of the first DeployError in err's chain, or
// "" when err did not come from the deployment phase.
func DeployPhase(err error) string {
	var deployErr *DeployError
	if As(err, &deployErr) {
		return deployErr.Phase
	}
	return ""
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the RecorderError interface.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to read manifest")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to upload %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
