package habitat

import (
	"errors"
	"fmt"
)

// ErrPropertyNotFound is returned by a PropertyGetter when the bean has no such property.
var ErrPropertyNotFound = errors.New("property not found")

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Type string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected for type: %s", e.Type)
}

// InvalidDescriptorError represents a descriptor rejected at registration.
type InvalidDescriptorError struct {
	Implementation string
	Reason         string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor for %s: %s", e.Implementation, e.Reason)
}

// ConfigurationError represents a misconfigured injection point.
type ConfigurationError struct {
	Point  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error at %s: %s", e.Point, e.Reason)
}

// MissingScopeContextError represents a scope kind with no registered context.
type MissingScopeContextError struct {
	Scope string
}

func (e *MissingScopeContextError) Error() string {
	return fmt.Sprintf("could not find the operation context for scope %s", e.Scope)
}

// BeanNotFoundError represents a configured injection whose owner has no backing bean.
type BeanNotFoundError struct {
	Point string
}

func (e *BeanNotFoundError) Error() string {
	return fmt.Sprintf("could not find a configuration bean for %s", e.Point)
}

// PropertyNotFoundError represents a backing bean lacking the requested property.
type PropertyNotFoundError struct {
	Key   string
	Point string
	Err   error
}

func (e *PropertyNotFoundError) Error() string {
	return fmt.Sprintf("property %q not found for %s: %v", e.Key, e.Point, e.Err)
}

func (e *PropertyNotFoundError) Unwrap() error {
	return e.Err
}

// UnsatisfiedDependencyError represents an injection point with no matching service.
type UnsatisfiedDependencyError struct {
	Point string
}

func (e *UnsatisfiedDependencyError) Error() string {
	return fmt.Sprintf("no service found for injection point %s", e.Point)
}

// CreationError represents a failure while creating or booting an instance.
type CreationError struct {
	Type string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("creation failed for type %s: %v", e.Type, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// ReleaseError represents a failure while releasing an instance.
type ReleaseError struct {
	Type string
	Err  error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release failed for type %s: %v", e.Type, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// OperationClosedError represents use of an operation after it was closed.
type OperationClosedError struct {
	ID OperationIdentifier
}

func (e *OperationClosedError) Error() string {
	return fmt.Sprintf("operation %s is closed", e.ID)
}

// OperationActiveError represents an execution that already has a different
// operation of the same scope kind current.
type OperationActiveError struct {
	Execution ExecutionID
	Current   OperationIdentifier
}

func (e *OperationActiveError) Error() string {
	return fmt.Sprintf("execution %s already has operation %s active", e.Execution, e.Current)
}

// NoActiveOperationError represents a scoped lookup with no current operation.
type NoActiveOperationError struct {
	Scope     string
	Execution ExecutionID
}

func (e *NoActiveOperationError) Error() string {
	return fmt.Sprintf("no operation of scope %s is active on execution %s", e.Scope, e.Execution)
}

// TypeMismatchError represents a type assertion failure.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
