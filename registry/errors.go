package registry

import (
	"errors"
	"fmt"
)

// DuplicateResourceError is returned when a resource name is registered
// a second time, whether the first registration is still pending or
// already materialized.
type DuplicateResourceError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("resource %q is already registered", e.Name)
}

// NotInitializedError is returned when a table is accessed before the
// batched initialize has materialized it.
type NotInitializedError struct {
	Name string
}

// Error implements the error interface.
func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("table %q is not initialized: call Initialize after registering resources", e.Name)
}

// IsDuplicateResource reports whether the error is a DuplicateResourceError.
func IsDuplicateResource(err error) bool {
	var target *DuplicateResourceError
	return errors.As(err, &target)
}

// IsNotInitialized reports whether the error is a NotInitializedError.
func IsNotInitialized(err error) bool {
	var target *NotInitializedError
	return errors.As(err, &target)
}
