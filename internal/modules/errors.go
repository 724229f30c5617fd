package modules

import (
	"errors"
	"fmt"
)

// ExecutionError is the single error kind a module run surfaces: network failures,
// selector failures, malformed scraped data and target validation all collapse here.
type ExecutionError struct {
	Module string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("module %s: execution failed: %v", e.Module, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Fail wraps err as an ExecutionError for module. Existing ExecutionErrors pass through.
func Fail(module string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Module: module, Err: err}
}

// Failf is Fail with a formatted cause.
func Failf(module, format string, a ...any) error {
	return &ExecutionError{Module: module, Err: fmt.Errorf(format, a...)}
}
