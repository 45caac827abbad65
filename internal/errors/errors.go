// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoConvergence    = errors.New("no convergence")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// InvalidInputError reports a malformed pricing input. It is fatal to the
// single calculation and never retried.
type InvalidInputError struct {
	Field   string
	Value   float64
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s=%g: %s", e.Field, e.Value, e.Message)
}

// Is lets errors.Is match ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field string, value float64, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ConvergenceError reports that the implied volatility search could not
// bracket or converge on the observed price.
type ConvergenceError struct {
	Price      float64
	Low        float64
	High       float64
	Iterations int
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("iv did not converge for price %g (bracket %g..%g, %d iterations): %s",
		e.Price, e.Low, e.High, e.Iterations, e.Reason)
}

// Is lets errors.Is match ErrNoConvergence.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrNoConvergence
}

// NewConvergenceError creates a new ConvergenceError.
func NewConvergenceError(price, low, high float64, iterations int, reason string) *ConvergenceError {
	return &ConvergenceError{
		Price:      price,
		Low:        low,
		High:       high,
		Iterations: iterations,
		Reason:     reason,
	}
}

// InsufficientDataError reports too few or invalid observations for an
// estimator.
type InsufficientDataError struct {
	Need    int
	Got     int
	Message string
}

func (e *InsufficientDataError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("insufficient data: need %d, got %d: %s", e.Need, e.Got, e.Message)
	}
	return fmt.Sprintf("insufficient data: need %d, got %d", e.Need, e.Got)
}

// Is lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(need, got int, message string) *InsufficientDataError {
	return &InsufficientDataError{
		Need:    need,
		Got:     got,
		Message: message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// StoreError represents a persistence failure. Writes are idempotent upserts,
// so a StoreError is safe to retry.
type StoreError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrDatabaseError.
func (e *StoreError) Is(target error) bool {
	return target == ErrDatabaseError
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, key string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
