package errors

import (
	"fmt"
	"time"
)

// Error types for the matching engine
type ErrorType string

const (
	ErrorTypeCatalog ErrorType = "catalog"
	ErrorTypeRerank  ErrorType = "rerank"
	ErrorTypeStore   ErrorType = "store"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeInput   ErrorType = "input"
)

// CatalogError reports a structurally invalid catalog snapshot. It is the
// only error that aborts a resolve call.
type CatalogError struct {
	Type       ErrorType
	Code       string
	Row        int // position in the snapshot, 0-based
	Reason     string
	Underlying error
	Timestamp  time.Time
}

// NewCatalogError creates a new catalog error
func NewCatalogError(row int, code, reason string) *CatalogError {
	return &CatalogError{
		Type:      ErrorTypeCatalog,
		Code:      code,
		Row:       row,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("invalid catalog entry %d (code %q): %s", e.Row, e.Code, e.Reason)
	}
	return fmt.Sprintf("invalid catalog entry %d: %s", e.Row, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *CatalogError) Unwrap() error {
	return e.Underlying
}

// RerankErrorKind classifies a reranker failure.
type RerankErrorKind string

const (
	RerankUnavailable RerankErrorKind = "unavailable"
	RerankTimeout     RerankErrorKind = "timeout"
	RerankTransport   RerankErrorKind = "transport"
	RerankMalformed   RerankErrorKind = "malformed"
	RerankOutOfRange  RerankErrorKind = "out_of_range"
)

// RerankError describes why a reranker call produced no opinion. It is
// logged and never returned from a resolve call.
type RerankError struct {
	Type       ErrorType
	Kind       RerankErrorKind
	Underlying error
	Timestamp  time.Time
}

// NewRerankError creates a new rerank error
func NewRerankError(kind RerankErrorKind, err error) *RerankError {
	return &RerankError{
		Type:       ErrorTypeRerank,
		Kind:       kind,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *RerankError) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("rerank %s", e.Kind)
	}
	return fmt.Sprintf("rerank %s: %v", e.Kind, e.Underlying)
}

// Unwrap returns the underlying error
func (e *RerankError) Unwrap() error {
	return e.Underlying
}

// StoreError wraps a correction-store failure with the operation that failed.
type StoreError struct {
	Type       ErrorType
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewStoreError creates a new store error
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Type:       ErrorTypeStore,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("correction store %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// InputError reports a bad survey or catalog file at the loading boundary.
type InputError struct {
	Type       ErrorType
	Path       string
	Location   string // "rooms[1].items[3]", "row 14", ...
	Underlying error
	Timestamp  time.Time
}

// NewInputError creates a new input error
func NewInputError(path, location string, err error) *InputError {
	return &InputError{
		Type:       ErrorTypeInput,
		Path:       path,
		Location:   location,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *InputError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s (%s): %v", e.Path, e.Location, e.Underlying)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *InputError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected.
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
