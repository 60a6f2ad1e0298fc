package domain

import "fmt"

// Error types for consistent error handling across the pipeline.
//
// Row-level parse failures are NOT errors in this sense: they are collected
// as strings on the ParseOutcome and processing continues. The types below
// cover document-level rejections and collaborator failures.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrStatementRejected indicates the whole document was rejected before
// any transactions were produced: no data rows, unidentifiable required
// columns, or malformed tabular structure.
type ErrStatementRejected struct {
	Reason string
}

func (e *ErrStatementRejected) Error() string {
	return fmt.Sprintf("statement rejected: %s", e.Reason)
}

// ErrDuplicateStatement indicates the same file content was already
// uploaded by this user.
type ErrDuplicateStatement struct {
	Hash string
}

func (e *ErrDuplicateStatement) Error() string {
	return fmt.Sprintf("statement already uploaded (hash %s)", e.Hash)
}

// ErrExternalService indicates a failure in an external collaborator,
// typically the persistence backend.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
