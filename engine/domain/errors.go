package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuery        = errors.New("empty query text")
	ErrQueryTooLong      = errors.New("query text too long")
	ErrEmptyDocument     = errors.New("document text is empty")
	ErrMissingDocumentID = errors.New("document id is empty")
	ErrUnknownSourceType = errors.New("unknown source type")
	ErrRelevanceRange    = errors.New("clinical_relevance out of [0,1]")
	ErrExtraTooLarge     = errors.New("extension map exceeds key limit")
	ErrNoSources         = errors.New("no grounded sources retrieved")
)

// Stage names the pipeline stage an error originated in.
type Stage string

const (
	StageValidation Stage = "validation"
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageRanking    Stage = "ranking"
	StageAssembly   Stage = "assembly"
	StageGeneration Stage = "generation"
	StageFormatting Stage = "formatting"
)

// StageError wraps a pipeline failure with the stage it occurred in and, for
// generation failures, the original query so callers can retry or degrade.
type StageError struct {
	Stage Stage
	Query string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with a stage name.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage of err if it is a StageError, else "".
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
