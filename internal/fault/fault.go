// File path: internal/fault/fault.go
package fault

import (
	"errors"
	"fmt"
)

// Code identifies a stable, caller-visible error category. Codes are part of
// the API contract and must not change between releases.
type Code string

const (
	CodeExtraction     Code = "extraction_failed"
	CodeEmbedding      Code = "embedding_unavailable"
	CodeIndex          Code = "index_violation"
	CodeLLMTimeout     Code = "llm_timeout"
	CodeLLMUnavailable Code = "llm_unavailable"
	CodeValidation     Code = "validation_failed"
	CodeInternal       Code = "internal_error"
)

// Error is the structured error surfaced at component boundaries. The wrapped
// cause is retained for logging but only Code and Message are caller-visible.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs a structured error with the provided code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Extraction(message string, err error) *Error {
	return Wrap(CodeExtraction, message, err)
}

func Embedding(message string, err error) *Error {
	return Wrap(CodeEmbedding, message, err)
}

func Index(message string) *Error {
	return New(CodeIndex, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func LLMTimeout(err error) *Error {
	return Wrap(CodeLLMTimeout, "llm call exceeded deadline", err)
}

func LLMUnavailable(err error) *Error {
	return Wrap(CodeLLMUnavailable, "llm endpoint unavailable", err)
}

// CodeOf extracts the stable code from an error chain. Unclassified errors
// report CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
