package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// UploadError reports an artifact store write or read failure.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string { return stageMessage(e.Message, e.Err, "upload error") }
func (e *UploadError) Unwrap() error { return e.Err }

// SynthesisError reports a failed call to, or non-success answer from, a synthesis provider.
type SynthesisError struct {
	Message string
	Err     error
}

func (e *SynthesisError) Error() string { return stageMessage(e.Message, e.Err, "synthesis error") }
func (e *SynthesisError) Unwrap() error { return e.Err }

// EvaluationError reports a failed scoring call.
type EvaluationError struct {
	Message string
	Err     error
}

func (e *EvaluationError) Error() string { return stageMessage(e.Message, e.Err, "evaluation error") }
func (e *EvaluationError) Unwrap() error { return e.Err }

func stageMessage(msg string, err error, fallback string) string {
	switch {
	case msg != "":
		return msg
	case err != nil:
		return err.Error()
	default:
		return fallback
	}
}
