package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInputInvalid            = errors.New("input invalid")
	ErrConfigurationMissing    = errors.New("configuration missing")
	ErrConceptGenerationFailed = errors.New("concept generation failed")
	ErrNoViableConcepts        = errors.New("no viable concepts")
	ErrSceneGenerationFailed   = errors.New("scene generation failed")
	ErrContentFiltered         = errors.New("content filtered")
	ErrTimeout                 = errors.New("operation timed out")
	ErrRateLimited             = errors.New("rate limited")
	ErrInsufficientCredits     = errors.New("insufficient credits")
)

// InputError reports the first brief field that failed validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInputInvalid }

// SceneError marks a failure attributed to one scene of a video job.
type SceneError struct {
	Index int
	Err   error
}

func (e *SceneError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scene %d: %s", e.Index+1, ErrSceneGenerationFailed)
	}
	return fmt.Sprintf("scene %d: %s: %v", e.Index+1, ErrSceneGenerationFailed, e.Err)
}

func (e *SceneError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSceneGenerationFailed}
	}
	return []error{ErrSceneGenerationFailed, e.Err}
}

// FilteredError is returned when the video backend's safety filter rejected a scene.
type FilteredError struct {
	Index  int
	Reason string
}

func (e *FilteredError) Error() string {
	return fmt.Sprintf("scene %d: %s: %s", e.Index+1, ErrContentFiltered, e.Reason)
}

func (e *FilteredError) Unwrap() error { return ErrContentFiltered }

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
