// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotFound          = errors.New("not found")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrQuizNotPassed     = errors.New("quiz not passed")
	ErrPersistence       = errors.New("persistence failure")
	ErrArchivedState     = errors.New("archived state is immutable")
)

// InvalidInputError reports arguments that violate an operation's contract.
type InvalidInputError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is lets errors.Is match ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field string, value interface{}, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InvalidStateTransitionError is returned when a record is asked to move to a
// status that its current status does not allow.
type InvalidStateTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition [%s %s]: %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewInvalidStateTransitionError creates a new InvalidStateTransitionError.
func NewInvalidStateTransitionError(entity, id, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{
		Entity: entity,
		ID:     id,
		From:   from,
		To:     to,
	}
}

// DuplicateIdentityError is returned when a logical record already exists.
type DuplicateIdentityError struct {
	Entity     string
	Key        string
	ExistingID string
}

func (e *DuplicateIdentityError) Error() string {
	if e.ExistingID != "" {
		return fmt.Sprintf("duplicate %s [%s]: already recorded as %s", e.Entity, e.Key, e.ExistingID)
	}
	return fmt.Sprintf("duplicate %s [%s]", e.Entity, e.Key)
}

// Is lets errors.Is match ErrDuplicateIdentity.
func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

// NewDuplicateIdentityError creates a new DuplicateIdentityError.
func NewDuplicateIdentityError(entity, key, existingID string) *DuplicateIdentityError {
	return &DuplicateIdentityError{
		Entity:     entity,
		Key:        key,
		ExistingID: existingID,
	}
}

// QuizNotPassedError is returned when a lesson quiz score is below the pass mark.
type QuizNotPassedError struct {
	Lesson   int
	Score    float64
	Required float64
}

func (e *QuizNotPassedError) Error() string {
	return fmt.Sprintf("quiz not passed for lesson %d: score %.2f (required: %.2f)", e.Lesson, e.Score, e.Required)
}

// Is lets errors.Is match ErrQuizNotPassed.
func (e *QuizNotPassedError) Is(target error) bool {
	return target == ErrQuizNotPassed
}

// NewQuizNotPassedError creates a new QuizNotPassedError.
func NewQuizNotPassedError(lesson int, score, required float64) *QuizNotPassedError {
	return &QuizNotPassedError{
		Lesson:   lesson,
		Score:    score,
		Required: required,
	}
}

// PersistenceError wraps storage failures so they are never confused with
// validation outcomes.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s]: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError creates a new PersistenceError. A nil err yields nil.
func NewPersistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{
		Operation: operation,
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
