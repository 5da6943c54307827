package domain

import "errors"

var (
	// ErrCatalogUnavailable is returned when the content source cannot be reached or parsed.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrEmptyQuestionSet is returned when a question set exists but holds no records.
	ErrEmptyQuestionSet = errors.New("question set is empty")
	// ErrNoValidQuestions is returned when every record in a set fails validation.
	ErrNoValidQuestions = errors.New("question set has no valid questions")
	// ErrInvalidChoice is returned for an out-of-range or wrong-phase selection.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrInvalidCount is returned for a non-numeric or non-positive question count.
	ErrInvalidCount = errors.New("invalid question count")
	// ErrNoDialog is returned when a selection step arrives without an active dialog.
	ErrNoDialog = errors.New("no active selection dialog")
	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrDispatchFailed indicates no question of a new session could be sent out.
	ErrDispatchFailed = errors.New("question dispatch failed")
)
