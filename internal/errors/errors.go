// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrBufferClosed       = errors.New("buffer is closed")
	ErrSinkClosed         = errors.New("sink is closed")
	ErrDLQDisabled        = errors.New("dead letter queue is disabled")
	ErrInvalidPublication = errors.New("invalid publication")
	ErrEmptyBatch         = errors.New("empty batch")
	ErrConnectionLost     = errors.New("connection lost")
)

// BufferError is returned by buffer operations that could not complete.
type BufferError struct {
	Op  string
	Err error
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("buffer error: op=%s: %v", e.Op, e.Err)
}

func (e *BufferError) Unwrap() error {
	return e.Err
}

// Canceled reports whether the operation ended because its context ended.
func (e *BufferError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

// ValidationError represents a publication validation failure.
type ValidationError struct {
	PublicationID string
	Field         string
	Reason        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: publication_id=%s field=%s: %s",
		e.PublicationID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPublication
}

// SinkError represents a failure inside a sink or storage backend.
type SinkError struct {
	Sink      string
	Operation string
	Path      string
	Err       error
}

func (e *SinkError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sink error: sink=%s operation=%s: %v", e.Sink, e.Operation, e.Err)
	}
	return fmt.Sprintf("sink error: sink=%s operation=%s path=%s: %v",
		e.Sink, e.Operation, e.Path, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a SinkError is retryable based on the operation type.
func (e *SinkError) IsRetryable() bool {
	switch e.Operation {
	case "write", "upload", "create", "send", "rename":
		return true
	}
	return errors.Is(e.Err, ErrConnectionLost)
}

// DeliveryError reports a batch that could not be delivered after all attempts.
type DeliveryError struct {
	Start    uint64
	End      uint64
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: batch=[%d..%d] attempts=%d: %v",
		e.Start, e.End, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ProcessingError represents a failure while processing one publication.
type ProcessingError struct {
	PublicationID string
	Topic         string
	Err           error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: publication_id=%s topic=%s: %v",
		e.PublicationID, e.Topic, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}
