package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrBufferClosed", ErrBufferClosed},
		{"ErrSinkClosed", ErrSinkClosed},
		{"ErrDLQDisabled", ErrDLQDisabled},
		{"ErrInvalidPublication", ErrInvalidPublication},
		{"ErrEmptyBatch", ErrEmptyBatch},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestBufferError(t *testing.T) {
	tests := []struct {
		name         string
		err          *BufferError
		wantCanceled bool
		wantClosed   bool
	}{
		{
			name:         "canceled",
			err:          &BufferError{Op: "acquire", Err: context.Canceled},
			wantCanceled: true,
		},
		{
			name:         "deadline",
			err:          &BufferError{Op: "acquire", Err: context.DeadlineExceeded},
			wantCanceled: true,
		},
		{
			name:       "closed",
			err:        &BufferError{Op: "acquire", Err: ErrBufferClosed},
			wantClosed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Canceled(); got != tt.wantCanceled {
				t.Errorf("Canceled() = %v, want %v", got, tt.wantCanceled)
			}
			if got := errors.Is(tt.err, ErrBufferClosed); got != tt.wantClosed {
				t.Errorf("errors.Is(ErrBufferClosed) = %v, want %v", got, tt.wantClosed)
			}
			if tt.err.Error() == "" {
				t.Error("BufferError should have an error message")
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		PublicationID: "pub-123",
		Field:         "topic",
		Reason:        "required field missing",
	}

	if err.Error() == "" {
		t.Error("ValidationError should have an error message")
	}
	if !errors.Is(err, ErrInvalidPublication) {
		t.Error("ValidationError should match ErrInvalidPublication")
	}
	if IsRetryable(err) {
		t.Error("ValidationError should not be retryable")
	}
}

func TestSinkError_IsRetryable(t *testing.T) {
	tests := []struct {
		operation string
		err       error
		want      bool
	}{
		{"write", errors.New("disk full"), true},
		{"upload", errors.New("timeout"), true},
		{"create", errors.New("denied"), true},
		{"send", errors.New("broker down"), true},
		{"encode", errors.New("bad schema"), false},
		{"close", errors.New("already closed"), false},
		{"close", fmt.Errorf("flush: %w", ErrConnectionLost), true},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			err := &SinkError{Sink: "file", Operation: tt.operation, Err: tt.err}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("SinkError should wrap base error")
			}
		})
	}
}

func TestDeliveryError(t *testing.T) {
	base := &SinkError{Sink: "kafka", Operation: "send", Err: ErrConnectionLost}
	err := &DeliveryError{Start: 10, End: 19, Attempts: 5, Err: base}

	if !errors.Is(err, ErrConnectionLost) {
		t.Error("DeliveryError should wrap the sink error chain")
	}
	if !IsRetryable(err) {
		t.Error("DeliveryError should inherit retryability from the wrapped error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"connection lost", ErrConnectionLost, true},
		{"wrapped connection lost", fmt.Errorf("dial: %w", ErrConnectionLost), true},
		{"processing wraps retryable", &ProcessingError{PublicationID: "p", Err: ErrConnectionLost}, true},
		{"processing wraps validation", &ProcessingError{PublicationID: "p", Err: &ValidationError{Field: "qos"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
