package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindClassifier, "classify", "voice command request failed",
				errors.New("connection refused")),
			contains: []string{"[classifier:classify]", "voice command request failed", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindCapability, "open", "speech recognition unavailable"),
			contains: []string{"[capability:open]", "speech recognition unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindStorage, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnerKind(t *testing.T) {
	inner := New(KindRecognition, "start", "microphone busy")
	outer := Wrap(KindDomain, "toggle", "toggle failed", fmt.Errorf("ctx: %w", inner))

	if outer.Kind != KindRecognition {
		t.Fatalf("expected inner kind to win, got %s", outer.Kind)
	}
	if Wrap(KindDomain, "noop", "nil", nil) != nil {
		t.Fatal("wrapping nil should return nil")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindSynthesis, "test", "message", errors.New("cause"))),
			kind:     KindSynthesis,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindTransport, "op", "m")); got != KindTransport {
		t.Fatalf("KindOf() = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %s", got)
	}
}
