package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodeKind(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorKind
	}{
		{ErrInvalidInput, KindValidation},
		{ErrUnknownModel, KindValidation},
		{ErrFileNotFound, KindIO},
		{ErrStore, KindIO},
		{ErrAPICall, KindRemote},
		{ErrNetwork, KindRemote},
		{ErrNoSession, KindSession},
		{ErrInternal, KindInternal},
	}
	for _, tt := range tests {
		if got := tt.code.Kind(); got != tt.want {
			t.Errorf("%s.Kind() = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := NewAppError(ErrAPICall, "provider failed", errors.New("502"))
	wrapped := fmt.Errorf("translate block: %w", base)

	if got := KindOf(wrapped); got != KindRemote {
		t.Fatalf("KindOf(wrapped) = %s, want remote", got)
	}
	if !IsRemote(wrapped) {
		t.Error("IsRemote should be true")
	}
	if IsValidation(wrapped) {
		t.Error("IsValidation should be false")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors should be internal")
	}
	if KindOf(nil) != "" {
		t.Error("nil error has no kind")
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := NewAppErrorWithDetails(ErrInvalidInput, "bad page", "page 9 of 3", nil)
	if err.Error() != "bad page: page 9 of 3" {
		t.Errorf("unexpected message %q", err.Error())
	}

	cause := errors.New("disk full")
	err = NewAppError(ErrStore, "save failed", cause)
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if err.Error() != "save failed: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
