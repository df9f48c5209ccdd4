package interview

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsErrorPassesThroughDomainErrors(t *testing.T) {
	orig := NewInvalidRequestErrorWithParam("code is required", "code")

	got := AsError(fmt.Errorf("handler: %w", orig))
	if got != orig {
		t.Fatalf("AsError did not unwrap the domain error")
	}
}

func TestAsErrorWrapsForeignErrors(t *testing.T) {
	got := AsError(errors.New("connection reset"))
	if got.Type != ErrAPI {
		t.Fatalf("Type = %q, want %q", got.Type, ErrAPI)
	}
	if got.Message != "connection reset" {
		t.Fatalf("Message = %q", got.Message)
	}
	if AsError(nil) != nil {
		t.Fatalf("AsError(nil) != nil")
	}
}

func TestIsType(t *testing.T) {
	err := NewSessionNotFoundError("tok")
	if !IsType(err, ErrSessionNotFound) {
		t.Fatalf("IsType missed session_not_found_error")
	}
	if IsType(err, ErrInvalidRequest) {
		t.Fatalf("IsType matched wrong type")
	}
	if IsType(errors.New("plain"), ErrAPI) {
		t.Fatalf("IsType matched non-domain error")
	}
}
