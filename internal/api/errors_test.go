package api_test

import (
	"errors"
	"strings"
	"testing"

	"aslreport/internal/api"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := api.Wrap(api.ErrValidation, "ingest", "group files", "bad upload", base)
	if !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingest", "group files", "bad upload", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaults(t *testing.T) {
	err := api.Wrap(nil, " ", "", "", nil)
	if !errors.Is(err, api.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "service failure") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{api.Wrap(api.ErrValidation, "ingest", "", "", nil), "validation"},
		{api.Wrap(api.ErrNotFound, "runs", "get", "", nil), "not_found"},
		{api.Wrap(api.ErrConfiguration, "rules", "load", "", nil), "configuration"},
		{errors.New("disk full"), "internal"},
		{nil, "internal"},
	}
	for _, tt := range tests {
		if got := api.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
