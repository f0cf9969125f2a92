package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeInsufficientStock: http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeForbidden:         http.StatusForbidden,
		CodeConflict:          http.StatusConflict,
		CodeDependency:        http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("status for %s: got %d want %d", code, got, want)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	if got := MetadataFor(Code("NOPE")).HTTPStatus; got != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "load variant")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if typed := As(fmt.Errorf("outer: %w", err)); typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected typed error through wrapping, got %v", typed)
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	t.Parallel()

	err := Newf(CodeInsufficientStock, "only %d left in stock", 3)
	if err.Message() != "only 3 left in stock" {
		t.Fatalf("unexpected message: %q", err.Message())
	}
}

func TestAsNilSafe(t *testing.T) {
	t.Parallel()

	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}
