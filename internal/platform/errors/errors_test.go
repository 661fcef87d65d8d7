package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeTicketNotFound, "ticket missing")
	target := New(CodeTicketNotFound, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with same code to match")
	}
	if stderrors.Is(err, New(CodeEventNotFound, "ticket missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageWrite, "persist ticket", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	wrapped := fmt.Errorf("handler: %w", err)
	if GetCode(wrapped) != CodeStorageWrite {
		t.Fatalf("expected code through wrapping, got %s", GetCode(wrapped))
	}
}

func TestGetCodeUnknownForForeignError(t *testing.T) {
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected CodeUnknown, got %s", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeEventNotFound, http.StatusNotFound},
		{CodeTicketNotFound, http.StatusNotFound},
		{CodeNoteNotFound, http.StatusNotFound},
		{CodeUserNotFound, http.StatusNotFound},
		{CodeTicketAlreadyAssigned, http.StatusBadRequest},
		{CodeTicketNotAssigned, http.StatusBadRequest},
		{CodeTicketAlreadyFollowed, http.StatusBadRequest},
		{CodeTicketNotFollowed, http.StatusBadRequest},
		{CodeFollowerRequired, http.StatusBadRequest},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeStorageWrite, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestTransportCodeMapping(t *testing.T) {
	if got := CodeTicketNotFound.Transport(); got != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", got)
	}
	if got := CodeFollowerRequired.Transport(); got != "INVALID_REQUEST" {
		t.Fatalf("expected INVALID_REQUEST, got %s", got)
	}
	if got := CodeStorageWrite.Transport(); got != "INTERNAL" {
		t.Fatalf("expected INTERNAL, got %s", got)
	}
}
