// Package errors provides structured error handling for the ticket service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Event errors
	CodeEventNotFound Code = "EVENT_NOT_FOUND"

	// Ticket errors
	CodeTicketNotFound        Code = "TICKET_NOT_FOUND"
	CodeTicketAlreadyAssigned Code = "TICKET_ALREADY_ASSIGNED"
	CodeTicketNotAssigned     Code = "TICKET_NOT_ASSIGNED"
	CodeTicketAlreadyFollowed Code = "TICKET_ALREADY_FOLLOWED"
	CodeTicketNotFollowed     Code = "TICKET_NOT_FOLLOWED"
	CodeTicketHasMessages     Code = "TICKET_HAS_MESSAGES"
	CodeFollowerRequired      Code = "FOLLOWER_REQUIRED"

	// Note errors
	CodeNoteNotFound Code = "NOTE_NOT_FOUND"

	// Push subscription errors
	CodeSubscriptionNotFound Code = "SUBSCRIPTION_NOT_FOUND"

	// User errors
	CodeUserNotFound Code = "USER_NOT_FOUND"

	// Validation errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Storage errors
	CodeStorageWrite Code = "STORAGE_WRITE_FAILED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeEventNotFound,
		CodeTicketNotFound,
		CodeNoteNotFound,
		CodeSubscriptionNotFound,
		CodeUserNotFound:
		return http.StatusNotFound

	case CodeTicketAlreadyAssigned,
		CodeTicketNotAssigned,
		CodeTicketAlreadyFollowed,
		CodeTicketNotFollowed,
		CodeTicketHasMessages,
		CodeFollowerRequired,
		CodeInvalidArgument:
		return http.StatusBadRequest

	case CodeStorageWrite:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// Transport maps domain codes to the coarse wire code strings used by the
// websocket error frames.
func (c Code) Transport() string {
	switch c.HTTPStatus() {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	default:
		return "INTERNAL"
	}
}
