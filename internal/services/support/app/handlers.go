package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/pitsignal/internal/platform/audit"
	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/fieldops/pitsignal/internal/services/support/registry"
	"github.com/rs/zerolog"
)

const (
	eventTokenHeader = "X-Event-Token"
	userIDHeader     = "X-User-ID"

	maxRequestBodyBytes = 64 * 1024
)

// profileSource resolves user identity snapshots.
type profileSource interface {
	GetUserProfile(ctx context.Context, userID int64) (domain.Profile, error)
}

// pushStore persists browser push registrations.
type pushStore interface {
	PutPushSubscription(ctx context.Context, subscription domain.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error
}

type handlerDeps struct {
	tickets  *domain.Service
	notes    *domain.NoteService
	registry *registry.Registry
	profiles profileSource
	push     pushStore
	audit    *audit.Logger
	log      zerolog.Logger
}

type handlers struct {
	deps handlerDeps
}

func newHandler(deps handlerDeps) http.Handler {
	h := &handlers{deps: deps}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /tickets", h.listTickets)
	mux.HandleFunc("POST /tickets", h.createTicket)
	mux.HandleFunc("GET /tickets/{id}", h.getTicket)
	mux.HandleFunc("DELETE /tickets/{id}", h.deleteTicket)
	mux.HandleFunc("PATCH /tickets/{id}/status", h.updateTicketStatus)
	mux.HandleFunc("PATCH /tickets/{id}/assign", h.assignTicket)
	mux.HandleFunc("PATCH /tickets/{id}/subject", h.editTicketSubject)
	mux.HandleFunc("PATCH /tickets/{id}/body", h.editTicketBody)
	mux.HandleFunc("POST /tickets/{id}/follow", h.followTicket)
	mux.HandleFunc("POST /tickets/{id}/unfollow", h.unfollowTicket)
	mux.HandleFunc("GET /tickets/{id}/author", h.ticketAuthor)
	mux.HandleFunc("GET /tickets/{id}/assignee", h.ticketAssignee)

	mux.HandleFunc("GET /notes", h.listNotes)
	mux.HandleFunc("POST /notes", h.createNote)
	mux.HandleFunc("GET /notes/{id}", h.getNote)
	mux.HandleFunc("PATCH /notes/{id}", h.editNoteBody)
	mux.HandleFunc("DELETE /notes/{id}", h.deleteNote)

	mux.HandleFunc("GET /users/{id}", h.getProfile)
	mux.HandleFunc("POST /push/subscriptions", h.registerPush)
	mux.HandleFunc("DELETE /push/subscriptions", h.unregisterPush)

	mux.Handle("/ws", h.wsHandler())

	return mux
}

// resolveEvent maps the caller's access token to its live event context.
func (h *handlers) resolveEvent(r *http.Request) (*registry.EventContext, error) {
	return h.deps.registry.ResolveToken(r.Context(), r.Header.Get(eventTokenHeader))
}

func (h *handlers) callerID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "user id header is required")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "user id header must be a positive integer")
	}
	return userID, nil
}

type createTicketRequest struct {
	Team    int    `json:"team"`
	Subject string `json:"subject"`
	Body    string `json:"text"`
}

func (h *handlers) createTicket(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	authorID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	ticket, err := h.deps.tickets.CreateTicket(r.Context(), domain.CreateTicketInput{
		EventCode: event.Event.Code,
		Team:      req.Team,
		Subject:   req.Subject,
		Body:      req.Body,
		AuthorID:  authorID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.deps.audit.TicketCreated(ticket.EventCode, ticket.ID, ticket.Team, ticket.AuthorID)
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *handlers) listTickets(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	code := event.Event.Code
	query := r.URL.Query()

	var tickets []domain.Ticket
	switch {
	case query.Get("author_id") != "":
		authorID, parseErr := strconv.ParseInt(query.Get("author_id"), 10, 64)
		if parseErr != nil {
			h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "author_id must be an integer"))
			return
		}
		tickets, err = h.deps.tickets.ListTicketsByAuthor(r.Context(), code, authorID)
	case query.Get("team") != "":
		team, parseErr := strconv.Atoi(query.Get("team"))
		if parseErr != nil {
			h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "team must be an integer"))
			return
		}
		tickets, err = h.deps.tickets.ListTicketsByTeam(r.Context(), code, team)
	case query.Get("assignee_id") != "":
		assigneeID, parseErr := strconv.ParseInt(query.Get("assignee_id"), 10, 64)
		if parseErr != nil {
			h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "assignee_id must be an integer"))
			return
		}
		tickets, err = h.deps.tickets.ListTicketsByAssignee(r.Context(), code, assigneeID)
	case query.Get("status") == "open":
		tickets, err = h.deps.tickets.ListOpenTickets(r.Context(), code)
	case query.Get("status") == "closed":
		tickets, err = h.deps.tickets.ListClosedTickets(r.Context(), code)
	case query.Has("unassigned"):
		tickets, err = h.deps.tickets.ListUnassignedTickets(r.Context(), code)
	default:
		tickets, err = h.deps.tickets.ListTickets(r.Context(), code)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handlers) getTicket(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ticket, err := h.deps.tickets.GetTicket(r.Context(), r.PathValue("id"), event.Event.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type updateStatusRequest struct {
	NewStatus bool `json:"new_status"`
}

func (h *handlers) updateTicketStatus(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	actorID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	ticket, err := h.deps.tickets.UpdateStatus(r.Context(), domain.UpdateStatusInput{
		TicketID:  r.PathValue("id"),
		EventCode: event.Event.Code,
		Open:      req.NewStatus,
		ActorID:   actorID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.deps.audit.TicketStatusChanged(ticket.EventCode, ticket.ID, ticket.Open, actorID)
	writeJSON(w, http.StatusOK, ticket)
}

type assignRequest struct {
	UserID int64 `json:"user_id"`
	Assign bool  `json:"assign"`
}

func (h *handlers) assignTicket(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	actorID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	ticket, err := h.deps.tickets.Assign(r.Context(), domain.AssignInput{
		TicketID:  r.PathValue("id"),
		EventCode: event.Event.Code,
		UserID:    req.UserID,
		Assign:    req.Assign,
		ActorID:   actorID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.deps.audit.TicketAssigned(ticket.EventCode, ticket.ID, ticket.AssignedToID, actorID)
	writeJSON(w, http.StatusOK, ticket)
}

type editTextRequest struct {
	NewText string `json:"new_text"`
}

func (h *handlers) editTicketSubject(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req editTextRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	ticket, err := h.deps.tickets.EditSubject(r.Context(), r.PathValue("id"), event.Event.Code, req.NewText)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handlers) editTicketBody(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req editTextRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	ticket, err := h.deps.tickets.EditBody(r.Context(), r.PathValue("id"), event.Event.Code, req.NewText)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handlers) followTicket(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ticket, err := h.deps.tickets.Follow(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handlers) unfollowTicket(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ticket, err := h.deps.tickets.Unfollow(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *handlers) deleteTicket(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	actorID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ticketID := r.PathValue("id")
	if err := h.deps.tickets.DeleteTicket(r.Context(), ticketID); err != nil {
		h.writeError(w, err)
		return
	}
	h.deps.audit.TicketDeleted(ticketID, actorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) ticketAuthor(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	profile, err := h.deps.tickets.AuthorProfile(r.Context(), r.PathValue("id"), event.Event.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) ticketAssignee(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	profile, err := h.deps.tickets.AssigneeProfile(r.Context(), r.PathValue("id"), event.Event.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type createNoteRequest struct {
	Team int    `json:"team"`
	Body string `json:"text"`
}

func (h *handlers) createNote(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	authorID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	note, err := h.deps.notes.CreateNote(r.Context(), domain.CreateNoteInput{
		EventCode: event.Event.Code,
		Team:      req.Team,
		Body:      req.Body,
		AuthorID:  authorID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	code := event.Event.Code
	query := r.URL.Query()

	var notes []domain.Note
	switch {
	case query.Get("author_id") != "":
		authorID, parseErr := strconv.ParseInt(query.Get("author_id"), 10, 64)
		if parseErr != nil {
			h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "author_id must be an integer"))
			return
		}
		notes, err = h.deps.notes.ListNotesByAuthor(r.Context(), code, authorID)
	case query.Get("team") != "":
		team, parseErr := strconv.Atoi(query.Get("team"))
		if parseErr != nil {
			h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "team must be an integer"))
			return
		}
		notes, err = h.deps.notes.ListNotesByTeam(r.Context(), code, team)
	default:
		notes, err = h.deps.notes.ListNotes(r.Context(), code)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *handlers) getNote(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	note, err := h.deps.notes.GetNote(r.Context(), r.PathValue("id"), event.Event.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *handlers) editNoteBody(w http.ResponseWriter, r *http.Request) {
	event, err := h.resolveEvent(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req editTextRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	note, err := h.deps.notes.EditBody(r.Context(), r.PathValue("id"), event.Event.Code, req.NewText)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *handlers) deleteNote(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.deps.notes.DeleteNote(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "user id must be an integer"))
		return
	}
	profile, err := h.deps.profiles.GetUserProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type pushSubscriptionRequest struct {
	Endpoint       string `json:"endpoint"`
	KeyP256DH      string `json:"p256dh"`
	KeyAuth        string `json:"auth"`
	ExpirationTime *int64 `json:"expiration_time,omitempty"`
}

func (h *handlers) registerPush(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req pushSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "push endpoint is required"))
		return
	}

	subscription := domain.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		KeyP256DH: req.KeyP256DH,
		KeyAuth:   req.KeyAuth,
	}
	if req.ExpirationTime != nil {
		expiration := time.UnixMilli(*req.ExpirationTime).UTC()
		subscription.ExpirationTime = &expiration
	}
	if err := h.deps.push.PutPushSubscription(r.Context(), subscription); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unregisterPush(w http.ResponseWriter, r *http.Request) {
	if _, err := h.resolveEvent(r); err != nil {
		h.writeError(w, err)
		return
	}
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	endpoint := strings.TrimSpace(r.URL.Query().Get("endpoint"))
	if endpoint == "" {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "endpoint query parameter is required"))
		return
	}
	if err := h.deps.push.DeletePushSubscription(r.Context(), userID, endpoint); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.deps.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{
		Error: errorBody{
			Code:    code.Transport(),
			Message: err.Error(),
		},
	})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
