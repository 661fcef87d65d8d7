package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/services/support/bus"
	"github.com/fieldops/pitsignal/internal/services/support/registry"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	scopeBackground = "background"
	scopeForeground = "foreground"
	scopeTicket     = "ticket"
	scopeTeam       = "team"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type subscribePayload struct {
	Scope    string `json:"scope"`
	TicketID string `json:"ticket_id,omitempty"`
	Team     int    `json:"team,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
}

type subscribedPayload struct {
	SubscriptionID string `json:"subscription_id"`
	Scope          string `json:"scope"`
}

type unsubscribePayload struct {
	SubscriptionID string `json:"subscription_id"`
}

type unsubscribedPayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// wsPeer serializes frame writes from the pump goroutines and the read loop.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// wsSession tracks one connection's live subscriptions. Every subscription
// handle is retained so teardown can detach each one exactly once.
type wsSession struct {
	event  *registry.EventContext
	userID int64
	peer   *wsPeer

	mu      sync.Mutex
	nextSub int
	subs    map[string]*bus.Subscription
	pumps   sync.WaitGroup
}

func newWSSession(event *registry.EventContext, userID int64, peer *wsPeer) *wsSession {
	return &wsSession{
		event:  event,
		userID: userID,
		peer:   peer,
		subs:   make(map[string]*bus.Subscription),
	}
}

func (s *wsSession) addSubscription(sub *bus.Subscription) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	subscriptionID := fmt.Sprintf("sub_%d", s.nextSub)
	s.subs[subscriptionID] = sub
	return subscriptionID
}

func (s *wsSession) takeSubscription(subscriptionID string) *bus.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return nil
	}
	delete(s.subs, subscriptionID)
	return sub
}

func (s *wsSession) drainSubscriptions() []*bus.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]*bus.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[string]*bus.Subscription)
	return subs
}

type wsEventContextKey struct{}

type wsUserIDContextKey struct{}

// wsHandler upgrades /ws requests after resolving the caller's event token.
func (h *handlers) wsHandler() http.Handler {
	socket := websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			token = strings.TrimSpace(r.Header.Get(eventTokenHeader))
		}
		event, err := h.deps.registry.ResolveToken(r.Context(), token)
		if err != nil {
			h.deps.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket event resolution failed")
			http.Error(w, "event access required", apperrors.HTTPStatus(err))
			return
		}

		var userID int64
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			parsed, parseErr := strconv.ParseInt(raw, 10, 64)
			if parseErr != nil || parsed <= 0 {
				http.Error(w, "user_id must be a positive integer", http.StatusBadRequest)
				return
			}
			userID = parsed
		}

		ctx := context.WithValue(r.Context(), wsEventContextKey{}, event)
		ctx = context.WithValue(ctx, wsUserIDContextKey{}, userID)
		socket.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handlers) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	request := conn.Request()
	if request == nil {
		return
	}
	event, ok := request.Context().Value(wsEventContextKey{}).(*registry.EventContext)
	if !ok || event == nil {
		return
	}
	userID, _ := request.Context().Value(wsUserIDContextKey{}).(int64)

	decoder := json.NewDecoder(conn)
	session := newWSSession(event, userID, newWSPeer(json.NewEncoder(conn)))
	defer func() {
		for _, sub := range session.drainSubscriptions() {
			session.event.Bus.Unsubscribe(sub)
		}
		session.pumps.Wait()
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_REQUEST", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "tickets.subscribe":
			h.handleSubscribeFrame(request.Context(), session, frame)
		case "tickets.unsubscribe":
			handleUnsubscribeFrame(session, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "unsupported frame type")
		}
	}
}

func (h *handlers) handleSubscribeFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "invalid subscribe payload")
		return
	}

	var pred bus.Predicate
	switch payload.Scope {
	case scopeBackground:
		pred = bus.Background()
	case scopeForeground:
		pred = bus.Foreground()
	case scopeTicket:
		ticketID := strings.TrimSpace(payload.TicketID)
		if ticketID == "" {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "ticket_id is required")
			return
		}
		userID := payload.UserID
		if userID == 0 {
			userID = session.userID
		}
		if userID == 0 {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "user_id is required")
			return
		}
		ticket, err := h.deps.tickets.GetTicket(ctx, ticketID, session.event.Event.Code)
		if err != nil {
			_ = writeWSError(session.peer, frame.RequestID, apperrors.GetCode(err).Transport(), err.Error())
			return
		}
		// Only existing followers may watch a single ticket.
		if !ticket.IsFollower(userID) {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "Already following Ticket")
			return
		}
		pred = bus.TicketScoped(ticketID)
	case scopeTeam:
		if payload.Team <= 0 {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "team must be positive")
			return
		}
		pred = bus.TeamScoped(payload.Team)
	default:
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "unknown subscription scope")
		return
	}

	sub := session.event.Bus.Subscribe(pred)
	subscriptionID := session.addSubscription(sub)

	session.pumps.Add(1)
	go func() {
		defer session.pumps.Done()
		pumpTicketEvents(session.peer, subscriptionID, sub)
	}()

	_ = session.peer.writeFrame(wsFrame{
		Type:      "tickets.subscribed",
		RequestID: frame.RequestID,
		Payload: mustJSON(subscribedPayload{
			SubscriptionID: subscriptionID,
			Scope:          payload.Scope,
		}),
	})
}

func handleUnsubscribeFrame(session *wsSession, frame wsFrame) {
	var payload unsubscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "invalid unsubscribe payload")
		return
	}
	subscriptionID := strings.TrimSpace(payload.SubscriptionID)
	if subscriptionID == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_REQUEST", "subscription_id is required")
		return
	}

	if sub := session.takeSubscription(subscriptionID); sub != nil {
		session.event.Bus.Unsubscribe(sub)
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "tickets.unsubscribed",
		RequestID: frame.RequestID,
		Payload:   mustJSON(unsubscribedPayload{SubscriptionID: subscriptionID}),
	})
}

// pumpTicketEvents forwards bus events to the peer until the subscription's
// channel is closed by Unsubscribe or connection teardown.
func pumpTicketEvents(peer *wsPeer, subscriptionID string, sub *bus.Subscription) {
	for ev := range sub.Events() {
		_ = peer.writeFrame(wsFrame{
			Type:      "tickets.update",
			RequestID: subscriptionID,
			Payload:   mustJSON(ev),
		})
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "tickets.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:    code,
				Message: message,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
