package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

// Payload is one outbound notification body.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
	Page  string `json:"page,omitempty"`
}

// Gateway is the outbound push transport. Send is fire-and-forget from the
// caller's perspective: errors are reported for logging only and must never
// reach the mutation that triggered the notification.
type Gateway interface {
	Send(ctx context.Context, recipients []int64, payload Payload) error
}

// NopGateway discards every notification. Used when no relay is configured.
type NopGateway struct{}

// Send implements Gateway.
func (NopGateway) Send(context.Context, []int64, Payload) error {
	return nil
}

// SubscriptionSource lists registered push endpoints for a set of users.
type SubscriptionSource interface {
	ListPushSubscriptions(ctx context.Context, userIDs []int64) ([]domain.PushSubscription, error)
}

// RelayGateway forwards notifications to an HTTP push relay, one request per
// registered endpoint. The relay owns the web-push protocol details; this
// service only hands it endpoints, key material, and the payload.
type RelayGateway struct {
	endpoint string
	client   *http.Client
	subs     SubscriptionSource
	log      zerolog.Logger
}

// NewRelayGateway builds a gateway posting to the given relay endpoint.
func NewRelayGateway(endpoint string, client *http.Client, subs SubscriptionSource, log zerolog.Logger) *RelayGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayGateway{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		subs:     subs,
		log:      log,
	}
}

type relayRequest struct {
	Endpoint       string  `json:"endpoint"`
	KeyP256DH      string  `json:"p256dh"`
	KeyAuth        string  `json:"auth"`
	Payload        Payload `json:"payload"`
	ExpirationTime *int64  `json:"expiration_time,omitempty"`
}

// Send posts the payload to the relay for every registered endpoint of every
// recipient. Failures on one endpoint do not stop the rest.
func (g *RelayGateway) Send(ctx context.Context, recipients []int64, payload Payload) error {
	if g.endpoint == "" || len(recipients) == 0 {
		return nil
	}
	subscriptions, err := g.subs.ListPushSubscriptions(ctx, recipients)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}

	var failed int
	for _, subscription := range subscriptions {
		if err := g.post(ctx, subscription, payload); err != nil {
			failed++
			g.log.Warn().
				Err(err).
				Int64("user_id", subscription.UserID).
				Msg("push relay delivery failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("push relay: %d of %d deliveries failed", failed, len(subscriptions))
	}
	return nil
}

func (g *RelayGateway) post(ctx context.Context, subscription domain.PushSubscription, payload Payload) error {
	request := relayRequest{
		Endpoint:  subscription.Endpoint,
		KeyP256DH: subscription.KeyP256DH,
		KeyAuth:   subscription.KeyAuth,
		Payload:   payload,
	}
	if subscription.ExpirationTime != nil {
		millis := subscription.ExpirationTime.UTC().UnixMilli()
		request.ExpirationTime = &millis
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to relay: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}
