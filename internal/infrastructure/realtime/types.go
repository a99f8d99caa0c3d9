package realtime

import "encoding/json"

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// SubscriptionKind routes server events to interested clients.
type SubscriptionKind string

const (
	SubscriptionUser    SubscriptionKind = "user"
	SubscriptionClan    SubscriptionKind = "clan"
	SubscriptionContent SubscriptionKind = "content"
	SubscriptionVoting  SubscriptionKind = "voting"
	SubscriptionRoom    SubscriptionKind = "room"
)

// Subscription is a durable client-side declaration of interest. Identity is
// (Kind, ID); re-subscribing with new options replaces the old entry.
type Subscription struct {
	Kind    SubscriptionKind       `json:"kind"`
	ID      string                 `json:"id"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type subKey struct {
	kind SubscriptionKind
	id   string
}

// Message is the wire envelope for both directions.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Ack   bool        `json:"ack,omitempty"`
}

// inboundMessage keeps Data raw so handlers decide how to decode it.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Reserved inbound events from the server.
const (
	EventAuthenticated        = "authenticated"
	EventAuthenticationFailed = "authentication_failed"
	EventTokenRefreshRequired = "token_refresh_required"
	EventRateLimited          = "rate_limited"
	EventHeartbeatAck         = "heartbeat_ack"
)

// Reserved outbound events from the client.
const (
	EventAuthenticate = "authenticate"
	EventRefreshToken = "refresh_token"
	EventHeartbeat    = "heartbeat"
	EventSubscribe    = "subscribe"
	EventUnsubscribe  = "unsubscribe"
)

// Events emitted locally to registered handlers.
const (
	EventConnected          = "connected"
	EventDisconnected       = "disconnected"
	EventReconnectFailed    = "reconnect_failed"
	EventTokenRefreshNeeded = "token_refresh_needed"
)
