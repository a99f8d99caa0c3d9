package realtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/goroutine"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Client maintains a single authenticated websocket session against the
// realtime gateway. It reconnects on failure, replays subscriptions, and
// flushes messages queued while offline.
type Client struct {
	cfg    *sharedConfig.RealtimeConfig
	log    logger.Interface
	dialer websocket.Dialer

	dispatcher *dispatcher
	queue      *eventQueue

	mu            sync.Mutex
	cond          *sync.Cond
	state         State
	authenticated bool
	networkOnline bool
	explicitClose bool
	reconnecting  bool
	token         string
	challenge     string
	sess          *session
	subs          map[subKey]Subscription
	authWait      chan error
	refreshTimer  *time.Timer
}

// NewClient builds a client from config. It does not connect.
func NewClient(cfg *sharedConfig.RealtimeConfig, log logger.Interface) *Client {
	c := &Client{
		cfg: cfg,
		log: log.With("component", "realtime"),
		dialer: websocket.Dialer{
			HandshakeTimeout: time.Duration(cfg.HandshakeTimeout) * time.Second,
		},
		queue:         newEventQueue(cfg.QueueCapacity),
		state:         StateDisconnected,
		networkOnline: true,
		subs:          make(map[subKey]Subscription),
	}
	c.cond = sync.NewCond(&c.mu)
	c.dispatcher = newDispatcher(c.log)
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Authenticated reports whether the current session completed the
// authenticate handshake.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// QueuedMessages returns the number of messages waiting for a connection.
func (c *Client) QueuedMessages() int {
	return c.queue.len()
}

// On registers a handler for an event. The returned ref removes it via Off.
func (c *Client) On(event string, h Handler) HandlerRef {
	return c.dispatcher.on(event, h)
}

// Off removes a previously registered handler.
func (c *Client) Off(ref HandlerRef) {
	c.dispatcher.off(ref)
}

// Connect dials the gateway and, when token is non-empty, authenticates.
// A dial failure here does not start the reconnect loop; reconnection only
// guards established sessions.
func (c *Client) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.explicitClose = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return err
	}

	if token != "" {
		if err := c.Authenticate(ctx, token, ""); err != nil {
			return err
		}
	}
	return nil
}

// dial establishes the websocket and starts the pumps. Callers own state
// transitions around it.
func (c *Client) dial(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("status=%d: %w", resp.StatusCode, err)
		}
		return errors.NewTransportError("dial", err)
	}

	s := newSession(conn)
	c.mu.Lock()
	c.sess = s
	c.state = StateConnected
	c.mu.Unlock()

	goroutine.SafeGo(c.log, "realtime-read-pump", func() { c.readPump(s) })
	goroutine.SafeGo(c.log, "realtime-write-pump", func() { c.writePump(s) })

	c.dispatcher.dispatch(EventConnected, nil)
	return nil
}

// Authenticate performs the authenticate handshake on the live session. On a
// retryable failure it retries once when configured to.
func (c *Client) Authenticate(ctx context.Context, token, challenge string) error {
	err := c.authenticateOnce(ctx, token, challenge)
	if err == nil {
		return nil
	}
	var authErr *errors.AuthError
	if c.cfg.AuthRetry && stderrors.As(err, &authErr) && authErr.Retryable {
		err = c.authenticateOnce(ctx, token, challenge)
	}
	return err
}

func (c *Client) authenticateOnce(ctx context.Context, token, challenge string) error {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return errors.NewTransportError("authenticate", fmt.Errorf("not connected"))
	}
	wait := make(chan error, 1)
	c.authWait = wait
	c.token = token
	c.challenge = challenge
	c.mu.Unlock()

	payload := map[string]string{"token": token}
	if challenge != "" {
		payload["challenge"] = challenge
	}
	if !s.enqueue(&Message{Event: EventAuthenticate, Data: payload}) {
		return errors.NewTransportError("authenticate", fmt.Errorf("session closed"))
	}

	timeout := time.Duration(c.cfg.HandshakeTimeout) * time.Second
	select {
	case err := <-wait:
		if err != nil {
			return err
		}
	case <-time.After(timeout):
		return errors.NewTimeoutError("authenticate", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.authenticated = true
	c.scheduleTokenRefreshLocked(token)
	c.mu.Unlock()
	return nil
}

// RefreshToken installs a new token, tells the server, and reschedules the
// proactive refresh timer.
func (c *Client) RefreshToken(token string) {
	c.mu.Lock()
	c.token = token
	c.scheduleTokenRefreshLocked(token)
	s := c.sess
	c.mu.Unlock()

	if s != nil {
		s.enqueue(&Message{Event: EventRefreshToken, Data: map[string]string{"token": token}})
	}
}

// scheduleTokenRefreshLocked arms a timer to fire shortly before the token
// expires. Tokens without an exp claim get no timer.
func (c *Client) scheduleTokenRefreshLocked(token string) {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	lead := time.Duration(c.cfg.TokenRefreshLead) * time.Second
	d := time.Until(exp.Time) - lead
	if d < 0 {
		d = 0
	}
	c.refreshTimer = time.AfterFunc(d, func() {
		c.dispatcher.dispatch(EventTokenRefreshNeeded, nil)
	})
}

// Subscribe records interest in (kind, id) and dispatches the request when
// connected. The subscription survives reconnects either way; the return
// value only reports whether it reached the wire now.
func (c *Client) Subscribe(kind SubscriptionKind, id string, options map[string]interface{}) bool {
	sub := Subscription{Kind: kind, ID: id, Options: options}
	c.mu.Lock()
	c.subs[subKey{kind: kind, id: id}] = sub
	s := c.sess
	c.mu.Unlock()

	if s == nil {
		return false
	}
	return s.enqueue(&Message{Event: EventSubscribe, Data: sub})
}

// Unsubscribe removes the subscription and informs the server when connected.
func (c *Client) Unsubscribe(kind SubscriptionKind, id string) bool {
	key := subKey{kind: kind, id: id}
	c.mu.Lock()
	_, known := c.subs[key]
	delete(c.subs, key)
	s := c.sess
	c.mu.Unlock()

	if !known || s == nil {
		return false
	}
	return s.enqueue(&Message{Event: EventUnsubscribe, Data: Subscription{Kind: kind, ID: id}})
}

// Subscriptions returns a snapshot of the durable subscription set.
func (c *Client) Subscriptions() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		out = append(out, sub)
	}
	return out
}

// Send dispatches an event to the server. When disconnected the message is
// queued and replayed after the next successful reconnect; the return value
// reports immediate delivery to the write pump.
func (c *Client) Send(event string, data interface{}, ack bool) bool {
	msg := &Message{Event: event, Data: data, Ack: ack}
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()

	if s != nil && s.enqueue(msg) {
		return true
	}
	c.queue.push(msg)
	return false
}

// Disconnect closes the session and suppresses reconnection until the next
// Connect call.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.explicitClose = true
	c.authenticated = false
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	s := c.sess
	c.mu.Unlock()
	c.cond.Broadcast()

	if s != nil {
		s.close()
	}
}

// SetNetworkOnline feeds connectivity hints into the reconnect loop. Going
// offline pauses backoff waits without tearing down a live session; coming
// back online releases any paused reconnect attempt immediately.
func (c *Client) SetNetworkOnline(online bool) {
	c.mu.Lock()
	c.networkOnline = online
	c.mu.Unlock()
	if online {
		c.cond.Broadcast()
	}
}

func (c *Client) readPump(s *session) {
	defer c.sessionEnded(s)

	pongWait := time.Duration(c.cfg.HeartbeatInterval+c.cfg.HeartbeatTimeout) * time.Second
	s.conn.SetReadLimit(sessionReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warnw("dropping malformed message", "error", err)
			continue
		}
		c.route(&msg)
	}
}

func (c *Client) route(msg *inboundMessage) {
	switch msg.Event {
	case EventHeartbeatAck:
		return
	case EventAuthenticated:
		c.resolveAuth(nil)
	case EventAuthenticationFailed:
		reason := "authentication rejected"
		var body struct {
			Reason    string `json:"reason"`
			Retryable bool   `json:"retryable"`
		}
		if err := json.Unmarshal(msg.Data, &body); err == nil && body.Reason != "" {
			reason = body.Reason
		}
		c.resolveAuth(errors.NewAuthError(reason, body.Retryable))
	case EventTokenRefreshRequired:
		c.dispatcher.dispatch(EventTokenRefreshNeeded, msg.Data)
		return
	}
	c.dispatcher.dispatch(msg.Event, msg.Data)
}

func (c *Client) resolveAuth(err error) {
	c.mu.Lock()
	wait := c.authWait
	c.authWait = nil
	c.mu.Unlock()
	if wait != nil {
		wait <- err
	}
}

func (c *Client) writePump(s *session) {
	interval := time.Duration(c.cfg.HeartbeatInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				c.log.Warnw("write failed", "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteJSON(&Message{Event: EventHeartbeat}); err != nil {
				return
			}
		}
	}
}

// sessionEnded runs once per session, from the read pump, after the
// connection drops or is closed.
func (c *Client) sessionEnded(s *session) {
	s.close()

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.authenticated = false
	explicit := c.explicitClose
	spawn := false
	if explicit {
		c.state = StateDisconnected
	} else {
		c.state = StateReconnecting
		if !c.reconnecting {
			c.reconnecting = true
			spawn = true
		}
	}
	c.mu.Unlock()

	c.resolveAuth(errors.NewTransportError("authenticate", fmt.Errorf("connection lost")))
	c.dispatcher.dispatch(EventDisconnected, nil)

	if spawn {
		goroutine.SafeGo(c.log, "realtime-reconnect", c.reconnectLoop)
	}
}

// reconnectLoop retries the dial with jittered exponential backoff until it
// succeeds or the attempt ceiling is reached.
func (c *Client) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = time.Duration(c.cfg.ReconnectMaxInterval) * time.Second

	for attempt := 1; attempt <= c.cfg.ReconnectMaxAttempts; attempt++ {
		c.waitOnline()

		c.mu.Lock()
		if c.explicitClose {
			c.state = StateDisconnected
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		time.Sleep(bo.NextBackOff())

		c.log.Infow("reconnect attempt",
			"attempt", attempt,
			"max_attempts", c.cfg.ReconnectMaxAttempts)

		if err := c.resume(); err != nil {
			c.log.Warnw("reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		return
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	c.log.Errorw("reconnect gave up", "attempts", c.cfg.ReconnectMaxAttempts)
	c.dispatcher.dispatch(EventReconnectFailed, nil)
}

// resume re-dials, re-authenticates, replays subscriptions and then flushes
// the offline queue. Subscriptions go out before queued messages so the
// server has routing state before traffic resumes.
func (c *Client) resume() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(c.cfg.HandshakeTimeout)*time.Second)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		return err
	}
	return c.replay(ctx)
}

// replay re-authenticates and replays subscriptions and queued messages on
// the current session. The fresh session can drop before replay starts, in
// which case the queue is left intact for the next attempt.
func (c *Client) replay(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	challenge := c.challenge
	s := c.sess
	subs := make([]Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	if s == nil {
		return errors.NewTransportError("resume", fmt.Errorf("session closed before replay"))
	}

	if token != "" {
		if err := c.Authenticate(ctx, token, challenge); err != nil {
			s.close()
			return err
		}
	}

	for _, sub := range subs {
		s.enqueue(&Message{Event: EventSubscribe, Data: sub})
	}
	for _, msg := range c.queue.drain() {
		if !s.enqueue(msg) {
			c.queue.push(msg)
		}
	}
	return nil
}

func (c *Client) waitOnline() {
	c.mu.Lock()
	for !c.networkOnline && !c.explicitClose {
		c.cond.Wait()
	}
	c.mu.Unlock()
}
