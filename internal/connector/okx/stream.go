package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout          = 10 * time.Second
	writeWait            = 5 * time.Second
	baseReconnectDelay   = 2 * time.Second
	maxReconnectDelay    = 1 * time.Minute
	maxReconnectAttempts = 10
	pingInterval         = 20 * time.Second
)

// ConnState is the streaming client's connection state machine (spec
// §4.2.3): Disconnected -> Connecting -> Connected -> Reconnecting ->
// Connected|Failed.
type ConnState string

const (
	StateDisconnected ConnState = "Disconnected"
	StateConnecting   ConnState = "Connecting"
	StateConnected    ConnState = "Connected"
	StateReconnecting ConnState = "Reconnecting"
	StateFailed       ConnState = "Failed"
)

// Channel is one OKX websocket subscription: a channel name plus its
// instrument id (empty for account-wide channels like "orders").
type Channel struct {
	Name   string
	InstID string
}

// StreamClient is a reconnecting OKX websocket client for one endpoint
// (public or private). Subscriptions survive reconnection: they are
// replayed against the new connection once it is established.
type StreamClient struct {
	url   string
	creds Credentials // zero value for the public endpoint
	log   zerolog.Logger
	bus   *events.Bus

	mu           sync.RWMutex
	conn         *websocket.Conn
	connCancel   context.CancelFunc
	state        ConnState
	subscribed   []Channel
	stopped      bool
	stopChan     chan struct{}
	reconnecting bool

	onMessage func(channel string, data json.RawMessage)
}

// NewStreamClient constructs a client against url. creds is the zero
// value for the public endpoint; a non-zero Credentials triggers a login
// handshake immediately after connect.
func NewStreamClient(url string, creds Credentials, bus *events.Bus, log zerolog.Logger) *StreamClient {
	return &StreamClient{
		url:      url,
		creds:    creds,
		bus:      bus,
		log:      log.With().Str("component", "okx.StreamClient").Str("url", url).Logger(),
		state:    StateDisconnected,
		stopChan: make(chan struct{}),
	}
}

// OnMessage registers the callback invoked for every data message
// received after subscription. Replaces any previously registered
// callback.
func (c *StreamClient) OnMessage(fn func(channel string, data json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Start connects, subscribes to channels, and begins the read loop. A
// connection drop automatically triggers reconnection with the
// subscriptions replayed.
func (c *StreamClient) Start(ctx context.Context, channels []Channel) error {
	c.mu.Lock()
	c.subscribed = channels
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	connCtx := ctx
	c.mu.RUnlock()
	go c.readLoop(connCtx)
	go c.pingLoop(connCtx)
	return nil
}

// Stop closes the connection and halts reconnection.
func (c *StreamClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopChan)
	if c.connCancel != nil {
		c.connCancel()
	}
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
	c.setStateLocked(StateDisconnected)
}

func (c *StreamClient) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPClient: &http.Client{Timeout: dialTimeout}})
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("okx stream: dial failed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.conn = conn
	c.connCancel = connCancel
	c.mu.Unlock()

	if c.creds.APIKey != "" {
		if err := c.login(connCtx); err != nil {
			connCancel()
			_ = conn.Close(websocket.StatusNormalClosure, "login failed")
			c.setState(StateFailed)
			return err
		}
	}

	if err := c.subscribe(connCtx); err != nil {
		connCancel()
		_ = conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		c.setState(StateFailed)
		return err
	}

	c.setState(StateConnected)
	return nil
}

func (c *StreamClient) login(ctx context.Context) error {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	prehash := timestamp + "GET" + "/users/self/verify"
	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(prehash))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	msg := map[string]interface{}{
		"op": "login",
		"args": []map[string]string{{
			"apiKey":     c.creds.APIKey,
			"passphrase": c.creds.Passphrase,
			"timestamp":  timestamp,
			"sign":       sign,
		}},
	}
	return c.writeJSON(ctx, msg)
}

func (c *StreamClient) subscribe(ctx context.Context) error {
	c.mu.RLock()
	channels := c.subscribed
	c.mu.RUnlock()
	if len(channels) == 0 {
		return nil
	}

	args := make([]map[string]string, 0, len(channels))
	for _, ch := range channels {
		a := map[string]string{"channel": ch.Name}
		if ch.InstID != "" {
			a["instId"] = ch.InstID
		}
		args = append(args, a)
	}
	return c.writeJSON(ctx, map[string]interface{}{"op": "subscribe", "args": args})
}

func (c *StreamClient) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("okx stream: marshal failed: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("okx stream: not connected")
	}
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *StreamClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			_ = conn.Write(writeCtx, websocket.MessageText, []byte("ping"))
			cancel()
		}
	}
}

func (c *StreamClient) readLoop(ctx context.Context) {
	defer func() {
		c.mu.RLock()
		stopped := c.stopped
		c.mu.RUnlock()
		if !stopped {
			go c.reconnectLoop(ctx)
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				c.log.Info().Int("status", int(status)).Msg("stream closed normally")
			} else if ctx.Err() == nil {
				c.log.Error().Err(err).Msg("unexpected stream read error")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		if string(message) == "pong" {
			continue
		}
		c.handleMessage(message)
	}
}

func (c *StreamClient) handleMessage(message []byte) {
	var envelope struct {
		Event string `json:"event"`
		Arg   struct {
			Channel string `json:"channel"`
		} `json:"arg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.log.Error().Err(err).Msg("failed to parse stream message")
		return
	}
	if envelope.Event != "" {
		c.log.Debug().Str("event", envelope.Event).Msg("stream control message")
		return
	}

	c.mu.RLock()
	fn := c.onMessage
	c.mu.RUnlock()
	if fn != nil && len(envelope.Data) > 0 {
		fn(envelope.Arg.Channel, envelope.Data)
	}
}

func (c *StreamClient) reconnectLoop(ctx context.Context) {
	c.mu.Lock()
	if c.reconnecting || c.stopped {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()
	c.setState(StateReconnecting)

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		attempt++
		delay := backoffDelay(attempt)
		if attempt <= maxReconnectAttempts {
			c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		} else {
			c.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting (exceeded max attempts, retrying indefinitely)")
		}

		select {
		case <-time.After(delay):
		case <-c.stopChan:
			return
		}

		if err := c.connect(ctx); err != nil {
			c.log.Error().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			continue
		}

		c.log.Info().Int("attempt", attempt).Msg("reconnected")
		go c.readLoop(ctx)
		return
	}
}

// backoffDelay computes exponential backoff with +/-20% jitter, capped at
// maxReconnectDelay.
func backoffDelay(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	jitter := delay * (0.8 + 0.4*rand.Float64())
	return time.Duration(jitter)
}

func (c *StreamClient) setState(s ConnState) {
	c.mu.Lock()
	c.setStateLocked(s)
	c.mu.Unlock()
}

func (c *StreamClient) setStateLocked(s ConnState) {
	from := c.state
	c.state = s
	if from == s {
		return
	}
	if c.bus != nil {
		c.bus.Publish(&events.ConnectionStateChangedData{
			Component: "okx.StreamClient",
			From:      string(from),
			To:        string(s),
		})
	}
}

// State returns the client's current connection state.
func (c *StreamClient) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
