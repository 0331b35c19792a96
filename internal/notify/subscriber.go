package notify

import (
	"context"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State of the push subscription.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateBackoff    State = "backoff"
	StateClosed     State = "closed"
)

const (
	pushWriteWait = 10 * time.Second
	pushPongWait  = 90 * time.Second
)

// MessageFunc receives the raw payload of each push message.
type MessageFunc func(data []byte)

// SubscriberMetrics is the slice of the metrics collector the subscriber
// reports to.
type SubscriberMetrics interface {
	RecordPushMessage()
	RecordReconnect()
}

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	// URL is the backend websocket endpoint, without the token parameter.
	URL string
	// Token returns the current session token, or "" when logged out.
	Token func() string
	// OnOpen is called each time the connection is established, before any
	// message is read. The notification center hooks its bulk refresh here:
	// the token just proved valid, and a full fetch at this point catches
	// everything missed while disconnected.
	OnOpen func()
	// OnMessage is called for every received message.
	OnMessage MessageFunc
	// MinDelay and MaxDelay bound the reconnect backoff.
	MinDelay time.Duration
	MaxDelay time.Duration
	Metrics  SubscriberMetrics
	Logger   *slog.Logger
	// Dialer overrides the websocket dialer, used in tests.
	Dialer *websocket.Dialer
}

// Subscriber maintains the push connection to the backend. It reconnects on
// its own with exponential backoff and never gives up while the context is
// alive; a lost connection is an expected condition, not an error.
type Subscriber struct {
	url       string
	token     func() string
	onOpen    func()
	onMessage MessageFunc
	minDelay  time.Duration
	maxDelay  time.Duration
	metrics   SubscriberMetrics
	logger    *slog.Logger
	dialer    *websocket.Dialer

	mu       sync.RWMutex
	state    State
	conn     *websocket.Conn
	terminal bool
}

func NewSubscriber(opts SubscriberOptions) *Subscriber {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 60 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Subscriber{
		url:       opts.URL,
		token:     opts.Token,
		onOpen:    opts.OnOpen,
		onMessage: opts.OnMessage,
		minDelay:  opts.MinDelay,
		maxDelay:  opts.MaxDelay,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		dialer:    opts.Dialer,
	}
}

// State reports the current connection state.
func (s *Subscriber) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == "" {
		return StateClosed
	}
	return s.state
}

// Run connects and keeps the subscription alive until ctx is done. It blocks,
// so it is started on its own goroutine.
func (s *Subscriber) Run(ctx context.Context) {
	delay := s.minDelay
	for {
		if ctx.Err() != nil || s.isTerminal() {
			s.setState(StateClosed)
			return
		}

		token := s.token()
		if token == "" {
			// Logged out. Poll until a session appears.
			s.setState(StateClosed)
			if !sleepCtx(ctx, s.minDelay) {
				return
			}
			continue
		}

		s.setState(StateConnecting)
		conn, err := s.dial(ctx, token)
		if err != nil {
			s.logger.Warn("push connect failed", "error", err)
			s.setState(StateBackoff)
			if !sleepCtx(ctx, jitter(delay)) {
				s.setState(StateClosed)
				return
			}
			delay = nextDelay(delay, s.maxDelay)
			continue
		}

		if s.isTerminal() {
			conn.Close()
			s.setState(StateClosed)
			return
		}

		s.setConn(conn)
		s.setState(StateOpen)
		delay = s.minDelay
		s.logger.Info("push channel open")
		if s.onOpen != nil {
			s.onOpen()
		}

		s.readLoop(ctx, conn)
		s.setConn(nil)

		if ctx.Err() != nil || s.isTerminal() {
			s.setState(StateClosed)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordReconnect()
		}
		s.setState(StateBackoff)
		if !sleepCtx(ctx, jitter(delay)) {
			s.setState(StateClosed)
			return
		}
		delay = nextDelay(delay, s.maxDelay)
	}
}

// Close ends the subscription for good: the current connection, if any, is
// dropped and Run stops instead of reconnecting.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.terminal = true
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *Subscriber) isTerminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminal
}

func (s *Subscriber) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pushPongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pushPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pushWriteWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("push channel lost", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pushPongWait))
		if s.metrics != nil {
			s.metrics.RecordPushMessage()
		}
		if s.onMessage != nil {
			s.onMessage(data)
		}
	}
}

func (s *Subscriber) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Subscriber) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func nextDelay(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// jitter spreads reconnect attempts by up to 20 percent either way.
func jitter(d time.Duration) time.Duration {
	f := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * f)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
