package push

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const closeGrace = time.Second

// WebSocketFeed subscribes to the server push channel. When the connection
// drops for any reason other than ctx being cancelled, it emits one
// connection:lost event and redials with exponential backoff, feeding the
// same channel once reconnected. The channel closes only when ctx ends.
type WebSocketFeed struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	log     *zap.Logger
	buffer  int
	minWait time.Duration
	maxWait time.Duration
}

type WebSocketOption func(*WebSocketFeed)

func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(f *WebSocketFeed) { f.dialer = d }
}

// WithHeader sets extra handshake headers.
func WithHeader(h http.Header) WebSocketOption {
	return func(f *WebSocketFeed) { f.header = h }
}

func WithWebSocketLogger(l *zap.Logger) WebSocketOption {
	return func(f *WebSocketFeed) { f.log = l }
}

// WithReconnectBackoff sets the first and the longest wait between redials.
// Non-positive values keep the defaults.
func WithReconnectBackoff(initial, longest time.Duration) WebSocketOption {
	return func(f *WebSocketFeed) {
		if initial > 0 {
			f.minWait = initial
		}
		if longest > 0 {
			f.maxWait = longest
		}
	}
}

func NewWebSocketFeed(url string, opts ...WebSocketOption) *WebSocketFeed {
	f := &WebSocketFeed{
		url:     url,
		dialer:  websocket.DefaultDialer,
		log:     zap.NewNop(),
		buffer:  64,
		minWait: 500 * time.Millisecond,
		maxWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	if f.minWait > f.maxWait {
		f.minWait = f.maxWait
	}
	f.log = f.log.Named("push").With(zap.String("url", url))
	return f
}

// Subscribe fails only when the first dial fails.
func (f *WebSocketFeed) Subscribe(ctx context.Context) (<-chan contract.Event, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	f.log.Info("push channel connected")

	out := make(chan contract.Event, f.buffer)
	go f.run(ctx, conn, out)
	return out, nil
}

func (f *WebSocketFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}
	return conn, nil
}

func (f *WebSocketFeed) run(ctx context.Context, conn *websocket.Conn, out chan<- contract.Event) {
	defer close(out)
	for {
		err := f.read(ctx, conn, out)
		if err == nil || ctx.Err() != nil {
			return
		}
		f.log.Warn("push channel lost", zap.Error(err))
		if !emit(ctx, out, contract.ConnectionLost(err)) {
			return
		}
		if conn = f.redial(ctx); conn == nil {
			return
		}
	}
}

// read forwards frames until the connection drops, returning the read error,
// or until ctx ends, returning nil.
func (f *WebSocketFeed) read(ctx context.Context, conn *websocket.Conn, out chan<- contract.Event) error {
	done := make(chan struct{})
	defer conn.Close()
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGrace))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		ev, ok, err := decodeFrame(raw)
		if err != nil {
			f.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if !emit(ctx, out, ev) {
			return nil
		}
	}
}

// redial returns nil once ctx ends.
func (f *WebSocketFeed) redial(ctx context.Context) *websocket.Conn {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.minWait
	b.MaxInterval = f.maxWait
	b.Reset()

	for attempt := 1; ; attempt++ {
		wait := b.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := f.dial(ctx)
		if err == nil {
			f.log.Info("push channel reconnected", zap.Int("attempt", attempt))
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		f.log.Debug("redial failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}

func emit(ctx context.Context, out chan<- contract.Event, ev contract.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ contract.Feed = (*WebSocketFeed)(nil)
