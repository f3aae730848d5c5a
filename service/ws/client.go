package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Policy bounds the reconnect behavior: fixed attempt count, fixed delay.
// After exhaustion the channel degrades silently and callers must poll.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Delay: 3 * time.Second}
}

// Conn is the single persistent push connection for one session. Incoming
// events go to the handler; every successful reconnect fires onResync
// because the stream buffers nothing while disconnected.
type Conn struct {
	url      string
	token    string
	policy   Policy
	handler  func(models.Event)
	onResync func()
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	degraded bool
}

func Dial(ctx context.Context, url, token string, policy Policy, handler func(models.Event), onResync func(), logger *zap.Logger) (*Conn, error) {
	c := &Conn{
		url:      url,
		token:    token,
		policy:   policy,
		handler:  handler,
		onResync: onResync,
		logger:   logger,
		done:     make(chan struct{}),
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(runCtx, conn)
	return c, nil
}

func (c *Conn) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

func (c *Conn) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)

	for {
		c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		next, ok := c.reconnect(ctx)
		if !ok {
			c.mu.Lock()
			c.degraded = true
			c.mu.Unlock()
			c.logger.Warn("push channel degraded, falling back to polling")
			return
		}
		conn = next
		c.logger.Info("push channel reconnected")
		if c.onResync != nil {
			c.onResync()
		}
	}
}

func (c *Conn) reconnect(ctx context.Context) (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(c.policy.Delay):
		}

		conn, err := c.connect(ctx)
		if err == nil {
			return conn, true
		}
		c.logger.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Error(err))
	}
	return nil, false
}

// readLoop pumps events off the wire until the connection drops or the
// context ends. Ping/pong deadlines keep half-dead connections from
// lingering.
func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn) {
	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-stopped:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("push connection dropped", zap.Error(err))
			}
			return
		}

		var ev models.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Warn("unparseable push payload", zap.Error(err))
			continue
		}
		c.handler(ev)
	}
}

// Degraded reports whether the retry budget is spent and live updates are
// gone for this session.
func (c *Conn) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Close tears the connection down and waits for the pumps to exit.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}
