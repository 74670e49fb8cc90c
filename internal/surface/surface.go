package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	ws "nhooyr.io/websocket"

	"embedconnect/bridge/internal/bridge"
)

var (
	ErrSurfaceExists = errors.New("session already has a surface")
	ErrBacklogFull   = errors.New("surface push backlog full")
)

// DefaultBacklog bounds the pushes queued for a surface that is not
// connected or not keeping up.
const DefaultBacklog = 1024

// Launcher creates websocket-backed surfaces. The hosted content attaches
// to them through Server.HandleSurfaceWS.
type Launcher struct {
	reg     *Registry
	logger  *slog.Logger
	backlog int
}

type LauncherOption func(*Launcher)

func WithBacklog(n int) LauncherOption { return func(l *Launcher) { l.backlog = n } }

func WithLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) { l.logger = logger }
}

func NewLauncher(reg *Registry, opts ...LauncherOption) *Launcher {
	l := &Launcher{reg: reg, logger: slog.Default(), backlog: DefaultBacklog}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Launcher) Launch(_ context.Context, req bridge.LaunchRequest) (bridge.Surface, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("launch surface: missing session id")
	}
	s := &Surface{
		req:     req,
		reg:     l.reg,
		logger:  l.logger.With("session_id", req.SessionID),
		backlog: l.backlog,
	}
	if !l.reg.Register(req.SessionID, s) {
		return nil, fmt.Errorf("%w: %s", ErrSurfaceExists, req.SessionID)
	}
	return s, nil
}

// Surface queues pushes for its session and writes them to whichever
// connection is attached, boot frame first.
type Surface struct {
	req     bridge.LaunchRequest
	reg     *Registry
	logger  *slog.Logger
	backlog int

	mu      sync.Mutex
	pending []bridge.Push
	conn    *conn
	// busy is the connection whose batch is being written. No other
	// connection takes pushes until it settles.
	busy   *conn
	closed bool
}

type conn struct {
	ws     *ws.Conn
	codec  atomic.Int32
	wake   chan struct{}
	cancel context.CancelFunc
}

func (c *conn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *conn) write(ctx context.Context, f Frame) error {
	codec := Codec(c.codec.Load())
	b, err := codec.encode(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	metricFrames.WithLabelValues("out", codec.String()).Inc()
	return c.ws.Write(ctx, codec.messageType(), b)
}

// Inject queues p without waiting on the connection.
func (s *Surface) Inject(_ context.Context, p bridge.Push) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if len(s.pending) >= s.backlog {
		return ErrBacklogFull
	}
	s.pending = append(s.pending, p)
	if s.conn != nil {
		s.conn.signal()
	}
	return nil
}

// Close drops queued pushes, disconnects the surface and frees its session
// id for a new launch.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.reg.Remove(s.req.SessionID, s)
	if c != nil {
		c.cancel()
		_ = c.ws.Close(ws.StatusNormalClosure, "session closed")
	}
	return nil
}

// Pending reports how many pushes wait for a connection.
func (s *Surface) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// attach makes c the active connection and returns the one it replaced.
func (s *Surface) attach(c *conn) (prev *conn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("surface closed")
	}
	prev, s.conn = s.conn, c
	return prev, nil
}

func (s *Surface) detach(c *conn) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *Surface) attached() *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// take hands the queued pushes to c if it is the active connection and no
// earlier batch is still out.
func (s *Surface) take(c *conn) []bridge.Push {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != c || s.busy != nil || len(s.pending) == 0 {
		return nil
	}
	out := s.pending
	s.pending = nil
	s.busy = c
	return out
}

// settle ends the batch c took. Undelivered pushes go back to the head of
// the queue and the active connection is woken to send them.
func (s *Surface) settle(c *conn, undelivered []bridge.Push) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy == c {
		s.busy = nil
	}
	if s.closed {
		return
	}
	if len(undelivered) > 0 {
		s.pending = append(append([]bridge.Push(nil), undelivered...), s.pending...)
	}
	if s.conn != nil && len(s.pending) > 0 {
		s.conn.signal()
	}
}

func (s *Surface) writeLoop(ctx context.Context, c *conn) {
	defer c.cancel()
	if err := c.write(ctx, bootFrame(s.req)); err != nil {
		s.logger.Warn("write boot frame", "err", err)
		return
	}
	for {
		if batch := s.take(c); batch != nil {
			if !s.writeBatch(ctx, c, batch) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
	}
}

// writeBatch writes batch to c and settles it. It reports false when the
// connection failed.
func (s *Surface) writeBatch(ctx context.Context, c *conn, batch []bridge.Push) bool {
	for i, p := range batch {
		f, err := pushFrame(p)
		if err != nil {
			s.logger.Error("drop unencodable push", "entry", p.Entry, "seq", p.Seq, "err", err)
			continue
		}
		if err := c.write(ctx, f); err != nil {
			s.settle(c, batch[i:])
			s.logger.Warn("write push", "entry", p.Entry, "seq", p.Seq, "err", err)
			return false
		}
	}
	s.settle(c, nil)
	return true
}
