package surface

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"embedconnect/bridge/internal/auth"
	"embedconnect/bridge/internal/config"
	"embedconnect/bridge/internal/store"
)

// Server accepts hosted surface connections.
type Server struct {
	Cfg    config.Config
	Store  *store.Store
	Reg    *Registry
	Logger *slog.Logger
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Cfg: cfg, Store: st, Reg: reg, Logger: logger.With("component", "surface")}
}

// HandleSurfaceWS serves GET /ws/surface?session_id=..[&codec=msgpack].
func (s *Server) HandleSurfaceWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	surf := s.Reg.Get(sessionID)
	if surf == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	skew := time.Duration(s.Cfg.Surface.TokenSkewSecs) * time.Second
	if _, _, err := auth.ValidateSurfaceToken(s.Cfg.Surface.TokenSecret, token, sessionID, time.Now(), skew); err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			http.Error(w, "surface auth not configured", http.StatusUnauthorized)
			return
		}
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.Cfg.Surface.OriginPatterns})
	if err != nil {
		s.Logger.Warn("ws accept", "session_id", sessionID, "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	cn := &conn{ws: c, wake: make(chan struct{}, 1), cancel: cancel}
	cn.codec.Store(int32(ParseCodec(q.Get("codec"))))

	prev, err := surf.attach(cn)
	if err != nil {
		_ = c.Close(ws.StatusGoingAway, "session closed")
		return
	}
	if prev != nil {
		prev.cancel()
		_ = prev.ws.Close(ws.StatusNormalClosure, "replaced")
		s.Store.AppendEvent(sessionID, "surface_replaced", nil)
	}
	metricConnections.Inc()
	s.Store.SetSurfaceConnected(sessionID, true)
	s.Store.AppendEvent(sessionID, "surface_connected", map[string]any{"codec": Codec(cn.codec.Load()).String()})

	go surf.writeLoop(ctx, cn)
	s.readLoop(ctx, surf, cn, sessionID)

	cancel()
	surf.detach(cn)
	_ = c.Close(ws.StatusNormalClosure, "done")
	metricConnections.Dec()
	if surf.attached() == nil {
		s.Store.SetSurfaceConnected(sessionID, false)
	}
	s.Store.AppendEvent(sessionID, "surface_disconnected", nil)
}

// readLoop hands inbound frames to the session one at a time, in order.
func (s *Server) readLoop(ctx context.Context, surf *Surface, cn *conn, sessionID string) {
	for {
		typ, data, err := cn.ws.Read(ctx)
		if err != nil {
			return
		}
		env, codec, err := decodeInbound(typ, data)
		metricFrames.WithLabelValues("in", codec.String()).Inc()
		if err != nil {
			s.Store.AppendEvent(sessionID, "surface_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		cn.codec.Store(int32(codec))
		if surf.req.OnMessage != nil {
			surf.req.OnMessage(env)
		}
	}
}
