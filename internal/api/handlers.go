package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"embedconnect/bridge/internal/analytics"
	"embedconnect/bridge/internal/auth"
	"embedconnect/bridge/internal/bridge"
	"embedconnect/bridge/internal/config"
	"embedconnect/bridge/internal/connect"
	"embedconnect/bridge/internal/health"
	"embedconnect/bridge/internal/store"
	"embedconnect/bridge/internal/types"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	cfg      config.Config
	store    *store.Store
	host     *bridge.Host
	launcher bridge.Launcher
	sender   analytics.Sender
	checker  *health.Checker
	logger   *slog.Logger
}

func NewHandlers(cfg config.Config, st *store.Store, host *bridge.Host, launcher bridge.Launcher, sender analytics.Sender, checker *health.Checker, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		cfg:      cfg,
		store:    st,
		host:     host,
		launcher: launcher,
		sender:   sender,
		checker:  checker,
		logger:   logger.With("component", "api"),
	}
}

func (h *Handlers) env() bridge.Env {
	return bridge.Env{
		Origin:         h.cfg.Bridge.Origin,
		PlatformFamily: h.cfg.Bridge.PlatformFamily,
		Platform:       h.cfg.Bridge.Platform,
		OSVersion:      h.cfg.Bridge.OSVersion,
		SDKVersion:     h.cfg.Bridge.SDKVersion,
	}
}

type createSessionRequest struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props"`
	Callbacks []string       `json:"callbacks"`
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := uuid.New().String()
	sess := &types.Session{
		ID:        id,
		Component: req.Component,
		CreatedAt: time.Now().UTC(),
		Status:    types.StatusMounted,
	}
	if err := h.store.CreateSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	mounted, err := h.host.Mount(r.Context(), bridge.MountOptions{
		SessionID:  id,
		Kind:       bridge.Kind(req.Component),
		Props:      req.Props,
		Callbacks:  h.recordCallbacks(id, req.Callbacks),
		Hooks:      h.recordHooks(id),
		Extensions: h.recordExtensions(id),
		Launcher:   h.launcher,
		Env:        h.env(),
		Analytics:  h.sender,
		Logger:     h.logger,
	})
	if err != nil {
		_ = h.store.EndSession(id)
		h.store.AppendEvent(id, "mount_failed", map[string]any{"error": err.Error()})
		status := http.StatusBadGateway
		if errors.Is(err, connect.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.store.AppendEvent(id, "session_mounted", map[string]any{"url": mounted.URL()})

	token, exp, err := h.mintToken(id)
	if err != nil {
		h.logger.Warn("surface token unavailable", "session_id", id, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":         id,
		"component":          string(mounted.Kind()),
		"url":                mounted.URL(),
		"component_instance": mounted.InstanceID(),
		"surface_ws":         "/ws/surface?session_id=" + id,
		"surface_token":      token,
		"token_expires_at":   exp,
	})
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	if s, err := h.host.Get(id); err == nil {
		sess.URL = s.URL()
		sess.InstanceID = s.InstanceID()
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) HandleSetProps(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.mounted(w, r, id)
	if !ok {
		return
	}
	var req struct {
		Props map[string]any `json:"props"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.SetProps(req.Props)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleViewed(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.mounted(w, r, id)
	if !ok {
		return
	}
	s.MarkViewed()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleAuthResult(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.mounted(w, r, id)
	if !ok {
		return
	}
	var req struct {
		ID  string  `json:"id"`
		URL *string `json:"url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	s.ReturnFromAuthenticatedWebView(req.ID, req.URL)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleFinancialConnectionsResult(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.mounted(w, r, id)
	if !ok {
		return
	}
	var req struct {
		ID      string                            `json:"id"`
		Session json.RawMessage                   `json:"financialConnectionsSession"`
		Token   json.RawMessage                   `json:"token"`
		Error   *bridge.FinancialConnectionsError `json:"error"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	s.ReturnFinancialConnectionsResult(req.ID, bridge.FinancialConnectionsResult{
		Session: req.Session,
		Token:   req.Token,
		Error:   req.Error,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleNavigate(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.mounted(w, r, id)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": s.AllowNavigation(req.URL)})
}

func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	if sess.Status == types.StatusEnded {
		h.store.AppendEvent(id, "session_end_requested", map[string]any{"noop": true})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mounted": false})
		return
	}
	if err := h.host.Unmount(id); err != nil && !errors.Is(err, bridge.ErrSessionNotFound) {
		h.logger.Warn("unmount", "session_id", id, "err", err)
	}
	_ = h.store.EndSession(id)
	h.store.AppendEvent(id, "session_ended", nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mounted": false})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleMintSurfaceToken(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.mounted(w, r, id); !ok {
		return
	}
	token, exp, err := h.mintToken(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": exp})
}

type configRequest struct {
	PublicKey *string `json:"publicKey"`
	connect.FileConfig
}

// HandleUpdateConfig applies a partial configuration to the shared store;
// every mounted session picks it up on the resulting sync.
func (h *Handlers) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u := req.FileConfig.Update()
	u.PublicKey = req.PublicKey
	if u.Empty() {
		http.Error(w, "empty update", http.StatusBadRequest)
		return
	}
	h.host.Store().Update(u)
	slots := make([]string, 0, 6)
	for _, s := range u.Slots() {
		slots = append(slots, s.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": slots, "sessions": len(h.host.SessionIDs())})
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckAll(r.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handlers) mounted(w http.ResponseWriter, r *http.Request, id string) (*bridge.Session, bool) {
	s, err := h.host.Get(id)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	return s, true
}

func (h *Handlers) mintToken(id string) (string, int64, error) {
	exp := time.Now().Add(time.Duration(h.cfg.Surface.TokenTTLSecs) * time.Second).Unix()
	token, err := auth.GenerateSurfaceToken(h.cfg.Surface.TokenSecret, id, exp)
	if err != nil {
		return "", 0, err
	}
	return token, exp, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
