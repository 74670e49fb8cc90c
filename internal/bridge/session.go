package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"embedconnect/bridge/internal/analytics"
	"embedconnect/bridge/internal/connect"
)

// Hooks are the lifecycle callbacks every component supports.
type Hooks struct {
	OnLoaderStart func(LoaderStart)
	OnLoadError   func(LoadError)
	OnPageLoaded  func()
}

// Extensions receive the reserved host-level requests of the hosted
// content. A nil hook means the request is ignored.
type Extensions struct {
	AccountSessionClaimed    func(AccountSessionClaimed)
	OpenFinancialConnections func(FinancialConnectionsRequest)
	CloseWebView             func()
	CallSupplementalFunction func(SupplementalFunctionCalls)
	OpenAuthenticatedWebView func(AuthenticatedWebViewRequest)
	OpenExternalURL          func(url string)
}

// MountOptions describe one component to mount.
type MountOptions struct {
	SessionID  string
	Kind       Kind
	Props      map[string]any
	Callbacks  map[string]Callback
	Hooks      Hooks
	Extensions Extensions

	Launcher         Launcher
	Env              Env
	Analytics        analytics.Sender
	AnalyticsOptions []analytics.ComponentOption
	Logger           *slog.Logger
}

// Session keeps one hosted surface configured and routes its messages.
type Session struct {
	id        string
	kind      Kind
	env       Env
	url       string
	store     *connect.Store
	callbacks map[string]Callback
	hooks     Hooks
	ext       Extensions
	analytics *analytics.ComponentClient
	logger    *slog.Logger

	// background is used for work that outlives the mount call, such as
	// secret fetches; it is never cancelled.
	background context.Context
	inflight   sync.WaitGroup

	mu           sync.Mutex
	surface      Surface
	closed       bool
	seq          uint64
	lastRevs     connect.Revisions
	lastProps    map[string]any
	pageLoaded   bool
	pendingFinID string
}

// Mount validates the store, creates the surface with its boot payload and
// starts routing its messages. Only configuration errors and launcher
// failures are returned.
func Mount(ctx context.Context, store *connect.Store, opts MountOptions) (*Session, error) {
	if err := connect.Check(store); err != nil {
		return nil, err
	}
	kind, err := ParseKind(string(opts.Kind))
	if err != nil {
		return nil, err
	}
	if err := opts.Env.Validate(); err != nil {
		return nil, err
	}
	if opts.Launcher == nil {
		return nil, fmt.Errorf("%w: no surface launcher", connect.ErrConfiguration)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With("component", string(kind), "session_id", id)

	cfg, revs := store.Snapshot()
	s := &Session{
		id:         id,
		kind:       kind,
		env:        opts.Env,
		url:        Address(opts.Env, kind, cfg),
		store:      store,
		callbacks:  opts.Callbacks,
		hooks:      opts.Hooks,
		ext:        opts.Extensions,
		logger:     logger,
		background: context.WithoutCancel(ctx),
		lastRevs:   revs,
		lastProps:  copyProps(opts.Props),
	}
	s.analytics = analytics.NewComponentClient(opts.Analytics, analytics.ComponentConfig{
		PublishableKey: cfg.PublicKey,
		PlatformID:     cfg.Overrides.PlatformID,
		MerchantID:     cfg.Overrides.MerchantID,
		LiveMode:       cfg.Overrides.LiveMode,
		Component:      string(kind),
	}, opts.AnalyticsOptions...)

	fonts, err := store.Assets(ctx)
	if err != nil {
		logger.Warn("boot assets unavailable", "err", err)
		s.analytics.LogClientError(fmt.Errorf("load boot assets: %w", err), "", 0)
		fonts = nil
	}

	surface, err := opts.Launcher.Launch(ctx, LaunchRequest{
		SessionID: id,
		URL:       s.url,
		UserAgent: opts.Env.UserAgent(),
		Boot:      newBootPayload(cfg, fonts, copyProps(opts.Props)),
		OnMessage: s.HandleMessage,
	})
	if err != nil {
		s.analytics.LogPageLoadError(err, s.url)
		return nil, fmt.Errorf("launch surface: %w", err)
	}
	s.surface = surface
	s.analytics.LogCreated()
	metricSessions.Inc()
	logger.Info("session mounted", "url", s.url)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Kind() Kind { return s.kind }

// URL is the surface address fixed at mount.
func (s *Session) URL() string { return s.url }

// InstanceID is the analytics component instance of this session.
func (s *Session) InstanceID() string { return s.analytics.InstanceID() }

// Sync pushes every appearance, locale or fonts slot the store replaced
// since the last sync, one push per slot.
func (s *Session) Sync() {
	cfg, revs := s.store.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	prev := s.lastRevs
	s.lastRevs = revs
	if revs.Changed(prev, connect.SlotAppearance) {
		s.pushLocked(EntryUpdateConnectInstance, map[string]any{"appearance": withDefaultFontFamily(cfg.Appearance)})
	}
	if revs.Changed(prev, connect.SlotLocale) {
		s.pushLocked(EntryUpdateConnectInstance, map[string]any{"locale": cfg.Locale})
	}
	if revs.Changed(prev, connect.SlotFonts) {
		fonts := cfg.Fonts
		if fonts == nil {
			fonts = []connect.FontSource{}
		}
		s.pushLocked(EntryUpdateConnectInstance, map[string]any{"fonts": fonts})
	}
	if revs.Changed(prev, connect.SlotPublicKey) || revs.Changed(prev, connect.SlotOverrides) {
		if next := Address(s.env, s.kind, cfg); next != s.url {
			s.logger.Warn("surface address changed; remount to apply", "next_url", next)
		}
	}
}

// SetProps diffs props against the last seen set and pushes one setter call
// per added, changed or removed key. Removed keys are pushed as null.
func (s *Session) SetProps(props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	keys := make([]string, 0, len(props)+len(s.lastProps))
	for k := range props {
		keys = append(keys, k)
	}
	for k := range s.lastProps {
		if _, ok := props[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		next, present := props[k]
		prev, seen := s.lastProps[k]
		if present && seen && reflect.DeepEqual(prev, next) {
			continue
		}
		if !present {
			next = nil
		}
		s.pushLocked(EntryCallSetter, map[string]any{"setter": k, "value": next})
	}
	s.lastProps = copyProps(props)
}

// MarkViewed records that the component became visible.
func (s *Session) MarkViewed() { s.analytics.LogViewed() }

// ReturnFromAuthenticatedWebView reports the outcome of an authenticated
// web view; a nil url means the user cancelled.
func (s *Session) ReturnFromAuthenticatedWebView(id string, url *string) {
	if url == nil {
		s.analytics.LogAuthenticatedWebViewCanceled(id)
	} else {
		s.analytics.LogAuthenticatedWebViewRedirected(id)
	}
	s.push(EntryReturnedFromAuthWebView, map[string]any{"id": id, "url": url})
}

// ReturnFinancialConnectionsResult hands the financial connections outcome
// back to the hosted content and releases the in-progress guard.
func (s *Session) ReturnFinancialConnectionsResult(id string, res FinancialConnectionsResult) {
	s.mu.Lock()
	if s.pendingFinID == id {
		s.pendingFinID = ""
	}
	s.mu.Unlock()
	s.pushFinancialConnectionsResult(id, res)
}

func (s *Session) pushFinancialConnectionsResult(id string, res FinancialConnectionsResult) {
	s.push(EntryCallSetter, map[string]any{
		"setter": setterFinancialConnectionsResult,
		"value": map[string]any{
			"id":                          id,
			"financialConnectionsSession": s.opaque("financialConnectionsSession", res.Session),
			"token":                       s.opaque("token", res.Token),
			"error":                       res.Error,
		},
	})
}

// opaque decodes raw so that every frame codec carries it as a structured
// value. Empty input is nil.
func (s *Session) opaque(field string, raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("dropping undecodable result field", "field", field, "err", err)
		return nil
	}
	return v
}

// Close detaches the message handler and drops the surface. Pushes and late
// secret resolutions after Close are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	surface := s.surface
	s.surface = nil
	s.mu.Unlock()

	metricSessions.Dec()
	s.logger.Info("session closed")
	if surface == nil {
		return nil
	}
	return surface.Close()
}

// Wait blocks until in-flight secret fetches have settled.
func (s *Session) Wait() { s.inflight.Wait() }

func (s *Session) push(entry string, args any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(entry, args)
}

func (s *Session) pushLocked(entry string, args any) {
	if s.closed || s.surface == nil {
		metricPushes.WithLabelValues(entry, "dropped").Inc()
		return
	}
	s.seq++
	p := Push{Seq: s.seq, Entry: entry, Args: args}
	if err := s.surface.Inject(context.Background(), p); err != nil {
		metricPushes.WithLabelValues(entry, "error").Inc()
		s.logger.Warn("push failed", "entry", entry, "seq", p.Seq, "err", err)
		return
	}
	metricPushes.WithLabelValues(entry, "ok").Inc()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func copyProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

var (
	errNoFetcher   = errors.New("fetch client secret: no fetcher configured")
	errEmptySecret = errors.New("fetch client secret returned an empty secret")
)
