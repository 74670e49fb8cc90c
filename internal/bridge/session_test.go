package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"embedconnect/bridge/internal/analytics"
	"embedconnect/bridge/internal/connect"
)

type fakeSurface struct {
	mu     sync.Mutex
	pushes []Push
	closed bool
}

func (f *fakeSurface) Inject(_ context.Context, p Push) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.pushes = append(f.pushes, p)
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) all() []Push {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Push(nil), f.pushes...)
}

type fakeLauncher struct {
	req     LaunchRequest
	surface *fakeSurface
	calls   int
	err     error
}

func (l *fakeLauncher) Launch(_ context.Context, req LaunchRequest) (Surface, error) {
	l.calls++
	l.req = req
	if l.err != nil {
		return nil, l.err
	}
	l.surface = &fakeSurface{}
	return l.surface, nil
}

type events struct {
	mu  sync.Mutex
	all []analytics.Event
}

func (e *events) Send(_ context.Context, ev analytics.Event) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

func (e *events) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.all {
		if ev.Name == name {
			n++
		}
	}
	return n
}

type harness struct {
	store    *connect.Store
	launcher *fakeLauncher
	events   *events
	session  *Session
}

func mount(t *testing.T, store *connect.Store, opts MountOptions) *harness {
	t.Helper()
	h := &harness{store: store, launcher: &fakeLauncher{}, events: &events{}}
	if opts.Kind == "" {
		opts.Kind = KindPayments
	}
	opts.Launcher = h.launcher
	opts.Env = Env{SDKVersion: "1.0.0", Platform: "ios", OSVersion: "17.0"}
	opts.Analytics = h.events
	opts.AnalyticsOptions = []analytics.ComponentOption{analytics.Synchronous()}
	s, err := Mount(context.Background(), store, opts)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	h.session = s
	return h
}

func send(t *testing.T, s *Session, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	s.HandleMessage(raw)
}

func argsOf(t *testing.T, p Push) map[string]any {
	t.Helper()
	m, ok := p.Args.(map[string]any)
	if !ok {
		t.Fatalf("push args are %T, want map", p.Args)
	}
	return m
}

func TestMountBootsSurface(t *testing.T) {
	store := connect.NewStore(connect.Configuration{PublicKey: "pk_test_123", Locale: "fr"})
	h := mount(t, store, MountOptions{SessionID: "sess_1", Props: map[string]any{"a": 1}})

	req := h.launcher.req
	if req.URL != "https://connect-js.stripe.com/v1.0/native_host.html#component=payments&publicKey=pk_test_123" {
		t.Fatalf("unexpected url %s", req.URL)
	}
	if req.UserAgent != "iPhone - Stripe Connect Go SDK ios/17.0 - stripe-connect-go/1.0.0" {
		t.Fatalf("unexpected user agent %s", req.UserAgent)
	}
	if req.Boot.InitParams.Locale != "fr" || req.Boot.InitComponentProps["a"] != 1 {
		t.Fatalf("unexpected boot payload %#v", req.Boot)
	}
	if req.Boot.InitParams.Appearance.Variables["fontFamily"] != DefaultFontFamily {
		t.Fatalf("boot appearance missing default font family")
	}
	if h.session.ID() != "sess_1" || req.SessionID != "sess_1" {
		t.Fatalf("session id not propagated")
	}
	if h.events.count(analytics.EventComponentCreated) != 1 {
		t.Fatalf("expected component.created")
	}
	if len(h.launcher.surface.all()) != 0 {
		t.Fatalf("mount must not push")
	}
}

func TestMountIncludesStoreAssets(t *testing.T) {
	store := connect.NewStore(connect.Configuration{PublicKey: "pk"})
	store.InitAssets(context.Background(), func(context.Context) ([]connect.FontSource, error) {
		return []connect.FontSource{{Family: "Inter", Src: "url(https://fonts.example/inter.woff2)"}}, nil
	})
	h := mount(t, store, MountOptions{})
	if fonts := h.launcher.req.Boot.InitParams.Fonts; len(fonts) != 1 || fonts[0].Family != "Inter" {
		t.Fatalf("expected asset fonts in boot payload, got %#v", fonts)
	}
}

func TestMountRejectsForeignStore(t *testing.T) {
	launcher := &fakeLauncher{}
	_, err := Mount(context.Background(), &connect.Store{}, MountOptions{
		Kind:     KindPayments,
		Launcher: launcher,
		Env:      Env{SDKVersion: "1.0.0"},
	})
	if !errors.Is(err, connect.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if launcher.calls != 0 {
		t.Fatalf("no surface may be created for a foreign store")
	}
}

func TestMountRejectsUnknownKind(t *testing.T) {
	_, err := Mount(context.Background(), connect.NewStore(connect.Configuration{}), MountOptions{
		Kind:     "ledger",
		Launcher: &fakeLauncher{},
		Env:      Env{SDKVersion: "1.0.0"},
	})
	if !errors.Is(err, connect.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMountLauncherFailure(t *testing.T) {
	rec := &events{}
	_, err := Mount(context.Background(), connect.NewStore(connect.Configuration{}), MountOptions{
		Kind:             KindPayments,
		Launcher:         &fakeLauncher{err: errors.New("no display")},
		Env:              Env{SDKVersion: "1.0.0"},
		Analytics:        rec,
		AnalyticsOptions: []analytics.ComponentOption{analytics.Synchronous()},
	})
	if err == nil {
		t.Fatalf("expected launch error")
	}
	if rec.count(analytics.EventWebErrorPageLoad) != 1 {
		t.Fatalf("expected page load error event")
	}
}

func TestSetPropsPushesOnlyChangedKeys(t *testing.T) {
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{Props: map[string]any{"a": 1}})

	h.session.SetProps(map[string]any{"a": 1, "b": 2})
	pushes := h.launcher.surface.all()
	if len(pushes) != 1 {
		t.Fatalf("expected one push, got %d", len(pushes))
	}
	args := argsOf(t, pushes[0])
	if pushes[0].Entry != EntryCallSetter || args["setter"] != "b" || args["value"] != 2 {
		t.Fatalf("unexpected push %#v", pushes[0])
	}

	h.session.SetProps(map[string]any{"b": 2})
	pushes = h.launcher.surface.all()
	if len(pushes) != 2 {
		t.Fatalf("expected removal push, got %d pushes", len(pushes))
	}
	args = argsOf(t, pushes[1])
	if args["setter"] != "a" || args["value"] != nil {
		t.Fatalf("removed key should push null, got %#v", args)
	}
	if pushes[1].Seq <= pushes[0].Seq {
		t.Fatalf("seq must increase: %d then %d", pushes[0].Seq, pushes[1].Seq)
	}

	h.session.SetProps(map[string]any{"b": 2})
	if len(h.launcher.surface.all()) != 2 {
		t.Fatalf("identical props must not push")
	}
}

func TestSyncPushesOnePerChangedSlot(t *testing.T) {
	store := connect.NewStore(connect.Configuration{PublicKey: "pk", Locale: "en"})
	h := mount(t, store, MountOptions{})

	h.session.Sync()
	if n := len(h.launcher.surface.all()); n != 0 {
		t.Fatalf("sync without changes pushed %d times", n)
	}

	fr := "fr"
	store.Update(connect.Update{Locale: &fr})
	h.session.Sync()
	pushes := h.launcher.surface.all()
	if len(pushes) != 1 {
		t.Fatalf("expected one push, got %d", len(pushes))
	}
	if args := argsOf(t, pushes[0]); pushes[0].Entry != EntryUpdateConnectInstance || args["locale"] != "fr" || len(args) != 1 {
		t.Fatalf("unexpected push %#v", pushes[0])
	}

	store.Update(connect.Update{
		Appearance: &connect.Appearance{Variables: map[string]any{"colorPrimary": "#000"}},
		Fonts:      []connect.FontSource{},
	})
	h.session.Sync()
	pushes = h.launcher.surface.all()
	if len(pushes) != 3 {
		t.Fatalf("expected appearance and fonts pushes, got %d total", len(pushes))
	}
	if _, ok := argsOf(t, pushes[1])["appearance"]; !ok {
		t.Fatalf("expected appearance push first, got %#v", pushes[1])
	}
	if _, ok := argsOf(t, pushes[2])["fonts"]; !ok {
		t.Fatalf("expected fonts push, got %#v", pushes[2])
	}

	pk := "pk_other"
	store.Update(connect.Update{PublicKey: &pk})
	h.session.Sync()
	if n := len(h.launcher.surface.all()); n != 3 {
		t.Fatalf("public key changes must not push, got %d", n)
	}
}

func TestFetchClientSecretResolves(t *testing.T) {
	store := connect.NewStore(connect.Configuration{
		PublicKey: "pk",
		FetchSecret: connect.SecretFetcherFunc(func(context.Context) (string, error) {
			return "secret_123", nil
		}),
	})
	h := mount(t, store, MountOptions{})

	send(t, h.session, MsgFetchClientSecret, nil)
	h.session.Wait()

	pushes := h.launcher.surface.all()
	if len(pushes) != 1 || pushes[0].Entry != EntryResolveClientSecret || pushes[0].Args != "secret_123" {
		t.Fatalf("unexpected pushes %#v", pushes)
	}
}

func TestFetchClientSecretFailureIsSwallowed(t *testing.T) {
	store := connect.NewStore(connect.Configuration{
		PublicKey: "pk",
		FetchSecret: connect.SecretFetcherFunc(func(context.Context) (string, error) {
			return "", errors.New("backend unavailable")
		}),
	})
	h := mount(t, store, MountOptions{})

	send(t, h.session, MsgFetchClientSecret, nil)
	h.session.Wait()

	if n := len(h.launcher.surface.all()); n != 0 {
		t.Fatalf("failed fetch must not push, got %d", n)
	}
	if h.events.count(analytics.EventClientError) != 1 {
		t.Fatalf("expected client_error event")
	}

	// the session keeps working
	h.session.SetProps(map[string]any{"a": 1})
	if n := len(h.launcher.surface.all()); n != 1 {
		t.Fatalf("session stopped pushing after a fetch failure")
	}
}

func TestFetchClientSecretAfterCloseIsDropped(t *testing.T) {
	release := make(chan struct{})
	store := connect.NewStore(connect.Configuration{
		PublicKey: "pk",
		FetchSecret: connect.SecretFetcherFunc(func(context.Context) (string, error) {
			<-release
			return "secret_late", nil
		}),
	})
	h := mount(t, store, MountOptions{})
	surface := h.launcher.surface

	send(t, h.session, MsgFetchClientSecret, nil)
	if err := h.session.Close(); err != nil {
		t.Fatal(err)
	}
	close(release)
	h.session.Wait()

	if n := len(surface.all()); n != 0 {
		t.Fatalf("late secret must be dropped, got %d pushes", n)
	}
}

func TestPageDidLoadFiresOnce(t *testing.T) {
	loaded := 0
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Hooks: Hooks{OnPageLoaded: func() { loaded++ }},
	})

	send(t, h.session, MsgPageDidLoad, map[string]any{"pageViewId": "pv_1"})
	send(t, h.session, MsgPageDidLoad, map[string]any{"pageViewId": "pv_1"})

	if loaded != 1 {
		t.Fatalf("page loaded hook ran %d times", loaded)
	}
	if n := h.events.count(analytics.EventWebPageLoaded); n != 1 {
		t.Fatalf("page loaded event logged %d times", n)
	}
}

func TestPageDidLoadWithoutData(t *testing.T) {
	loaded := 0
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Hooks: Hooks{OnPageLoaded: func() { loaded++ }},
	})

	h.session.HandleMessage([]byte(`{"type":"pageDidLoad"}`))
	h.session.HandleMessage([]byte(`{"type":"pageDidLoad"}`))

	if loaded != 1 {
		t.Fatalf("page loaded hook ran %d times", loaded)
	}
	if n := h.events.count(analytics.EventWebPageLoaded); n != 1 {
		t.Fatalf("page loaded event logged %d times", n)
	}
	if n := h.events.count(analytics.EventWebErrorDeserializeMessage); n != 0 {
		t.Fatalf("missing data reported as malformed %d times", n)
	}
}

func TestMessagesWithoutDataAreRouted(t *testing.T) {
	closed := 0
	secrets := 0
	store := connect.NewStore(connect.Configuration{
		PublicKey: "pk",
		FetchSecret: connect.SecretFetcherFunc(func(context.Context) (string, error) {
			secrets++
			return "secret_1", nil
		}),
	})
	h := mount(t, store, MountOptions{
		Extensions: Extensions{CloseWebView: func() { closed++ }},
	})

	h.session.HandleMessage([]byte(`{"type":"fetchClientSecret"}`))
	h.session.Wait()
	h.session.HandleMessage([]byte(`{"type":"closeWebView"}`))
	h.session.HandleMessage([]byte(`{"type":"openAuthenticatedWebView"}`))

	if secrets != 1 || closed != 1 {
		t.Fatalf("secrets=%d closed=%d", secrets, closed)
	}
	if n := h.events.count(analytics.EventWebErrorDeserializeMessage); n != 0 {
		t.Fatalf("missing data reported as malformed %d times", n)
	}
	// the empty authenticated web view request is rejected with a return push
	pushes := h.launcher.surface.all()
	if len(pushes) != 2 || pushes[1].Entry != EntryReturnedFromAuthWebView {
		t.Fatalf("unexpected pushes %#v", pushes)
	}
}

func TestReservedSettersWithoutValue(t *testing.T) {
	var loaderStarts []LoaderStart
	var loadErrors []LoadError
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Hooks: Hooks{
			OnLoaderStart: func(v LoaderStart) { loaderStarts = append(loaderStarts, v) },
			OnLoadError:   func(v LoadError) { loadErrors = append(loadErrors, v) },
		},
	})

	h.session.HandleMessage([]byte(`{"type":"onSetterFunctionCalled","data":{"setter":"setOnLoaderStart"}}`))
	if len(loaderStarts) != 1 {
		t.Fatalf("loader start hook ran %d times", len(loaderStarts))
	}
	if h.events.count(analytics.EventWebComponentLoaded) != 1 {
		t.Fatalf("loader start without value should mark the component loaded")
	}

	send(t, h.session, MsgSetterFunctionCalled, map[string]any{"setter": "setOnLoadError", "value": "oops"})
	if len(loadErrors) != 1 {
		t.Fatalf("load error hook ran %d times", len(loadErrors))
	}
	if n := h.events.count(analytics.EventWebErrorDeserializeMessage); n != 1 {
		t.Fatalf("expected the bad value to be reported once, got %d", n)
	}
}

func TestSetterRouting(t *testing.T) {
	var exitValue json.RawMessage
	var loaderStarts []LoaderStart
	var loadErrors []LoadError
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Callbacks: map[string]Callback{
			"onExit": func(v json.RawMessage) { exitValue = v },
		},
		Hooks: Hooks{
			OnLoaderStart: func(v LoaderStart) { loaderStarts = append(loaderStarts, v) },
			OnLoadError:   func(v LoadError) { loadErrors = append(loadErrors, v) },
		},
	})
	s := h.session

	send(t, s, MsgSetterFunctionCalled, map[string]any{"setter": "setOnExit", "value": map[string]any{"x": 1}})
	if string(exitValue) != `{"x":1}` {
		t.Fatalf("callback got %s", exitValue)
	}

	send(t, s, MsgSetterFunctionCalled, map[string]any{"setter": "setOnLoaderStart", "value": map[string]any{"elementTagName": "stripe-connect-payments"}})
	if len(loaderStarts) != 1 || loaderStarts[0].ElementTagName != "stripe-connect-payments" {
		t.Fatalf("loader start hook got %#v", loaderStarts)
	}
	if h.events.count(analytics.EventWebComponentLoaded) != 1 {
		t.Fatalf("loader start should mark the component loaded")
	}

	send(t, s, MsgSetterFunctionCalled, map[string]any{
		"setter": "setOnLoadError",
		"value":  map[string]any{"elementTagName": "x", "error": map[string]any{"type": "mystery_error"}},
	})
	if len(loadErrors) != 1 || loadErrors[0].Error.Type != "mystery_error" {
		t.Fatalf("load error hook got %#v", loadErrors)
	}
	if h.events.count(analytics.EventWebErrorUnexpectedLoadError) != 1 {
		t.Fatalf("expected unexpected load error type event")
	}

	send(t, s, MsgSetterFunctionCalled, map[string]any{"setter": "setOnSomethingNew", "value": true})
	send(t, s, MsgSetterFunctionCalled, map[string]any{"setter": "bogus", "value": true})
	if n := h.events.count(analytics.EventWebWarnUnrecognizedSetter); n != 2 {
		t.Fatalf("expected two unrecognized setter events, got %d", n)
	}
}

func TestMalformedMessagesAreReported(t *testing.T) {
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{})

	h.session.HandleMessage([]byte(`{not json`))
	send(t, h.session, MsgPageDidLoad, "not an object")
	send(t, h.session, "somethingElse", nil)

	if n := h.events.count(analytics.EventWebErrorDeserializeMessage); n != 2 {
		t.Fatalf("expected two deserialize errors, got %d", n)
	}
}

func TestCloseWebViewFallsBackToCallback(t *testing.T) {
	closed := 0
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Callbacks: map[string]Callback{"onCloseWebView": func(json.RawMessage) { closed++ }},
	})
	send(t, h.session, MsgCloseWebView, nil)
	if closed != 1 {
		t.Fatalf("expected fallback callback, got %d calls", closed)
	}

	viaHook := 0
	h2 := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Callbacks:  map[string]Callback{"onCloseWebView": func(json.RawMessage) { closed++ }},
		Extensions: Extensions{CloseWebView: func() { viaHook++ }},
	})
	send(t, h2.session, MsgCloseWebView, nil)
	if viaHook != 1 || closed != 1 {
		t.Fatalf("hook should take precedence: hook=%d callback=%d", viaHook, closed)
	}
}

func TestExtensionsReceivePayloads(t *testing.T) {
	var claimed AccountSessionClaimed
	var calls SupplementalFunctionCalls
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Extensions: Extensions{
			AccountSessionClaimed:    func(v AccountSessionClaimed) { claimed = v },
			CallSupplementalFunction: func(v SupplementalFunctionCalls) { calls = v },
		},
	})
	send(t, h.session, MsgAccountSessionClaimed, map[string]any{"elementTagName": "onboarding", "merchantId": "acct_9"})
	send(t, h.session, MsgCallSupplementalFunction, map[string]any{
		"payments": map[string]any{"functionName": "fetchTaxes", "args": []any{1}, "invocationId": "inv_1"},
	})
	if claimed.MerchantID != "acct_9" {
		t.Fatalf("claimed hook got %#v", claimed)
	}
	if calls["payments"].InvocationID != "inv_1" || len(calls["payments"].Args) != 1 {
		t.Fatalf("supplemental hook got %#v", calls)
	}

	// without hooks these are ignored
	plain := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{})
	send(t, plain.session, MsgAccountSessionClaimed, map[string]any{"merchantId": "acct_9"})
	if n := len(plain.launcher.surface.all()); n != 0 {
		t.Fatalf("ignored extension pushed %d times", n)
	}
}

func TestOpenAuthenticatedWebView(t *testing.T) {
	var opened []AuthenticatedWebViewRequest
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Extensions: Extensions{OpenAuthenticatedWebView: func(r AuthenticatedWebViewRequest) { opened = append(opened, r) }},
	})

	send(t, h.session, MsgOpenAuthenticatedWebView, map[string]any{"id": "aw_1", "url": "javascript:alert(1)"})
	if len(opened) != 0 {
		t.Fatalf("non http url must not be opened")
	}
	pushes := h.launcher.surface.all()
	if len(pushes) != 1 || pushes[0].Entry != EntryReturnedFromAuthWebView {
		t.Fatalf("expected a return push for the rejected url, got %#v", pushes)
	}
	if h.events.count(analytics.EventAuthenticatedWebError) != 1 {
		t.Fatalf("expected authenticated web error event")
	}

	send(t, h.session, MsgOpenAuthenticatedWebView, map[string]any{"id": "aw_2", "url": "https://connect.stripe.com/oauth"})
	if len(opened) != 1 || opened[0].ID != "aw_2" {
		t.Fatalf("expected hook call, got %#v", opened)
	}

	redirect := "stripe-connect://return?code=1"
	h.session.ReturnFromAuthenticatedWebView("aw_2", &redirect)
	pushes = h.launcher.surface.all()
	if args := argsOf(t, pushes[len(pushes)-1]); args["id"] != "aw_2" {
		t.Fatalf("unexpected return push %#v", args)
	}
	if h.events.count(analytics.EventAuthenticatedWebOpened) != 1 || h.events.count(analytics.EventAuthenticatedWebRedirected) != 1 {
		t.Fatalf("missing authenticated web lifecycle events")
	}
}

func TestFinancialConnectionsGuard(t *testing.T) {
	var requests []FinancialConnectionsRequest
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Extensions: Extensions{OpenFinancialConnections: func(r FinancialConnectionsRequest) { requests = append(requests, r) }},
	})

	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_1", "clientSecret": "fcsess_secret"})
	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_2", "clientSecret": "fcsess_secret"})
	if len(requests) != 1 {
		t.Fatalf("second flow must be rejected while the first is open, got %d", len(requests))
	}
	pushes := h.launcher.surface.all()
	if len(pushes) != 1 || argsOf(t, pushes[0])["setter"] != setterFinancialConnectionsResult {
		t.Fatalf("expected an in-progress error push, got %#v", pushes)
	}

	if code := financialConnectionsErrorCode(t, pushes[0]); code != FinancialConnectionsAlreadyInProgress {
		t.Fatalf("in-progress error code %q", code)
	}

	h.session.ReturnFinancialConnectionsResult("fc_1", FinancialConnectionsResult{Session: json.RawMessage(`{"id":"fcsess_1"}`)})
	pushes = h.launcher.surface.all()
	result := argsOf(t, pushes[len(pushes)-1])["value"].(map[string]any)
	if sess, ok := result["financialConnectionsSession"].(map[string]any); !ok || sess["id"] != "fcsess_1" {
		t.Fatalf("session should be pushed as a structured value, got %#v", result["financialConnectionsSession"])
	}
	if result["token"] != nil {
		t.Fatalf("absent token should be nil, got %#v", result["token"])
	}
	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_3", "clientSecret": "fcsess_secret"})
	if len(requests) != 2 {
		t.Fatalf("guard should be released after a result, got %d requests", len(requests))
	}
}

func TestFinancialConnectionsRequiresClientSecret(t *testing.T) {
	var requests []FinancialConnectionsRequest
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Extensions: Extensions{OpenFinancialConnections: func(r FinancialConnectionsRequest) { requests = append(requests, r) }},
	})

	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_1"})
	if len(requests) != 0 {
		t.Fatalf("request without a client secret was forwarded")
	}
	pushes := h.launcher.surface.all()
	if len(pushes) != 1 {
		t.Fatalf("expected one error push, got %d", len(pushes))
	}
	if code := financialConnectionsErrorCode(t, pushes[0]); code != FinancialConnectionsInvalidClientSecret {
		t.Fatalf("error code %q", code)
	}

	// the rejected request does not hold the guard
	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_2", "clientSecret": "fcsess_secret"})
	if len(requests) != 1 {
		t.Fatalf("expected the next request to be forwarded, got %d", len(requests))
	}
}

func TestFinancialConnectionsWithoutHook(t *testing.T) {
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{})

	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_1", "clientSecret": "fcsess_secret"})
	send(t, h.session, MsgOpenFinancialConnections, map[string]any{"id": "fc_2", "clientSecret": "fcsess_secret"})
	pushes := h.launcher.surface.all()
	if len(pushes) != 2 {
		t.Fatalf("expected two error pushes, got %d", len(pushes))
	}
	for _, p := range pushes {
		if code := financialConnectionsErrorCode(t, p); code != FinancialConnectionsUnexpectedError {
			t.Fatalf("error code %q", code)
		}
	}
}

func financialConnectionsErrorCode(t *testing.T, p Push) string {
	t.Helper()
	args := argsOf(t, p)
	if args["setter"] != setterFinancialConnectionsResult {
		t.Fatalf("unexpected setter %v", args["setter"])
	}
	value, ok := args["value"].(map[string]any)
	if !ok {
		t.Fatalf("value is %T", args["value"])
	}
	e, ok := value["error"].(*FinancialConnectionsError)
	if !ok || e == nil {
		t.Fatalf("missing error in %#v", value)
	}
	return e.Code
}

func TestAllowNavigation(t *testing.T) {
	var external []string
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Extensions: Extensions{OpenExternalURL: func(u string) { external = append(external, u) }},
	})
	s := h.session

	if !s.AllowNavigation("https://connect-js.stripe.com/v1.0/native_host.html") {
		t.Fatalf("hosted origin must be allowed")
	}
	if s.AllowNavigation("https://example.com/help") {
		t.Fatalf("foreign origin must not be allowed")
	}
	if s.AllowNavigation("http://connect.stripe.com/") {
		t.Fatalf("plain http must not be allowed")
	}
	if len(external) != 2 {
		t.Fatalf("expected two external opens, got %v", external)
	}
	if n := h.events.count(analytics.EventWebErrorUnexpectedNav); n != 2 {
		t.Fatalf("expected two unexpected navigation events, got %d", n)
	}
}

func TestMarkViewedOnce(t *testing.T) {
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{})
	h.session.MarkViewed()
	h.session.MarkViewed()
	if n := h.events.count(analytics.EventComponentViewed); n != 1 {
		t.Fatalf("viewed logged %d times", n)
	}
}

func TestClosedSessionIgnoresEverything(t *testing.T) {
	loaded := 0
	h := mount(t, connect.NewStore(connect.Configuration{PublicKey: "pk"}), MountOptions{
		Hooks: Hooks{OnPageLoaded: func() { loaded++ }},
	})
	surface := h.launcher.surface
	if err := h.session.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	send(t, h.session, MsgPageDidLoad, map[string]any{})
	h.session.SetProps(map[string]any{"a": 1})
	if loaded != 0 || len(surface.all()) != 0 {
		t.Fatalf("closed session reacted: loaded=%d pushes=%d", loaded, len(surface.all()))
	}
	if !surface.closed {
		t.Fatalf("surface was not closed")
	}
}
