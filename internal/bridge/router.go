package bridge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// allowedHosts may be navigated to inside the surface. Everything else is
// handed to Extensions.OpenExternalURL.
var allowedHosts = map[string]bool{
	"connect-js.stripe.com": true,
	"connect.stripe.com":    true,
	"verify.stripe.com":     true,
}

// HandleMessage routes one inbound envelope. Messages arriving after Close
// are dropped.
func (s *Session) HandleMessage(raw []byte) {
	if s.isClosed() {
		return
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metricMessages.WithLabelValues("malformed").Inc()
		s.logger.Warn("malformed message", "err", err)
		s.analytics.LogDeserializeMessageError("", err)
		return
	}

	switch env.Type {
	case MsgFetchClientSecret:
		s.fetchClientSecret()
	case MsgPageDidLoad:
		var msg PageDidLoad
		if !s.decode(env, &msg) {
			return
		}
		s.pageDidLoad(msg)
	case MsgSetterFunctionCalled:
		var msg SetterCall
		if !s.decode(env, &msg) {
			return
		}
		s.setterCalled(msg)
	case MsgDebug:
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			text = string(env.Data)
		}
		s.logger.Debug("surface debug", "message", text)
	case MsgAccountSessionClaimed:
		var msg AccountSessionClaimed
		if !s.decode(env, &msg) {
			return
		}
		if s.ext.AccountSessionClaimed != nil {
			s.ext.AccountSessionClaimed(msg)
		}
	case MsgOpenFinancialConnections:
		var msg FinancialConnectionsRequest
		if !s.decode(env, &msg) {
			return
		}
		s.openFinancialConnections(msg)
	case MsgCloseWebView:
		s.closeWebView()
	case MsgCallSupplementalFunction:
		var msg SupplementalFunctionCalls
		if !s.decode(env, &msg) {
			return
		}
		if s.ext.CallSupplementalFunction != nil {
			s.ext.CallSupplementalFunction(msg)
		}
	case MsgOpenAuthenticatedWebView:
		var msg AuthenticatedWebViewRequest
		if !s.decode(env, &msg) {
			return
		}
		s.openAuthenticatedWebView(msg)
	default:
		metricMessages.WithLabelValues("unknown").Inc()
		s.logger.Debug("ignoring unknown message", "type", env.Type)
		return
	}
	metricMessages.WithLabelValues(env.Type).Inc()
}

// decode unmarshals the payload into v. A missing payload leaves v zero.
func (s *Session) decode(env Envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		metricMessages.WithLabelValues("malformed").Inc()
		s.logger.Warn("malformed message payload", "type", env.Type, "err", err)
		s.analytics.LogDeserializeMessageError(env.Type, err)
		return false
	}
	return true
}

func (s *Session) fetchClientSecret() {
	fetch := s.store.Config().FetchSecret
	if fetch == nil {
		s.logger.Error("client secret unavailable", "err", errNoFetcher)
		s.analytics.LogClientError(errNoFetcher, "", 0)
		metricSecretFetches.WithLabelValues("error").Inc()
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		secret, err := fetch.FetchClientSecret(s.background)
		if err == nil && secret == "" {
			err = errEmptySecret
		}
		if err != nil {
			metricSecretFetches.WithLabelValues("error").Inc()
			s.logger.Error("fetch client secret failed", "err", err)
			s.analytics.LogClientError(err, "", 0)
			return
		}
		metricSecretFetches.WithLabelValues("ok").Inc()
		s.push(EntryResolveClientSecret, secret)
	}()
}

func (s *Session) pageDidLoad(msg PageDidLoad) {
	s.mu.Lock()
	if s.pageLoaded {
		s.mu.Unlock()
		return
	}
	s.pageLoaded = true
	s.mu.Unlock()

	s.analytics.LogWebPageLoaded(msg.PageViewID)
	if s.hooks.OnPageLoaded != nil {
		s.hooks.OnPageLoaded()
	}
}

func (s *Session) setterCalled(msg SetterCall) {
	kind, name := resolveSetter(msg.Setter)
	switch kind {
	case setterLoaderStart:
		var v LoaderStart
		s.decodeValue(msg, &v)
		s.analytics.LogComponentLoaded()
		if s.hooks.OnLoaderStart != nil {
			s.hooks.OnLoaderStart(v)
		}
		return
	case setterLoadError:
		var v LoadError
		s.decodeValue(msg, &v)
		if !knownLoadErrorTypes[v.Error.Type] {
			s.analytics.LogUnexpectedLoadErrorType(v.Error.Type)
		}
		if s.hooks.OnLoadError != nil {
			s.hooks.OnLoadError(v)
		}
		return
	}

	if kind == setterCallback {
		if cb, ok := s.callbacks[name]; ok && cb != nil {
			cb(msg.Value)
			return
		}
	}
	s.logger.Debug("unrecognized setter", "setter", msg.Setter)
	s.analytics.LogUnrecognizedSetter(msg.Setter)
}

// decodeValue fills v from the setter value. Reserved hooks run even when
// the value is missing or has an unexpected shape.
func (s *Session) decodeValue(msg SetterCall, v any) {
	if len(msg.Value) == 0 {
		return
	}
	if err := json.Unmarshal(msg.Value, v); err != nil {
		s.logger.Warn("unexpected setter value", "setter", msg.Setter, "err", err)
		s.analytics.LogDeserializeMessageError(msg.Setter, err)
	}
}

func (s *Session) openFinancialConnections(msg FinancialConnectionsRequest) {
	if msg.ClientSecret == "" {
		s.pushFinancialConnectionsResult(msg.ID, FinancialConnectionsResult{
			Error: &FinancialConnectionsError{Code: FinancialConnectionsInvalidClientSecret, Message: "Invalid or missing clientSecret parameter"},
		})
		return
	}

	s.mu.Lock()
	busy := s.pendingFinID != ""
	if !busy {
		s.pendingFinID = msg.ID
	}
	s.mu.Unlock()

	if busy {
		s.pushFinancialConnectionsResult(msg.ID, FinancialConnectionsResult{
			Error: &FinancialConnectionsError{Code: FinancialConnectionsAlreadyInProgress, Message: "Financial Connections flow already in progress"},
		})
		return
	}
	if s.ext.OpenFinancialConnections == nil {
		s.ReturnFinancialConnectionsResult(msg.ID, FinancialConnectionsResult{
			Error: &FinancialConnectionsError{Code: FinancialConnectionsUnexpectedError, Message: "Financial Connections is not available on this host"},
		})
		return
	}
	s.ext.OpenFinancialConnections(msg)
}

func (s *Session) closeWebView() {
	if s.ext.CloseWebView != nil {
		s.ext.CloseWebView()
		return
	}
	if cb, ok := s.callbacks["onCloseWebView"]; ok && cb != nil {
		cb(nil)
	}
}

func (s *Session) openAuthenticatedWebView(msg AuthenticatedWebViewRequest) {
	u, err := url.Parse(msg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		if err == nil {
			err = fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}
		s.analytics.LogAuthenticatedWebViewError(msg.ID, err)
		s.push(EntryReturnedFromAuthWebView, map[string]any{"id": msg.ID, "url": nil})
		return
	}
	s.analytics.LogAuthenticatedWebViewOpened(msg.ID)
	if s.ext.OpenAuthenticatedWebView != nil {
		s.ext.OpenAuthenticatedWebView(msg)
	}
}

// AllowNavigation reports whether the surface may follow a link to rawURL.
// Any other http(s) link goes to the external opener and is recorded.
func (s *Session) AllowNavigation(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		s.analytics.LogUnexpectedNavigation(rawURL)
		return false
	}
	if u.Scheme == "https" && allowedHosts[strings.ToLower(u.Hostname())] {
		return true
	}
	if u.Scheme == "about" {
		return true
	}
	s.analytics.LogUnexpectedNavigation(rawURL)
	if s.ext.OpenExternalURL != nil && (u.Scheme == "http" || u.Scheme == "https") {
		s.ext.OpenExternalURL(rawURL)
	}
	return false
}
