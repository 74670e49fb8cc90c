package api

import (
	"encoding/json"

	"embedconnect/bridge/internal/bridge"
)

// Sessions mounted over HTTP have no in-process host to call back into, so
// their callbacks, hooks and extension requests land in the event log where
// the client polls them.

func (h *Handlers) recordCallbacks(id string, names []string) map[string]bridge.Callback {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]bridge.Callback, len(names))
	for _, name := range names {
		out[name] = func(value json.RawMessage) {
			h.store.AppendEvent(id, "callback", map[string]any{"name": name, "value": rawValue(value)})
		}
	}
	return out
}

func (h *Handlers) recordHooks(id string) bridge.Hooks {
	return bridge.Hooks{
		OnLoaderStart: func(v bridge.LoaderStart) {
			h.store.AppendEvent(id, "loader_start", map[string]any{"element_tag_name": v.ElementTagName})
		},
		OnLoadError: func(v bridge.LoadError) {
			h.store.AppendEvent(id, "load_error", map[string]any{
				"element_tag_name": v.ElementTagName,
				"type":             v.Error.Type,
				"message":          v.Error.Message,
			})
		},
		OnPageLoaded: func() {
			h.store.AppendEvent(id, "page_loaded", nil)
		},
	}
}

func (h *Handlers) recordExtensions(id string) bridge.Extensions {
	return bridge.Extensions{
		AccountSessionClaimed: func(v bridge.AccountSessionClaimed) {
			h.store.AppendEvent(id, "account_session_claimed", map[string]any{"merchant_id": v.MerchantID})
		},
		OpenFinancialConnections: func(v bridge.FinancialConnectionsRequest) {
			h.store.AppendEvent(id, "open_financial_connections", map[string]any{
				"id":                   v.ID,
				"client_secret":        v.ClientSecret,
				"connected_account_id": v.ConnectedAccountID,
			})
		},
		CloseWebView: func() {
			h.store.AppendEvent(id, "close_web_view", nil)
		},
		CallSupplementalFunction: func(v bridge.SupplementalFunctionCalls) {
			for element, call := range v {
				args := make([]any, 0, len(call.Args))
				for _, a := range call.Args {
					args = append(args, rawValue(a))
				}
				h.store.AppendEvent(id, "supplemental_function_call", map[string]any{
					"element":       element,
					"function_name": call.FunctionName,
					"invocation_id": call.InvocationID,
					"args":          args,
				})
			}
		},
		OpenAuthenticatedWebView: func(v bridge.AuthenticatedWebViewRequest) {
			h.store.AppendEvent(id, "open_authenticated_web_view", map[string]any{"id": v.ID, "url": v.URL})
		},
		OpenExternalURL: func(url string) {
			h.store.AppendEvent(id, "open_external_url", map[string]any{"url": url})
		},
	}
}

// rawValue keeps callback payloads structured in the event log.
func rawValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
