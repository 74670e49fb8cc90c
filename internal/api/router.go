package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", h.HandleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleUpdateConfig(w, r)
	})

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.HandleCreateSession(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	// /sessions/{id}[/props|/viewed|/auth-result|/financial-connections-result|/navigate|/end|/events|/surface-token]
	posts := map[string]func(http.ResponseWriter, *http.Request, string){
		"props":                        h.HandleSetProps,
		"viewed":                       h.HandleViewed,
		"auth-result":                  h.HandleAuthResult,
		"financial-connections-result": h.HandleFinancialConnectionsResult,
		"navigate":                     h.HandleNavigate,
		"end":                          h.HandleEndSession,
		"surface-token":                h.HandleMintSurfaceToken,
	}
	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		rest := strings.TrimPrefix(path, "/sessions/")
		parts := strings.Split(rest, "/")
		if parts[0] == "" || len(parts) > 2 {
			http.NotFound(w, r)
			return
		}
		id := parts[0]

		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				h.HandleGetSession(w, r, id)
			case http.MethodDelete:
				h.HandleEndSession(w, r, id)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		tail := parts[1]
		if tail == "events" {
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.HandleListEvents(w, r, id)
			return
		}
		handle, ok := posts[tail]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handle(w, r, id)
	})

	return mux
}
