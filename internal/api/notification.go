package api

import (
	"encoding/json"
	"net/http"

	"github.com/hdotools/hdomanager/internal/auth"
	"github.com/hdotools/hdomanager/internal/notification"
	"github.com/hdotools/hdomanager/internal/storage"
)

// RegisterNotificationHandler mounts the email-notification config
// endpoints. They share the refresh endpoint's token guard.
func RegisterNotificationHandler(mux *http.ServeMux, svc *notification.Service, guard *auth.TokenGuard) {
	mux.Handle("/internal/notification/config", guard.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg, err := svc.GetConfig(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if cfg != nil {
				cfg.Password = ""
				cfg.APIKey = ""
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cfg)

		case http.MethodPut, http.MethodPost:
			var cfg storage.EmailConfig
			if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			if err := svc.SaveConfig(r.Context(), cfg); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/internal/notification/test", guard.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			To     string              `json:"to"`
			Config storage.EmailConfig `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := svc.TestConfig(r.Context(), req.Config, req.To); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))
}
