package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/hdotools/hdomanager/internal/auth"
	"github.com/hdotools/hdomanager/internal/hdo"
)

// RefreshResponse is the response structure for the refresh endpoint.
type RefreshResponse struct {
	Code     int                   `json:"code"`
	Status   string                `json:"status"`
	Error    string                `json:"error,omitempty"`
	Schedule *hdo.ScheduleSnapshot `json:"schedule,omitempty"`
}

// RegisterRefreshHandler mounts the internal force-refresh endpoint used by
// CronJobs and manual refresh. The guard may be nil (open endpoint).
func RegisterRefreshHandler(mux *http.ServeMux, svc *hdo.Service, guard *auth.TokenGuard) {
	mux.Handle("/internal/refresh", guard.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		code, err := strconv.Atoi(r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, "missing or invalid code parameter", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		resp := RefreshResponse{Code: code, Status: "ok"}
		snap, err := svc.ForceRefresh(r.Context(), code)
		switch {
		case err != nil:
			log.Printf("refresh for %d failed: %v", code, err)
			resp.Status = "error"
			resp.Error = err.Error()
			w.WriteHeader(http.StatusBadGateway)
		case snap == nil:
			resp.Status = "not_found"
			w.WriteHeader(http.StatusNotFound)
		default:
			resp.Schedule = snap
		}

		json.NewEncoder(w).Encode(resp)
	})))
}
