package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hdotools/hdomanager/internal/auth"
	"github.com/hdotools/hdomanager/internal/config"
	"github.com/hdotools/hdomanager/internal/hdo"
	"github.com/hdotools/hdomanager/internal/metrics"
	"github.com/hdotools/hdomanager/internal/migrate"
	"github.com/hdotools/hdomanager/internal/notification"
	"github.com/hdotools/hdomanager/internal/storage"
	"github.com/hdotools/hdomanager/internal/ui"
)

// NewMux constructs the HTTP mux, wiring in the schedule service, metrics,
// and health endpoints.
func NewMux(cfg config.Config) *http.ServeMux {
	ctx := context.Background()

	// Optional auto-migration: run `goose up` on startup when enabled.
	if cfg.AutoMigrate && cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	// Seed configured codes into storage so the worker and UI see them.
	var seed []storage.HDOCode
	for _, c := range hdo.ConfiguredCodes() {
		seed = append(seed, storage.HDOCode{Code: c.Code, Name: c.Name, Notes: c.Notes})
	}

	parser := hdo.NewParser(nil)
	if cfg.SourceURL != "" {
		parser = hdo.NewParserForURL(nil, cfg.SourceURL)
	}

	var svc *hdo.Service
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, Codes: seed})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s dsn=%s): %v; falling back to live-only mode", cfg.DBDriver, cfg.DBDSN, err)
		svc = hdo.NewService(parser)
	} else {
		log.Printf("schedule service using storage backend driver=%s", cfg.DBDriver)
		for _, c := range seed {
			if err := st.UpsertCode(ctx, c); err != nil {
				log.Printf("seed code %d failed: %v", c.Code, err)
			}
		}
		svc = hdo.NewServiceWithStorage(parser, st)
		svc.SetNotifier(notification.NewService(st))
	}

	guard := auth.NewTokenGuard(cfg.RefreshTokenHash)

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: storage ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Schedule API.
	mux.HandleFunc("/hdo/", handleHDO(svc))
	mux.HandleFunc("/hdo/codes", handleListCodes(svc))

	// Configured codes, internal refresh and notification config.
	RegisterCodesHandler(mux)
	RegisterRefreshHandler(mux, svc, guard)
	if st != nil {
		RegisterNotificationHandler(mux, notification.NewService(st), guard)
	}

	// Web UI
	mux.Handle("/ui/", http.StripPrefix("/ui/", ui.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return mux
}

// handleListCodes serves the live discovery list: every HDO number present
// in either rate table on the source page.
func handleListCodes(svc *hdo.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "/hdo/codes"
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}()
		metrics.RequestsTotal.WithLabelValues(endpoint).Inc()

		codes, err := svc.Parser().ListCodes(r.Context())
		if err != nil {
			log.Printf("list codes failed: %v", err)
			metrics.RequestErrorsTotal.WithLabelValues(endpoint, "502").Inc()
			http.Error(w, "upstream fetch failed", http.StatusBadGateway)
			return
		}

		writeJSON(w, endpoint, struct {
			Codes []int `json:"codes"`
		}{Codes: codes})
	}
}

// handleHDO serves /hdo/{code}/{projection} where projection is one of
// schedule, state, next-switch or today. The projections are independent
// read-only views over the same snapshot.
func handleHDO(svc *hdo.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		path := strings.TrimPrefix(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) != 3 || parts[0] != "hdo" {
			metrics.RequestErrorsTotal.WithLabelValues(r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		code, err := strconv.Atoi(parts[1])
		if err != nil {
			metrics.RequestErrorsTotal.WithLabelValues("/hdo", "400").Inc()
			http.Error(w, "invalid HDO number", http.StatusBadRequest)
			return
		}
		projection := parts[2]
		endpoint := "/hdo/" + projection

		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}()
		metrics.RequestsTotal.WithLabelValues(endpoint).Inc()

		snap, err := svc.GetSchedule(r.Context(), code)
		if err != nil {
			// Transport failures are retryable; report them distinctly
			// from an unknown code.
			log.Printf("get schedule for %d failed: %v", code, err)
			metrics.RequestErrorsTotal.WithLabelValues(endpoint, "502").Inc()
			http.Error(w, "upstream fetch failed", http.StatusBadGateway)
			return
		}
		if snap == nil {
			metrics.RequestErrorsTotal.WithLabelValues(endpoint, "404").Inc()
			http.Error(w, "unknown HDO number", http.StatusNotFound)
			return
		}

		now := time.Now()
		switch projection {
		case "schedule":
			writeJSON(w, endpoint, snap)

		case "state":
			low := hdo.IsLowTariffAt(snap, now)
			tariff := hdo.TariffHigh
			if low {
				tariff = hdo.TariffLow
			}
			writeJSON(w, endpoint, struct {
				HDONumber int    `json:"hdo_number"`
				Tariff    string `json:"tariff"`
				Low       bool   `json:"low"`
				Category  string `json:"category"`
				RateType  string `json:"rate_type"`
				Source    string `json:"source"`
			}{code, tariff, low, snap.Category, snap.RateType, snap.Source})

		case "next-switch":
			writeJSON(w, endpoint, struct {
				HDONumber  int              `json:"hdo_number"`
				NextSwitch *hdo.SwitchEvent `json:"next_switch"`
			}{code, hdo.NextSwitch(snap, now)})

		case "today":
			writeJSON(w, endpoint, hdo.TodayPeriods(snap, now))

		default:
			metrics.RequestErrorsTotal.WithLabelValues(endpoint, "404").Inc()
			http.NotFound(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, endpoint string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
		metrics.RequestErrorsTotal.WithLabelValues(endpoint, "500").Inc()
	}
}
