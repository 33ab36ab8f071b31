package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hdotools/hdomanager/internal/auth"
	"github.com/hdotools/hdomanager/internal/config"
	"github.com/hdotools/hdomanager/internal/hdo"
)

const apiPageFixture = `<html><body><script>
var household_rates = [
	{code: '145', for_rate: 'D2', intervals: [
		{t_type: 'nt', t_from: '22:00', t_to: '6:00', weekday: true, weekend: true, meaning: "night", for_rate: 'D2'},
	]},
];
var business_rates = [
	{code: 407, for_rate: 'C3', intervals: [
		{t_type: 'nt', t_from: '23:00', t_to: '5:00', weekday: true, weekend: true, meaning: "night", for_rate: 'C3'},
	]},
];
</script></body></html>`

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(apiPageFixture))
	}))
	t.Cleanup(srv.Close)

	return NewMux(config.Config{
		DBDriver:  "memory",
		SourceURL: srv.URL,
	})
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestScheduleEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/145/schedule")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var snap hdo.ScheduleSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.HDONumber != 145 || snap.Category != hdo.CategoryHousehold {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Workday) != 1 {
		t.Errorf("expected 1 workday period, got %d", len(snap.Workday))
	}
}

func TestStateEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/145/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state struct {
		HDONumber int    `json:"hdo_number"`
		Tariff    string `json:"tariff"`
		Low       bool   `json:"low"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if state.HDONumber != 145 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Low != (state.Tariff == hdo.TariffLow) {
		t.Errorf("tariff label disagrees with low flag: %+v", state)
	}
}

func TestNextSwitchEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/145/next-switch")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		HDONumber  int              `json:"hdo_number"`
		NextSwitch *hdo.SwitchEvent `json:"next_switch"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// A single daily period always yields a next switch.
	if resp.NextSwitch == nil {
		t.Fatalf("expected a next switch event")
	}
	if resp.NextSwitch.ToTariff != hdo.TariffLow && resp.NextSwitch.ToTariff != hdo.TariffHigh {
		t.Errorf("unexpected target tariff %q", resp.NextSwitch.ToTariff)
	}
}

func TestTodayEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/145/today")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var today hdo.TodaySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &today); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if today.DayType != "workday" && today.DayType != "weekend" {
		t.Errorf("unexpected day type %q", today.DayType)
	}
	if today.PeriodCount != len(today.Periods) {
		t.Errorf("period count %d disagrees with list length %d", today.PeriodCount, len(today.Periods))
	}
}

func TestUnknownCodeIs404(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/999/schedule")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown HDO number") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestInvalidCodeIs400(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/abc/state")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric code, got %d", rec.Code)
	}
}

func TestUnknownProjectionIs404(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/145/everything")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown projection, got %d", rec.Code)
	}
}

func TestUpstreamFailureIs502(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mux := NewMux(config.Config{DBDriver: "memory", SourceURL: srv.URL})

	rec := get(t, mux, "/hdo/145/schedule")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when the source page is down, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream fetch failed") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestDiscoveryEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/hdo/codes")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Codes []int `json:"codes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Codes) != 2 || resp.Codes[0] != 145 || resp.Codes[1] != 407 {
		t.Fatalf("unexpected codes: %v", resp.Codes)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux := testMux(t)

	for _, path := range []string{"/healthz", "/readyz", "/livez"} {
		if rec := get(t, mux, path); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRefreshEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/refresh?code=145", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RefreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "ok" || resp.Schedule == nil || resp.Schedule.HDONumber != 145 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRefreshEndpoint_UnknownCode(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/refresh?code=999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRefreshEndpoint_GetRejected(t *testing.T) {
	mux := testMux(t)

	rec := get(t, mux, "/internal/refresh?code=145")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestRefreshEndpoint_Guarded(t *testing.T) {
	hash, err := auth.HashToken("s3cret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(apiPageFixture))
	}))
	defer srv.Close()

	mux := NewMux(config.Config{DBDriver: "memory", SourceURL: srv.URL, RefreshTokenHash: hash})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/refresh?code=145", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/refresh?code=145", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}
