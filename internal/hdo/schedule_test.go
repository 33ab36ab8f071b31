package hdo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const pageFixture = `<html><head><title>Casy prepinania</title></head><body>
<script type="text/javascript">
var chart_colors = ["#004b93", "#e30613"];
var household_rates = [
	{code: '145', for_rate: 'D2', intervals: [
		{t_type: 'nt', t_from: '22:00', t_to: '6:00', weekday: true, weekend: true, meaning: "night [low]", for_rate: 'D2',},
		{t_type: 'vt', t_from: '6:00', t_to: '22:00', weekday: true, weekend: true, meaning: "day", for_rate: 'D2'},
	],},
	{code: 253, for_rate: 'D3', intervals: [
		{t_type: 'nt', t_from: '8:00', t_to: '14:00', weekday: true, weekend: false, meaning: "daytime", for_rate: 'D3'},
		{t_type: 'nt', t_from: '20:00', t_to: '22:00', weekday: true, weekend: true, meaning: "evening", for_rate: 'D3'},
	]},
];
var business_rates = [
	{code: 253, for_rate: 'C2', intervals: []},
	{code: 407, for_rate: 'C3', intervals: [
		{t_type: 'nt', t_from: '23:00', t_to: '5:00', weekday: true, weekend: true, meaning: "night", for_rate: 'C3'},
	]},
];
</script>
</body></html>`

func newPageServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixtureParser(t *testing.T) *Parser {
	t.Helper()
	srv := newPageServer(t, pageFixture)
	return NewParserForURL(srv.Client(), srv.URL)
}

func TestGetSchedule_StringCodeMatchedAsInt(t *testing.T) {
	p := fixtureParser(t)

	snap, err := p.GetSchedule(context.Background(), 145)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if snap == nil {
		t.Fatalf("code 145 stored as string '145' must match the int lookup")
	}
	if snap.HDONumber != 145 || snap.Name != "HDO 145" {
		t.Errorf("unexpected identity: %+v", snap)
	}
	if snap.Category != CategoryHousehold {
		t.Errorf("expected household category, got %q", snap.Category)
	}
	if snap.RateType != "D2" {
		t.Errorf("expected rate type D2, got %q", snap.RateType)
	}
	if len(snap.Workday) != 1 || len(snap.Weekend) != 1 {
		t.Fatalf("vt interval must be dropped: workday=%d weekend=%d", len(snap.Workday), len(snap.Weekend))
	}
	if snap.Workday[0].Start != "22:00" || snap.Workday[0].End != "6:00" {
		t.Errorf("unexpected period: %+v", snap.Workday[0])
	}
}

func TestGetSchedule_HouseholdWinsOnDuplicateCode(t *testing.T) {
	p := fixtureParser(t)

	snap, err := p.GetSchedule(context.Background(), 253)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if snap == nil {
		t.Fatalf("expected a snapshot for 253")
	}
	if snap.Category != CategoryHousehold || snap.RateType != "D3" {
		t.Errorf("household entry must shadow the business one: %+v", snap)
	}
	if len(snap.Workday) != 2 || len(snap.Weekend) != 1 {
		t.Errorf("unexpected normalization: workday=%d weekend=%d", len(snap.Workday), len(snap.Weekend))
	}
}

func TestGetSchedule_BusinessOnlyCode(t *testing.T) {
	p := fixtureParser(t)

	snap, err := p.GetSchedule(context.Background(), 407)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if snap == nil {
		t.Fatalf("expected a snapshot for 407")
	}
	if snap.Category != CategoryBusiness || snap.RateType != "C3" {
		t.Errorf("unexpected category/rate: %+v", snap)
	}
}

func TestGetSchedule_UnknownCodeIsNilNil(t *testing.T) {
	p := fixtureParser(t)

	snap, err := p.GetSchedule(context.Background(), 999)
	if err != nil {
		t.Fatalf("unknown code must not be an error, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for unknown code, got %+v", snap)
	}
}

func TestGetSchedule_FetchFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewParserForURL(srv.Client(), srv.URL)
	if _, err := p.GetSchedule(context.Background(), 145); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}

func TestGetSchedule_MissingTablesDegradeToNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>maintenance page</body></html>`))
	}))
	defer srv.Close()

	p := NewParserForURL(srv.Client(), srv.URL)
	snap, err := p.GetSchedule(context.Background(), 145)
	if err != nil {
		t.Fatalf("missing tables must degrade, not error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
}

func TestListCodes_DedupedAscending(t *testing.T) {
	p := fixtureParser(t)

	codes, err := p.ListCodes(context.Background())
	if err != nil {
		t.Fatalf("ListCodes: %v", err)
	}
	want := []int{145, 253, 407}
	if len(codes) != len(want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}

func TestGetAllSchedules(t *testing.T) {
	p := fixtureParser(t)

	all, err := p.GetAllSchedules(context.Background())
	if err != nil {
		t.Fatalf("GetAllSchedules: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(all))
	}
	if all[253] == nil || all[253].Category != CategoryHousehold {
		t.Errorf("duplicate code must keep the household entry: %+v", all[253])
	}
	if all[407] == nil || all[407].Category != CategoryBusiness {
		t.Errorf("unexpected 407 snapshot: %+v", all[407])
	}
}

func TestIsLowTariffNow_UnknownCode(t *testing.T) {
	p := fixtureParser(t)

	_, found, err := p.IsLowTariffNow(context.Background(), 999)
	if err != nil {
		t.Fatalf("IsLowTariffNow: %v", err)
	}
	if found {
		t.Fatalf("unknown code must report found=false")
	}
}
