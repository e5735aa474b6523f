package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/23atomist/electrion-PA/internal/api"
	"github.com/23atomist/electrion-PA/internal/ingest"
	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/store"
)

const resultsFile = "county_code,precinct_code,candidate_number,candidate_first_name,candidate_last_name," +
	"candidate_party_code,candidate_office_code,candidate_district,vote_total\n" +
	"02,0001,1,Ann,Lee,DEM,GOV,,600\n" +
	"02,0001,2,Bob,Ray,REP,GOV,,400\n" +
	"02,0002,1,Ann,Lee,DEM,GOV,,100\n" +
	"02,0002,2,Bob,Ray,REP,GOV,,300\n" +
	"02,0001,9,Cy,Oh,DEM,XYZ,,5\n"

const registrationFile = "2020,G,02,0001,1,DEM,300,2,REP,100\n"

// newTestEnv creates a test Service with in-memory store, source files for
// 2020 in a temp dir, and a chi router.
func newTestEnv(t *testing.T) (*api.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "ElectionReturns_2020_General_PrecinctReturns.txt", resultsFile)
	writeFile(t, dir, "VoterRegistration_2020_General_Precinct.txt", registrationFile)

	ms := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := ingest.NewEngine(ms, ingest.Options{DataDir: dir, Years: []int{2020}}, logger)
	svc := api.NewService(ms, eng, nil)

	r := chi.NewRouter()
	r.Get("/health", svc.Health)
	r.Route("/api/v1", svc.Routes)
	return svc, ms, r
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func do(t *testing.T, router chi.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// seed ingests both file kinds through the API.
func seed(t *testing.T, router chi.Router) api.IngestResponse {
	t.Helper()
	w := do(t, router, "POST", "/api/v1/ingest/all")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

// --- Ingestion trigger ---

func TestRunIngest_All(t *testing.T) {
	_, ms, router := newTestEnv(t)
	resp := seed(t, router)

	if len(resp.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(resp.Reports))
	}
	if resp.Reports[0].Kind != ingest.KindResults || resp.Reports[1].Kind != ingest.KindRegistration {
		t.Errorf("unexpected report order: %s, %s", resp.Reports[0].Kind, resp.Reports[1].Kind)
	}
	for _, rep := range resp.Reports {
		if !rep.Committed {
			t.Errorf("%s run not committed: %s", rep.Kind, rep.Error)
		}
	}

	n, _ := ms.Count(context.Background(), store.ResultsTable)
	if n != 5 {
		t.Errorf("expected 5 results, got %d", n)
	}
	n, _ = ms.Count(context.Background(), store.RegistrationTable)
	if n != 2 {
		t.Errorf("expected 2 registrations, got %d", n)
	}
}

func TestRunIngest_RepeatIsNoOp(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seed(t, router)

	w := do(t, router, "POST", "/api/v1/ingest/results")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.IngestResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp.Reports[0].Totals().FactsInserted; got != 0 {
		t.Errorf("second run inserted %d facts", got)
	}
	if n, _ := ms.Count(context.Background(), store.ResultsTable); n != 5 {
		t.Errorf("expected 5 results after rerun, got %d", n)
	}
}

func TestRunIngest_UnknownKind(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "POST", "/api/v1/ingest/turnout")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRunIngest_Disabled(t *testing.T) {
	svc := api.NewService(store.NewMemoryStore(), nil, nil)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	w := do(t, r, "POST", "/api/v1/ingest/results")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", w.Code)
	}
}

// --- Reporting ---

func TestListYears(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/years")
	if w.Body.String() != "[]\n" {
		t.Errorf("expected empty list before ingestion, got %s", w.Body.String())
	}

	seed(t, router)
	w = do(t, router, "GET", "/api/v1/years")
	var years []int
	json.Unmarshal(w.Body.Bytes(), &years)
	if len(years) != 1 || years[0] != 2020 {
		t.Errorf("expected [2020], got %v", years)
	}
}

func TestListOffices_Headline(t *testing.T) {
	_, _, router := newTestEnv(t)
	seed(t, router)

	var all, headline []model.Office
	json.Unmarshal(do(t, router, "GET", "/api/v1/offices").Body.Bytes(), &all)
	json.Unmarshal(do(t, router, "GET", "/api/v1/offices?headline=true").Body.Bytes(), &headline)

	if len(all) != 2 {
		t.Errorf("expected 2 offices, got %v", all)
	}
	if len(headline) != 1 || headline[0].Code != "GOV" || headline[0].Name != "Governor" {
		t.Errorf("expected only GOV, got %v", headline)
	}

	if w := do(t, router, "GET", "/api/v1/offices?headline=maybe"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad headline flag, got %d", w.Code)
	}
}

func TestGetBreakdown(t *testing.T) {
	_, _, router := newTestEnv(t)
	seed(t, router)

	w := do(t, router, "GET", "/api/v1/breakdown?year=2020&office=GOV&sort=precinct")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.BreakdownResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Precincts) != 2 {
		t.Fatalf("expected 2 precincts, got %d", len(resp.Precincts))
	}

	p1, p2 := resp.Precincts[0], resp.Precincts[1]
	if p1.PrecinctCode != "0001" || p1.DemVotes != 600 || p1.RepVotes != 400 || p1.VoteDifference != 200 {
		t.Errorf("unexpected votes for 0001: %+v", p1)
	}
	if p1.DemRegistered != 300 || p1.RepRegistered != 100 || p1.RegistrationDifference != 200 {
		t.Errorf("unexpected registration for 0001: %+v", p1)
	}
	if !p1.DemShare.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected DEM share 60, got %s", p1.DemShare)
	}
	if p2.DemRegistered != 0 || p2.RepRegistered != 0 {
		t.Errorf("precinct without registration should read zero, got %+v", p2)
	}
	if !p2.DemShare.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected DEM share 25, got %s", p2.DemShare)
	}

	// Default sort orders by vote difference.
	w = do(t, router, "GET", "/api/v1/breakdown?year=2020&office=GOV")
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Sort != api.SortVotes || resp.Precincts[0].PrecinctCode != "0002" {
		t.Errorf("expected 0002 first under vote sort, got %+v", resp)
	}
}

func TestGetBreakdown_BadRequest(t *testing.T) {
	_, _, router := newTestEnv(t)
	for _, path := range []string{
		"/api/v1/breakdown?office=GOV",
		"/api/v1/breakdown?year=20x0&office=GOV",
		"/api/v1/breakdown?year=2020",
		"/api/v1/breakdown?year=2020&office=GOV&sort=alpha",
	} {
		if w := do(t, router, "GET", path); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestGetCounts(t *testing.T) {
	_, _, router := newTestEnv(t)
	seed(t, router)

	var counts []model.TableCount
	json.Unmarshal(do(t, router, "GET", "/api/v1/counts").Body.Bytes(), &counts)
	if len(counts) != len(store.Tables) {
		t.Fatalf("expected %d tables, got %d", len(store.Tables), len(counts))
	}
	got := map[string]int64{}
	for _, c := range counts {
		got[c.Table] = c.Rows
	}
	want := map[string]int64{
		"states": 1, "elections": 1, "counties": 1, "precincts": 2,
		"candidates": 3, "parties": 2, "offices": 2, "results": 5, "registration": 2,
	}
	for table, n := range want {
		if got[table] != n {
			t.Errorf("%s: expected %d rows, got %d", table, n, got[table])
		}
	}
}
