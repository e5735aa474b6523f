// Package api serves the read-only reporting API over the election store,
// an ingestion trigger, and a WebSocket stream of ingestion progress.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/23atomist/electrion-PA/internal/ingest"
	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/normalize"
	"github.com/23atomist/electrion-PA/internal/store"
)

// Service handles reporting queries and ingestion requests. Ingestion is
// serialized by a mutex; the store has a single writer.
type Service struct {
	store  store.Store
	engine *ingest.Engine
	mu     sync.Mutex
	wsHub  *WSHub // optional; receives ingestion progress
}

// NewService creates a new API service. Pass nil for engine to disable the
// ingestion endpoint and nil for hub if progress streaming is not needed.
func NewService(st store.Store, engine *ingest.Engine, hub *WSHub) *Service {
	if engine != nil && hub != nil {
		engine.OnProgress(hub.Broadcast)
	}
	return &Service{store: st, engine: engine, wsHub: hub}
}

// Routes mounts the API handlers under r.
func (s *Service) Routes(r chi.Router) {
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
	r.Get("/years", s.ListYears)
	r.Get("/offices", s.ListOffices)
	r.Get("/breakdown", s.GetBreakdown)
	r.Get("/counts", s.GetCounts)
	r.Post("/ingest/{kind}", s.RunIngest)
}

// BreakdownResponse is the body returned from GET /breakdown.
type BreakdownResponse struct {
	Year      int                 `json:"year"`
	Office    string              `json:"office"`
	Sort      string              `json:"sort"`
	Precincts []PrecinctBreakdown `json:"precincts"`
}

// IngestResponse is the body returned from POST /ingest/{kind}.
type IngestResponse struct {
	Reports []*ingest.Report `json:"reports"`
	Error   string           `json:"error,omitempty"`
}

// Health handles GET /health.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","service":"electiondb"}`))
}

// ListYears handles GET /api/v1/years
func (s *Service) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.store.ListYears(r.Context())
	if err != nil {
		slog.Error("list years failed", "err", err)
		writeError(w, "failed to list years", http.StatusInternalServerError)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, years)
}

// ListOffices handles GET /api/v1/offices
// ?headline=true limits the list to the statewide and legislative offices.
func (s *Service) ListOffices(w http.ResponseWriter, r *http.Request) {
	offices, err := s.store.ListOffices(r.Context())
	if err != nil {
		slog.Error("list offices failed", "err", err)
		writeError(w, "failed to list offices", http.StatusInternalServerError)
		return
	}

	if h := r.URL.Query().Get("headline"); h != "" {
		headline, err := strconv.ParseBool(h)
		if err != nil {
			writeError(w, "headline must be a boolean", http.StatusBadRequest)
			return
		}
		if headline {
			offices = filterHeadline(offices)
		}
	}
	if offices == nil {
		offices = []model.Office{}
	}
	writeJSON(w, http.StatusOK, offices)
}

func filterHeadline(offices []model.Office) []model.Office {
	keep := make(map[string]bool, len(normalize.HeadlineOffices))
	for _, code := range normalize.HeadlineOffices {
		keep[code] = true
	}
	var out []model.Office
	for _, o := range offices {
		if keep[o.Code] {
			out = append(out, o)
		}
	}
	return out
}

// GetBreakdown handles GET /api/v1/breakdown?year=&office=&sort=
func (s *Service) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, "year is required", http.StatusBadRequest)
		return
	}
	office := q.Get("office")
	if office == "" {
		writeError(w, "office is required", http.StatusBadRequest)
		return
	}
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = SortVotes
	}
	if sortBy != SortVotes && sortBy != SortPrecinct {
		writeError(w, "sort must be votes or precinct", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	parties := []string{PartyDem, PartyRep}
	votes, err := s.store.PrecinctVotes(ctx, year, office, parties)
	if err != nil {
		slog.Error("precinct votes failed", "year", year, "office", office, "err", err)
		writeError(w, "failed to load votes", http.StatusInternalServerError)
		return
	}
	reg, err := s.store.PrecinctRegistration(ctx, year, parties)
	if err != nil {
		slog.Error("precinct registration failed", "year", year, "err", err)
		writeError(w, "failed to load registration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, BreakdownResponse{
		Year:      year,
		Office:    office,
		Sort:      sortBy,
		Precincts: Breakdown(votes, reg, sortBy),
	})
}

// GetCounts handles GET /api/v1/counts
func (s *Service) GetCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountRows(r.Context())
	if err != nil {
		slog.Error("count rows failed", "err", err)
		writeError(w, "failed to count rows", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// RunIngest handles POST /api/v1/ingest/{kind}
// kind is results, registration, or all. The run continues if the client
// goes away.
func (s *Service) RunIngest(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, "ingestion is disabled", http.StatusNotImplemented)
		return
	}

	raw := chi.URLParam(r, "kind")
	var kind ingest.Kind
	if raw != "all" {
		k, err := ingest.ParseKind(raw)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		kind = k
	}

	ctx := context.WithoutCancel(r.Context())

	// Serialize ingestion.
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		reports []*ingest.Report
		err     error
	)
	if kind == "" {
		reports, err = s.engine.RunAll(ctx)
	} else {
		var rep *ingest.Report
		rep, err = s.engine.Run(ctx, kind)
		reports = []*ingest.Report{rep}
	}

	resp := IngestResponse{Reports: reports}
	if err != nil {
		slog.Error("ingestion failed", "kind", raw, "err", err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
