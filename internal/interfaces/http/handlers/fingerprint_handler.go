package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/KeyIP-Intelligence/internal/application/search"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// FingerprintHandler exposes the in-memory fingerprint similarity engine over
// HTTP: load a population, run single/batch searches, unload, and report
// statistics.
type FingerprintHandler struct {
	engine *search.Engine
	log    logging.Logger
}

// NewFingerprintHandler constructs a FingerprintHandler around an already
// configured Engine.
func NewFingerprintHandler(engine *search.Engine, log logging.Logger) *FingerprintHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FingerprintHandler{engine: engine, log: log}
}

type loadRequest struct {
	Records []struct {
		ID        string `json:"id"`
		BitString string `json:"bit_string"`
	} `json:"records"`
}

type loadResponse struct {
	PopulationSize int `json:"population_size"`
}

// Load handles POST /v1/fingerprint/load: accepts a JSON body of pre-parsed
// records and replaces the engine's current population.
func (h *FingerprintHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFingerprintError(w, errors.New(errors.CodeEngineInvalidQuery, "malformed JSON body"))
		return
	}

	records := make([]search.Record, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, search.Record{ID: rec.ID, BitString: rec.BitString})
	}

	if err := h.engine.Load(r.Context(), search.StaticLoader{Records: records}, len(records)); err != nil {
		writeFingerprintError(w, err)
		return
	}

	stats, err := h.engine.Statistics()
	if err != nil {
		writeFingerprintError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{PopulationSize: stats.PopulationSize})
}

type searchRequest struct {
	QueryID   string  `json:"query_id"`
	BitString string  `json:"bit_string"`
	Threshold float64 `json:"threshold"`
	Sorted    bool    `json:"sorted"`
	Limit     int     `json:"limit"`
}

type searchResponse struct {
	Results []search.SearchResult `json:"results"`
}

// Search handles POST /v1/fingerprint/search: runs one query against the
// loaded population.
func (h *FingerprintHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFingerprintError(w, errors.New(errors.CodeEngineInvalidQuery, "malformed JSON body"))
		return
	}

	results, err := h.engine.Search(r.Context(), req.QueryID, req.BitString, search.SearchOptions{
		Threshold: req.Threshold,
		Sorted:    req.Sorted,
		Limit:     req.Limit,
	})
	if err != nil {
		writeFingerprintError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type searchFileRequest struct {
	Queries []struct {
		ID        string `json:"id"`
		BitString string `json:"bit_string"`
	} `json:"queries"`
	Threshold float64 `json:"threshold"`
	Sorted    bool    `json:"sorted"`
	Limit     int     `json:"limit"`
}

type searchFileResponse struct {
	Results [][]search.SearchResult `json:"results"`
}

// SearchFile handles POST /v1/fingerprint/search/file: runs every query in
// the request body concurrently against the loaded population.
func (h *FingerprintHandler) SearchFile(w http.ResponseWriter, r *http.Request) {
	var req searchFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFingerprintError(w, errors.New(errors.CodeEngineInvalidQuery, "malformed JSON body"))
		return
	}

	queries := make([]search.Record, 0, len(req.Queries))
	for _, q := range req.Queries {
		queries = append(queries, search.Record{ID: q.ID, BitString: q.BitString})
	}

	results, err := h.engine.SearchBatch(r.Context(), queries, search.SearchOptions{
		Threshold: req.Threshold,
		Sorted:    req.Sorted,
		Limit:     req.Limit,
	})
	if err != nil {
		writeFingerprintError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchFileResponse{Results: results})
}

// Unload handles POST /v1/fingerprint/unload: discards the loaded population.
func (h *FingerprintHandler) Unload(w http.ResponseWriter, r *http.Request) {
	h.engine.Unload()
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	PopulationSize   int       `json:"population_size"`
	BucketLabels     []string  `json:"bucket_labels"`
	BucketCounts     []int64   `json:"bucket_counts"`
	BucketPercentage []float64 `json:"bucket_percentage"`
}

// Stats handles GET /v1/fingerprint/stats.
func (h *FingerprintHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Statistics()
	if err != nil {
		writeFingerprintError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		PopulationSize:   stats.PopulationSize,
		BucketLabels:     stats.BucketLabels,
		BucketCounts:     stats.BucketCounts,
		BucketPercentage: stats.BucketPercentage,
	})
}

// writeFingerprintError maps a pkg/errors.AppError to its declared HTTP
// status via ErrorCode.HTTPStatus, falling back to 500 for anything else.
func writeFingerprintError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if code := errors.GetCode(err); code != errors.CodeOK {
		status = code.HTTPStatus()
	}
	writeError(w, status, err)
}
