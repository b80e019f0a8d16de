package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/machinepulse/machinepulse/internal/store"
)

// ChainInfo exposes the live chain topology. Satisfied by chain.Manager.
type ChainInfo interface {
	Chains() []string
	ChainStages(name string) ([]string, bool)
}

// Handler is the HTTP handler for all /api/* endpoints and /healthz.
// It reads chain topology from the manager and results from the store.
type Handler struct {
	chains ChainInfo
	store  *store.Store
	events *store.EventLog
	mux    *http.ServeMux
}

// New creates a Handler wired to the given manager, store and event log and
// registers all routes.
func New(chains ChainInfo, st *store.Store, events *store.EventLog) http.Handler {
	h := &Handler{chains: chains, store: st, events: events, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/chains", h.listChains)
	h.mux.HandleFunc("/api/results", h.listResults)
	h.mux.HandleFunc("/api/events/recent", h.recentEvents)
	h.mux.HandleFunc("/healthz", h.healthz)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// listChains serves GET /api/chains: the live chains and their stages.
func (h *Handler) listChains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	names := h.chains.Chains()
	sort.Strings(names)
	out := make([]ChainResponse, 0, len(names))
	for _, name := range names {
		stages, _ := h.chains.ChainStages(name)
		out = append(out, ChainResponse{Name: name, Stages: stages})
	}
	jsonResp(w, http.StatusOK, out)
}

// listResults serves GET /api/results: the latest stored results, optionally
// filtered by ?chain= and ?device=.
func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainFilter := r.URL.Query().Get("chain")
	deviceFilter := r.URL.Query().Get("device")

	entries := h.store.List()
	out := make([]ResultResponse, 0, len(entries))
	for _, e := range entries {
		if chainFilter != "" && e.Chain != chainFilter {
			continue
		}
		if deviceFilter != "" && e.Device != deviceFilter {
			continue
		}
		out = append(out, toResultResponse(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Device < out[j].Device
	})
	jsonResp(w, http.StatusOK, out)
}

// recentEvents serves GET /api/events/recent: newest alarm events first,
// ?n= caps the count (default 50).
func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			jsonErr(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	jsonResp(w, http.StatusOK, h.events.Recent(n))
}

// healthz serves GET /healthz: liveness plus the live chain count.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthzResponse{
		Status: "ok",
		Chains: len(h.chains.Chains()),
	})
}

// --- helpers ----------------------------------------------------------------

func toResultResponse(e *store.Entry) ResultResponse {
	values := make(map[string]any, len(e.Result.Values))
	for k, v := range e.Result.Values {
		values[k] = v.Interface()
	}
	return ResultResponse{
		Chain:     e.Chain,
		Device:    e.Device,
		Values:    values,
		Timestamp: e.Result.Timestamp.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
