package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flashdetail/internal/chip"
	"flashdetail/internal/remote"
	"flashdetail/internal/store"
	"flashdetail/pkg/logging/logging"
)

// Prober checks whether an endpoint base URL is reachable.
type Prober interface {
	Probe(ctx context.Context, base string) error
}

// AdminHandler serves the /v1/admin routes: endpoint list maintenance and
// direct cache edits.
type AdminHandler struct {
	Store     store.Store
	Endpoints *remote.Endpoints
	Prober    Prober
	// Persist, when set, is called after every endpoint edit so the lists
	// survive a restart.
	Persist func(*remote.Endpoints) error
}

func NewAdminHandler(st store.Store, eps *remote.Endpoints, prober Prober, persist func(*remote.Endpoints) error) *AdminHandler {
	return &AdminHandler{Store: st, Endpoints: eps, Prober: prober, Persist: persist}
}

type endpointsResponse struct {
	Family remote.Family `json:"family"`
	URLs   []string      `json:"urls"`
}

type endpointRequest struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

type endpointStatus struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// ListEndpoints handles GET /v1/admin/endpoints/{family}.
func (h *AdminHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	writeJSON(w, endpointsResponse{Family: family, URLs: h.Endpoints.List(family)})
}

// AddEndpoint handles POST /v1/admin/endpoints/{family} with {"url": ...}.
func (h *AdminHandler) AddEndpoint(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	var req endpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if _, err := h.Endpoints.Add(family, req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.persisted(w, r, family, http.StatusCreated)
}

// InsertEndpoint handles POST /v1/admin/endpoints/{family}/insert with
// {"index": n, "url": ...}.
func (h *AdminHandler) InsertEndpoint(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	var req endpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if _, err := h.Endpoints.Insert(family, req.Index, req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.persisted(w, r, family, http.StatusCreated)
}

// RemoveEndpoint handles DELETE /v1/admin/endpoints/{family}?url=... and
// clears the whole list when url is absent.
func (h *AdminHandler) RemoveEndpoint(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}

	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		n := h.Endpoints.Clear(family)
		logging.L(r.Context()).Info("endpoints cleared", zap.String("family", string(family)), zap.Int("removed", n))
	} else if !h.Endpoints.Remove(family, target) {
		writeError(w, http.StatusNotFound, "endpoint not configured")
		return
	}
	h.persisted(w, r, family, http.StatusOK)
}

// EndpointStatus handles GET /v1/admin/endpoints/{family}/status. Every
// candidate is probed concurrently; the response keeps list order.
func (h *AdminHandler) EndpointStatus(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	if h.Prober == nil {
		writeError(w, http.StatusNotImplemented, "probing not configured")
		return
	}

	urls := h.Endpoints.List(family)
	out := make([]endpointStatus, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			start := time.Now()
			err := h.Prober.Probe(r.Context(), u)
			out[i] = endpointStatus{URL: u, Reachable: err == nil, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				out[i].Error = err.Error()
			}
		}(i, u)
	}
	wg.Wait()

	writeJSON(w, out)
}

func (h *AdminHandler) family(w http.ResponseWriter, r *http.Request) (remote.Family, bool) {
	family, err := remote.ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return family, true
}

// persisted saves the lists if configured and answers with the new list.
func (h *AdminHandler) persisted(w http.ResponseWriter, r *http.Request, family remote.Family, status int) {
	if h.Persist != nil {
		if err := h.Persist(h.Endpoints); err != nil {
			logging.L(r.Context()).Error("persist endpoints failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "endpoint list changed but could not be saved")
			return
		}
	}
	writeJSONStatus(w, status, endpointsResponse{Family: family, URLs: h.Endpoints.List(family)})
}

type tablesResponse struct {
	Tables []string `json:"tables"`
}

type keysResponse struct {
	Table string   `json:"table"`
	Keys  []string `json:"keys"`
}

type recordResponse struct {
	Table   string          `json:"table"`
	Key     string          `json:"key"`
	Data    chip.Attributes `json:"data,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

type fieldEditRequest struct {
	Op    string `json:"op"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// ListTables handles GET /v1/admin/cache.
func (h *AdminHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Store.Tables(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, tablesResponse{Tables: tables})
}

// ListKeys handles GET /v1/admin/cache/{table}.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	keys, err := h.Store.Keys(r.Context(), table)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, keysResponse{Table: table, Keys: keys})
}

// DeleteTable handles DELETE /v1/admin/cache/{table}.
func (h *AdminHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := h.Store.DeleteTable(r.Context(), table); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearTable handles POST /v1/admin/cache/{table}/clear.
func (h *AdminHandler) ClearTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := h.Store.ClearTable(r.Context(), table); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecord handles GET /v1/admin/cache/{table}/{key}.
func (h *AdminHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")
	rec, ok, err := h.Store.Get(r.Context(), table, key)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, recordResponse{Table: table, Key: store.NormalizeKey(key), Data: rec.Data})
}

// DeleteRecord handles DELETE /v1/admin/cache/{table}/{key}.
func (h *AdminHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")
	if err := h.Store.Delete(r.Context(), table, key); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditRecord handles PATCH /v1/admin/cache/{table}/{key} with
// {"op": "add"|"replace"|"remove", "field": ..., "value": ...}.
func (h *AdminHandler) EditRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")

	var req fieldEditRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	op, err := store.ParseFieldOp(req.Op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	deleted, err := store.EditField(ctx, h.Store, table, key, op, req.Field, req.Value)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	logging.L(ctx).Info("cache record edited",
		zap.String("table", table),
		zap.String("key", key),
		zap.String("op", string(op)),
		zap.String("field", req.Field),
		zap.Bool("deleted", deleted),
	)

	resp := recordResponse{Table: table, Key: store.NormalizeKey(key), Deleted: deleted}
	if !deleted {
		rec, _, err := h.Store.Get(ctx, table, key)
		if err != nil {
			h.storeError(w, r, err)
			return
		}
		resp.Data = rec.Data
	}
	writeJSON(w, resp)
}

func (h *AdminHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrFieldExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.L(r.Context()).Error("cache store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache store failure")
	}
}
