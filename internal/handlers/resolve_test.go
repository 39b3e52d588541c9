package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"flashdetail/internal/chip"
	"flashdetail/internal/resolver"
)

type mockResolver struct {
	result     resolver.Result
	lookup     resolver.LookupResult
	lastInput  string
	lastOpts   resolver.Options
	lastCount  int
	lastMode   resolver.SearchMode
	searchHits int
}

func (m *mockResolver) record(input string, opts resolver.Options) resolver.Result {
	m.lastInput, m.lastOpts = input, opts
	return m.result
}

func (m *mockResolver) PartNumber(_ context.Context, pn string, opts resolver.Options) resolver.Result {
	return m.record(pn, opts)
}

func (m *mockResolver) ID(_ context.Context, raw string, opts resolver.Options) resolver.Result {
	return m.record(raw, opts)
}

func (m *mockResolver) DRAM(_ context.Context, pn string, opts resolver.Options) resolver.Result {
	return m.record(pn, opts)
}

func (m *mockResolver) Micron(_ context.Context, code string, opts resolver.Options) resolver.Result {
	return m.record(code, opts)
}

func (m *mockResolver) Search(_ context.Context, q string, n int, mode resolver.SearchMode, opts resolver.Options) resolver.Result {
	m.searchHits++
	m.lastCount, m.lastMode = n, mode
	return m.record(q, opts)
}

func (m *mockResolver) Lookup(_ context.Context, pn string, opts resolver.Options) resolver.LookupResult {
	m.lastInput, m.lastOpts = pn, opts
	return m.lookup
}

const testAdminToken = "s3cret"

func newResolveRouter(m *mockResolver) http.Handler {
	h := NewResolveHandler(m, testAdminToken)
	r := chi.NewRouter()
	r.Get("/v1/flash/pn/{pn}", h.FlashPartNumber)
	r.Get("/v1/dram/{pn}", h.DRAM)
	r.Get("/v1/lookup/{pn}", h.Lookup)
	r.Get("/v1/search", h.Search)
	return r
}

func TestResolveParsesOptions(t *testing.T) {
	m := &mockResolver{result: resolver.Result{OK: true, Data: chip.Attributes{"vendor": "Micron", "density": "1 TB"}, Source: resolver.SourceRemote}}
	router := newResolveRouter(m)

	req := httptest.NewRequest(http.MethodGet, "/v1/flash/pn/MT29F8T08?refresh=1&debug=true&local=false&remote=true&commit=never&url=alt.example", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	want := resolver.Options{Refresh: true, Debug: true, NoLocal: true, Commit: resolver.CommitNever, URL: "alt.example"}
	if m.lastInput != "MT29F8T08" || m.lastOpts != want {
		t.Fatalf("unexpected call %q %+v", m.lastInput, m.lastOpts)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["result"] != true || body["source"] != "remote" || body["committed"] != false {
		t.Fatalf("unexpected body %v", body)
	}
	if data, _ := body["data"].(map[string]any); data["vendor"] != "Micron" {
		t.Fatalf("unexpected data %v", body["data"])
	}
}

func TestResolveRejectsBadOptions(t *testing.T) {
	m := &mockResolver{}
	router := newResolveRouter(m)

	for _, target := range []string{
		"/v1/flash/pn/X?refresh=maybe",
		"/v1/flash/pn/X?commit=sometimes",
		"/v1/search?q=x&count=-1",
		"/v1/search?q=x&mode=sideways",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
	if m.lastInput != "" || m.searchHits != 0 {
		t.Fatalf("resolver must not be called for invalid requests")
	}
}

func TestURLOverrideNeedsAdminToken(t *testing.T) {
	m := &mockResolver{result: resolver.Result{OK: true}}
	router := newResolveRouter(m)

	for header, want := range map[string]int{
		"":              http.StatusForbidden,
		"Bearer wrong":  http.StatusForbidden,
		"Bearer s3cret": http.StatusOK,
	} {
		m.lastInput = ""
		req := httptest.NewRequest(http.MethodGet, "/v1/lookup/X?url=http://169.254.169.254", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("Authorization %q: want %d got %d", header, want, rr.Code)
		}
		if want == http.StatusForbidden && m.lastInput != "" {
			t.Fatalf("resolver must not be called for a rejected override")
		}
	}

	h := NewResolveHandler(m, "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/flash/pn/X?url=alt.example", nil)
	req.Header.Set("Authorization", "Bearer ")
	r := chi.NewRouter()
	r.Get("/v1/flash/pn/{pn}", h.FlashPartNumber)
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("without a configured token the override is closed, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/flash/pn/X", nil))
	if rr.Code != http.StatusOK || m.lastOpts.URL != "" {
		t.Fatalf("plain requests need no token, got %d %+v", rr.Code, m.lastOpts)
	}
}

func TestResolveStatusMapping(t *testing.T) {
	cases := map[string]int{
		resolver.KindEmptyInput: http.StatusBadRequest,
		resolver.KindNotFound:   http.StatusNotFound,
		resolver.KindTransport:  http.StatusBadGateway,
		resolver.KindFormat:     http.StatusBadGateway,
		resolver.KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		m := &mockResolver{result: resolver.Result{Kind: kind, Error: "x"}}
		rr := httptest.NewRecorder()
		newResolveRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/dram/X", nil))
		if rr.Code != want {
			t.Fatalf("kind %s: want %d got %d", kind, want, rr.Code)
		}
	}
}

func TestSearchDefaults(t *testing.T) {
	m := &mockResolver{result: resolver.Result{OK: true, Matches: []string{"Kioxia TH58"}}}
	rr := httptest.NewRecorder()
	newResolveRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/search?q=th58", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if m.lastInput != "th58" || m.lastCount != resolver.DefaultSearchCount || m.lastMode != resolver.SearchBoth {
		t.Fatalf("unexpected search call %q %d %q", m.lastInput, m.lastCount, m.lastMode)
	}
}

func TestLookupIncludesVia(t *testing.T) {
	m := &mockResolver{lookup: resolver.LookupResult{
		Result:   resolver.Result{OK: true, Data: chip.Attributes{"vendor": "Kioxia"}},
		Via:      resolver.ViaSearch,
		Resolved: "TH58TFT0DDLBA8H",
	}}
	rr := httptest.NewRecorder()
	newResolveRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/lookup/TH58TFT0", nil))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["via"] != "search" || body["resolved"] != "TH58TFT0DDLBA8H" || body["result"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}
