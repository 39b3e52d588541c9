package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"flashdetail/internal/handlers"
	"flashdetail/internal/remote"
	"flashdetail/internal/resolver"
	"flashdetail/internal/store"
)

type gateway struct {
	srv     *httptest.Server
	store   store.Store
	eps     *remote.Endpoints
	saved   atomic.Int32
	decodes atomic.Int32
}

func newGateway(t *testing.T, token string) *gateway {
	t.Helper()
	logger := zaptest.NewLogger(t)
	g := &gateway{}

	decode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.decodes.Add(1)
		if r.URL.Path != "/decode" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `<p>{"result":true,"data":{"vendor":"Kioxia","density":"1 TB","url":"x"}}</p>`)
	}))
	t.Cleanup(decode.Close)

	st, err := store.New(store.Config{Backend: store.BackendFile, Path: filepath.Join(t.TempDir(), "cache.json")}, nil, logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	g.store = st
	g.eps = remote.NewEndpoints(map[remote.Family][]string{remote.FamilyDecode: {decode.URL}})
	client := remote.NewClient(remote.Config{}, g.eps, logger)

	res := resolver.New(st, client, logger)
	admin := handlers.NewAdminHandler(st, g.eps, client, func(*remote.Endpoints) error {
		g.saved.Add(1)
		return nil
	})

	r := chi.NewRouter()
	SetupRouter(r, logger, Options{AdminToken: token}, handlers.NewResolveHandler(res, token), admin)
	g.srv = httptest.NewServer(r)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gateway) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, g.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestFlashIDCommitsMeaningfulLocalResult(t *testing.T) {
	g := newGateway(t, "")

	code, body := g.do(t, http.MethodGet, "/v1/flash/id/983C98B37672?remote=false", "", "")
	if code != http.StatusOK || body["source"] != "local" || body["committed"] != true {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if _, ok, _ := g.store.Get(context.Background(), resolver.TableFlashID, "983c98b37672"); !ok {
		t.Fatalf("meaningful result should be committed")
	}

	code, body = g.do(t, http.MethodGet, "/v1/flash/id/983C98B37672", "", "")
	if code != http.StatusOK || body["source"] != "cache" || body["committed"] != false {
		t.Fatalf("expected cached answer, got %d %v", code, body)
	}
}

func TestPartNumberCommitNeverLeavesCacheEmpty(t *testing.T) {
	g := newGateway(t, "")

	code, body := g.do(t, http.MethodGet, "/v1/flash/pn/TH58LJT1V24BA8H?commit=never", "", "")
	if code != http.StatusOK || body["committed"] != false || body["source"] != "remote" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if _, ok, _ := g.store.Get(context.Background(), resolver.TableFlash, "th58ljt1v24ba8h"); ok {
		t.Fatalf("commit=never must not write")
	}

	code, body = g.do(t, http.MethodGet, "/v1/flash/pn/TH58LJT1V24BA8H", "", "")
	if code != http.StatusOK || body["committed"] != true {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	rec, ok, _ := g.store.Get(context.Background(), resolver.TableFlash, "th58ljt1v24ba8h")
	if !ok || rec.Data["url"] != nil {
		t.Fatalf("expected record without url field, got %v", rec.Data)
	}
}

func TestAdminEndpoints(t *testing.T) {
	g := newGateway(t, "tok")

	if code, _ := g.do(t, http.MethodGet, "/v1/admin/endpoints/decode", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	code, body := g.do(t, http.MethodPost, "/v1/admin/endpoints/fd", `{"url":"b.example/"}`, "tok")
	if code != http.StatusCreated {
		t.Fatalf("add: %d %v", code, body)
	}
	code, body = g.do(t, http.MethodPost, "/v1/admin/endpoints/decode/insert", `{"index":0,"url":"a.example"}`, "tok")
	if code != http.StatusCreated {
		t.Fatalf("insert: %d %v", code, body)
	}

	urls := g.eps.List(remote.FamilyDecode)
	if len(urls) != 3 || urls[0] != "http://a.example" || urls[2] != "http://b.example" {
		t.Fatalf("unexpected list %v", urls)
	}

	if code, _ := g.do(t, http.MethodDelete, "/v1/admin/endpoints/decode?url=a.example", "", "tok"); code != http.StatusOK {
		t.Fatalf("remove: %d", code)
	}
	if code, _ := g.do(t, http.MethodDelete, "/v1/admin/endpoints/decode?url=a.example", "", "tok"); code != http.StatusNotFound {
		t.Fatalf("second remove should be 404, got %d", code)
	}
	if code, _ := g.do(t, http.MethodGet, "/v1/admin/endpoints/nope", "", "tok"); code != http.StatusNotFound {
		t.Fatalf("unknown family should be 404, got %d", code)
	}
	if n := g.saved.Load(); n != 3 {
		t.Fatalf("expected 3 persisted edits, got %d", n)
	}
}

func TestAdminCache(t *testing.T) {
	g := newGateway(t, "tok")
	ctx := context.Background()

	if code, _ := g.do(t, http.MethodPatch, "/v1/admin/cache/flash-detail/PN1", `{"op":"add","field":"vendor","value":"Kioxia"}`, "tok"); code != http.StatusOK {
		t.Fatalf("add field: %d", code)
	}
	if code, _ := g.do(t, http.MethodPatch, "/v1/admin/cache/flash-detail/pn1", `{"op":"add","field":"vendor","value":"X"}`, "tok"); code != http.StatusConflict {
		t.Fatalf("duplicate add should conflict, got %d", code)
	}

	code, body := g.do(t, http.MethodGet, "/v1/admin/cache/flash-detail/PN1", "", "tok")
	if code != http.StatusOK || body["key"] != "pn1" {
		t.Fatalf("get record: %d %v", code, body)
	}

	code, body = g.do(t, http.MethodGet, "/v1/admin/cache/flash-detail", "", "tok")
	if keys, _ := body["keys"].([]any); code != http.StatusOK || len(keys) != 1 {
		t.Fatalf("list keys: %d %v", code, body)
	}

	code, body = g.do(t, http.MethodPatch, "/v1/admin/cache/flash-detail/pn1", `{"op":"remove","field":"vendor"}`, "tok")
	if code != http.StatusOK || body["deleted"] != true {
		t.Fatalf("removing the last field deletes the record: %d %v", code, body)
	}
	if code, _ := g.do(t, http.MethodGet, "/v1/admin/cache/flash-detail/pn1", "", "tok"); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}

	if err := g.store.Set(ctx, "dram-detail", "k", store.Record{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if code, _ := g.do(t, http.MethodPost, "/v1/admin/cache/dram-detail/clear", "", "tok"); code != http.StatusNoContent {
		t.Fatalf("clear: %d", code)
	}
	if code, _ := g.do(t, http.MethodDelete, "/v1/admin/cache/dram-detail", "", "tok"); code != http.StatusNoContent {
		t.Fatalf("delete table: %d", code)
	}
	if code, _ := g.do(t, http.MethodDelete, "/v1/admin/cache/dram-detail", "", "tok"); code != http.StatusNotFound {
		t.Fatalf("deleting a missing table should be 404, got %d", code)
	}
}

func TestHealthz(t *testing.T) {
	g := newGateway(t, "")
	resp, err := http.Get(g.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestAdminRoutesNeedConfiguredToken(t *testing.T) {
	g := newGateway(t, "")

	for _, path := range []string{"/v1/admin/cache", "/v1/admin/endpoints/decode"} {
		if code, _ := g.do(t, http.MethodGet, path, "", ""); code != http.StatusNotFound {
			t.Fatalf("%s must not be mounted without admin_token, got %d", path, code)
		}
	}
	if code, _ := g.do(t, http.MethodPost, "/v1/admin/endpoints/decode", `{"url":"evil.example"}`, ""); code != http.StatusNotFound {
		t.Fatalf("endpoint edits must not be reachable, got %d", code)
	}
	if n := g.saved.Load(); n != 0 {
		t.Fatalf("no endpoint list may be persisted, got %d saves", n)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	g := newGateway(t, "tok")

	big := `{"op":"add","field":"note","value":"` + strings.Repeat("x", 70*1024) + `"}`
	if code, _ := g.do(t, http.MethodPatch, "/v1/admin/cache/flash-detail/pn1", big, "tok"); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for an oversized body, got %d", code)
	}
	if _, ok, _ := g.store.Get(context.Background(), "flash-detail", "pn1"); ok {
		t.Fatalf("oversized edit must not be applied")
	}
}
