package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestGetFallsBackInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "failing")
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer failing.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "good")
		if r.URL.Path != "/decode" || r.URL.Query().Get("pn") != "ABC" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`<html><body><p>{"result":true}</p></body></html>`))
	}))
	defer good.Close()

	never := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "never")
	}))
	defer never.Close()

	eps := NewEndpoints(map[Family][]string{FamilyDecode: {failing.URL, good.URL + "/", never.URL}})
	c := NewClient(Config{}, eps, zaptest.NewLogger(t))

	resp, err := c.Get(context.Background(), FamilyDecode, "decode?lang=chs&pn=ABC", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.URL != good.URL+"/decode?lang=chs&pn=ABC" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(order) != 2 || order[0] != "failing" || order[1] != "good" {
		t.Fatalf("unexpected call order %v", order)
	}
}

func TestGetOverrideBypassesList(t *testing.T) {
	t.Parallel()

	var listed atomic.Int32
	listedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
	}))
	defer listedSrv.Close()

	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer override.Close()

	eps := NewEndpoints(map[Family][]string{FamilyDecode: {listedSrv.URL}})
	c := NewClient(Config{}, eps, zaptest.NewLogger(t))

	_, err := c.Get(context.Background(), FamilyDecode, "decode", override.URL)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if listed.Load() != 0 {
		t.Fatalf("override must not fall back to the configured list")
	}
}

func TestGetAllFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(Config{}, NewEndpoints(map[Family][]string{FamilyExtra: {srv.URL, srv.URL}}), zaptest.NewLogger(t))
	if _, err := c.Get(context.Background(), FamilyExtra, "DRAM?param=x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	empty := NewClient(Config{}, nil, zaptest.NewLogger(t))
	if _, err := empty.Get(context.Background(), FamilyDecode, "decode", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty list, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer up.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	c := NewClient(Config{}, nil, zaptest.NewLogger(t))
	if err := c.Probe(context.Background(), up.URL); err != nil {
		t.Fatalf("404 should count as reachable: %v", err)
	}
	if err := c.Probe(context.Background(), broken.URL); err == nil {
		t.Fatalf("expected probe error for 500")
	}
}

func TestDecodeEmbedded(t *testing.T) {
	t.Parallel()

	env, err := DecodeEmbedded([]byte(`<html><head><title>x</title></head><body><p> {"result": true, "data": {"vendor": "Kioxia"}} </p></body></html>`))
	if err != nil {
		t.Fatalf("DecodeEmbedded: %v", err)
	}
	if !env.Result || string(env.Data) != `{"vendor": "Kioxia"}` {
		t.Fatalf("unexpected envelope %+v", env)
	}

	env, err = DecodeEmbedded([]byte(`<p>{&quot;result&quot;:false,&quot;error&quot;:&quot;no match&quot;}</p>`))
	if err != nil {
		t.Fatalf("escaped payload: %v", err)
	}
	if env.Result || env.Error != "no match" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	if _, err := DecodeEmbedded([]byte(`<div>{"result":true}</div>`)); !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
	if _, err := DecodeEmbedded([]byte(`<p>not json</p>`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestEndpointsRegistry(t *testing.T) {
	t.Parallel()

	e := NewEndpoints(map[Family][]string{FamilyDecode: {"a.example/", "https://b.example"}})
	got := e.List(FamilyDecode)
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected normalized list %v", got)
	}

	if _, err := e.Insert(FamilyDecode, 0, "first.example"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := e.Insert(FamilyDecode, -1, "c.example"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := e.Insert(FamilyDecode, 99, "last.example"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	want := []string{"http://first.example", "http://a.example", "http://c.example", "https://b.example", "http://last.example"}
	got = e.List(FamilyDecode)
	if len(got) != len(want) {
		t.Fatalf("unexpected list %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: want %q got %q (%v)", i, want[i], got[i], got)
		}
	}

	if !e.Remove(FamilyDecode, "c.example") {
		t.Fatalf("expected Remove to find normalized url")
	}
	if e.Remove(FamilyDecode, "c.example") {
		t.Fatalf("second Remove should report absence")
	}
	if _, err := e.Add(FamilyExtra, "  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if n := e.Clear(FamilyDecode); n != 4 {
		t.Fatalf("Clear returned %d", n)
	}
	if len(e.List(FamilyDecode)) != 0 {
		t.Fatalf("list should be empty after Clear")
	}

	if f, err := ParseFamily("FD"); err != nil || f != FamilyDecode {
		t.Fatalf("ParseFamily(FD) = %v, %v", f, err)
	}
	if _, err := ParseFamily("other"); err == nil {
		t.Fatalf("expected error for unknown family")
	}
}
