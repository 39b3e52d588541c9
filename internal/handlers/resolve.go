package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flashdetail/internal/middleware"
	"flashdetail/internal/resolver"
	"flashdetail/pkg/logging/logging"
)

// Resolver is the resolution surface the HTTP handlers call into.
type Resolver interface {
	PartNumber(ctx context.Context, pn string, opts resolver.Options) resolver.Result
	ID(ctx context.Context, raw string, opts resolver.Options) resolver.Result
	DRAM(ctx context.Context, pn string, opts resolver.Options) resolver.Result
	Micron(ctx context.Context, code string, opts resolver.Options) resolver.Result
	Search(ctx context.Context, query string, count int, mode resolver.SearchMode, opts resolver.Options) resolver.Result
	Lookup(ctx context.Context, pn string, opts resolver.Options) resolver.LookupResult
}

// ResolveHandler serves the /v1 lookup routes. Meaningful results are
// committed to the cache unless the request says commit=never.
//
// The url override makes the gateway fetch an arbitrary address, so it is
// honored only for requests carrying AdminToken.
type ResolveHandler struct {
	Resolver   Resolver
	AdminToken string
}

func NewResolveHandler(r Resolver, adminToken string) *ResolveHandler {
	return &ResolveHandler{Resolver: r, AdminToken: adminToken}
}

var errOverrideForbidden = errors.New("url override requires the admin token")

// FlashPartNumber handles GET /v1/flash/pn/{pn}.
func (h *ResolveHandler) FlashPartNumber(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "part_number", func(ctx context.Context, opts resolver.Options) resolver.Result {
		return h.Resolver.PartNumber(ctx, chi.URLParam(r, "pn"), opts)
	})
}

// FlashID handles GET /v1/flash/id/{id}.
func (h *ResolveHandler) FlashID(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "id", func(ctx context.Context, opts resolver.Options) resolver.Result {
		return h.Resolver.ID(ctx, chi.URLParam(r, "id"), opts)
	})
}

// DRAM handles GET /v1/dram/{pn}.
func (h *ResolveHandler) DRAM(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "dram", func(ctx context.Context, opts resolver.Options) resolver.Result {
		return h.Resolver.DRAM(ctx, chi.URLParam(r, "pn"), opts)
	})
}

// Micron handles GET /v1/micron/{code}.
func (h *ResolveHandler) Micron(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "micron", func(ctx context.Context, opts resolver.Options) resolver.Result {
		return h.Resolver.Micron(ctx, chi.URLParam(r, "code"), opts)
	})
}

// Search handles GET /v1/search?q=&count=&mode=.
func (h *ResolveHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	count := resolver.DefaultSearchCount
	if raw := strings.TrimSpace(q.Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}
	mode, err := resolver.ParseSearchMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.serve(w, r, "search", func(ctx context.Context, opts resolver.Options) resolver.Result {
		return h.Resolver.Search(ctx, q.Get("q"), count, mode, opts)
	})
}

// Lookup handles GET /v1/lookup/{pn}.
func (h *ResolveHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	opts, err := h.parseOptions(r)
	if err != nil {
		writeOptionsError(w, err)
		return
	}

	res := h.Resolver.Lookup(ctx, chi.URLParam(r, "pn"), opts)
	commitIfMeaningful(ctx, logger, &res.Result, opts)

	logger.Info("resolution",
		zap.String("operation", "lookup"),
		zap.Bool("ok", res.OK),
		zap.String("kind", res.Kind),
		zap.String("source", string(res.Source)),
		zap.String("via", string(res.Via)),
		zap.String("resolved", res.Resolved),
		zap.Bool("committed", res.Committed),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSONStatus(w, statusFor(res.Result), res)
}

func (h *ResolveHandler) serve(w http.ResponseWriter, r *http.Request, op string, call func(context.Context, resolver.Options) resolver.Result) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	opts, err := h.parseOptions(r)
	if err != nil {
		writeOptionsError(w, err)
		return
	}

	res := call(ctx, opts)
	commitIfMeaningful(ctx, logger, &res, opts)

	logger.Info("resolution",
		zap.String("operation", op),
		zap.Bool("ok", res.OK),
		zap.String("kind", res.Kind),
		zap.String("source", string(res.Source)),
		zap.Bool("committed", res.Committed),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSONStatus(w, statusFor(res), res)
}

// commitIfMeaningful logs store failures; the answer is still served with
// the failure in its warning field.
func commitIfMeaningful(ctx context.Context, logger *zap.Logger, res *resolver.Result, opts resolver.Options) {
	if err := resolver.CommitMeaningful(ctx, res, opts.Commit); err != nil {
		logger.Warn("commit failed", zap.Error(err))
	}
}

// parseOptions reads refresh, debug, commit, local, remote and url from the
// query string.
func (h *ResolveHandler) parseOptions(r *http.Request) (resolver.Options, error) {
	q := r.URL.Query()
	var opts resolver.Options

	flags := []struct {
		name string
		dst  *bool
		neg  bool
	}{
		{"refresh", &opts.Refresh, false},
		{"debug", &opts.Debug, false},
		{"local", &opts.NoLocal, true},
		{"remote", &opts.NoRemote, true},
	}
	for _, f := range flags {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%s must be a boolean", f.name)
		}
		*f.dst = v != f.neg
	}

	policy, err := resolver.ParseCommitPolicy(q.Get("commit"))
	if err != nil {
		return opts, err
	}
	opts.Commit = policy

	if override := strings.TrimSpace(q.Get("url")); override != "" {
		if !middleware.HasToken(r, h.AdminToken) {
			logging.L(r.Context()).Warn("url override rejected", zap.String("url", override))
			return opts, errOverrideForbidden
		}
		opts.URL = override
	}
	return opts, nil
}

func writeOptionsError(w http.ResponseWriter, err error) {
	if errors.Is(err, errOverrideForbidden) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func statusFor(res resolver.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Kind {
	case resolver.KindEmptyInput:
		return http.StatusBadRequest
	case resolver.KindNotFound:
		return http.StatusNotFound
	case resolver.KindTransport, resolver.KindFormat:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
