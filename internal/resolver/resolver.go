// Package resolver turns part numbers, flash IDs and DRAM codes into chip
// attributes. Each lookup tries the cache, then the local decoder where one
// applies, then the remote decode services, strictly in that order.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"flashdetail/internal/chip"
	"flashdetail/internal/metrics"
	"flashdetail/internal/remote"
	"flashdetail/internal/store"
)

// Cache tables, one per record type.
const (
	TableFlash   = "flash-detail"
	TableFlashID = "flash-id-detail"
	TableDRAM    = "dram-detail"
	TableMicron  = "micron-pn-decode"
)

// Source names the tier that produced a result.
type Source string

const (
	SourceCache  Source = "cache"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Options are per-call switches. The zero value is a normal lookup.
type Options struct {
	Refresh  bool // skip the cache read
	Debug    bool // log the resolution trace at info level
	Commit   CommitPolicy
	NoLocal  bool
	NoRemote bool
	// URL replaces the configured endpoint list for this call.
	URL string
}

// Result is the uniform outcome of every resolver operation. Commit is never
// nil; negative results carry a no-op handle.
type Result struct {
	OK      bool            `json:"result"`
	Kind    string          `json:"kind,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    chip.Attributes `json:"data,omitempty"`
	Matches []string        `json:"matches,omitempty"`
	Source  Source          `json:"source,omitempty"`
	// Committed reports that this result was written to the cache.
	Committed bool `json:"committed"`
	// Warning carries a cache write failure on an otherwise good answer.
	Warning string `json:"warning,omitempty"`

	Err    error         `json:"-"`
	Commit *CommitHandle `json:"-"`
}

// Meaningful reports whether r is worth presenting and caching.
func (r Result) Meaningful() bool {
	if !r.OK {
		return false
	}
	return r.Data.Meaningful() || len(r.Matches) > 0
}

func failure(err error) Result {
	return Result{Kind: Kind(err), Error: err.Error(), Err: err, Commit: noopHandle()}
}

// Fetcher is the part of remote.Client the resolver needs.
type Fetcher interface {
	Get(ctx context.Context, family remote.Family, suffix, override string) (*remote.Response, error)
}

// Resolver is safe for concurrent use; the store is its only shared state.
type Resolver struct {
	store  store.Store
	client Fetcher
	logger *zap.Logger
}

func New(st store.Store, client Fetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: st, client: client, logger: logger.Named("resolver")}
}

// run wraps one public operation: panics become internal results and every
// outcome is counted.
func (r *Resolver) run(op string, fn func() Result) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("resolver panic",
				zap.String("operation", op),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			res = failure(fmt.Errorf("%w: %v", ErrInternal, p))
		}
		if res.Commit == nil {
			res.Commit = noopHandle()
		}

		source, outcome := string(res.Source), "ok"
		if source == "" {
			source = "none"
		}
		if !res.OK {
			outcome = res.Kind
		}
		metrics.ResolutionsTotal.WithLabelValues(op, source, outcome).Inc()
	}()
	return fn()
}

// trace logs a resolution step, promoted to info when the caller asked for
// debug output.
func (r *Resolver) trace(opts Options, msg string, fields ...zap.Field) {
	if opts.Debug {
		r.logger.Info(msg, fields...)
		return
	}
	r.logger.Debug(msg, fields...)
}

// cached returns a hit from table unless the call forces a refresh. Read
// failures are logged and treated as a miss.
func (r *Resolver) cached(ctx context.Context, opts Options, table, key string) (Result, bool) {
	if opts.Refresh {
		r.trace(opts, "cache skipped", zap.String("table", table), zap.String("key", key))
		return Result{}, false
	}

	rec, ok, err := r.store.Get(ctx, table, key)
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("table", table), zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	r.trace(opts, "cache lookup", zap.String("table", table), zap.String("key", key), zap.Bool("hit", ok))
	if !ok {
		return Result{}, false
	}
	return Result{OK: true, Data: rec.Data, Source: SourceCache, Commit: noopHandle()}, true
}

// affirmative builds a successful result and its commit handle according to
// the call's policy.
func (r *Resolver) affirmative(ctx context.Context, opts Options, table, key string, data chip.Attributes, source Source) Result {
	res := Result{OK: true, Data: data, Source: source}

	switch opts.Commit {
	case CommitNever:
		res.Commit = noopHandle()
	case CommitAlways:
		res.Commit = newCommitHandle(r.store, table, key, data)
		if err := res.Commit.Commit(ctx); err != nil {
			r.logger.Warn("commit failed", zap.String("table", table), zap.String("key", key), zap.Error(err))
			res.Warning = err.Error()
		} else {
			res.Committed = true
		}
	default:
		res.Commit = newCommitHandle(r.store, table, key, data)
	}
	return res
}

// fetch asks family for suffix and maps client failures to ErrTransport.
func (r *Resolver) fetch(ctx context.Context, opts Options, family remote.Family, suffix string) (*remote.Response, error) {
	if opts.NoRemote {
		return nil, fmt.Errorf("%w: remote lookup disabled", ErrNotFound)
	}
	if r.client == nil {
		return nil, fmt.Errorf("%w: no remote client configured", ErrTransport)
	}

	r.trace(opts, "remote request", zap.String("family", string(family)), zap.String("suffix", suffix))
	resp, err := r.client.Get(ctx, family, suffix, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	r.trace(opts, "remote response", zap.String("url", resp.URL), zap.Int("bytes", len(resp.Body)))
	return resp, nil
}

// decodeEmbedded fetches a decode-service page and returns its data object.
// The answering URL is attached as a transient field.
func (r *Resolver) decodeEmbedded(ctx context.Context, opts Options, suffix string) (chip.Attributes, error) {
	resp, err := r.fetch(ctx, opts, remote.FamilyDecode, suffix)
	if err != nil {
		return nil, err
	}

	env, err := remote.DecodeEmbedded(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if !env.Result {
		return nil, notFound(env.Error)
	}

	data := chip.Attributes{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: data is not an object: %w", ErrFormat, err)
		}
	}
	data.Set(chip.FieldURL, resp.URL)
	return data, nil
}

func notFound(detail string) error {
	if detail = strings.TrimSpace(detail); detail != "" {
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	}
	return ErrNotFound
}
