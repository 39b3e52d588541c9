package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"flashdetail/internal/chip"
	"flashdetail/internal/remote"
	"flashdetail/internal/store"
)

// DefaultSearchCount is the result budget used when the caller gives none.
const DefaultSearchCount = 10

// SearchMode selects which legs of a search run.
type SearchMode string

const (
	SearchLocal  SearchMode = "local"
	SearchRemote SearchMode = "remote"
	SearchBoth   SearchMode = "both"
)

func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all":
		return SearchBoth, nil
	case "local":
		return SearchLocal, nil
	case "remote", "online":
		return SearchRemote, nil
	}
	return "", fmt.Errorf("unknown search mode %q (want local, remote or both)", s)
}

func (m SearchMode) local() bool  { return m != SearchRemote }
func (m SearchMode) remote() bool { return m != SearchLocal }

// Search finds part numbers containing query. Cached part numbers are
// scanned first; the remote search fills whatever budget remains. The
// combined list never holds more than count entries, and an empty list is
// a success. A failing remote leg is an error only when the local leg did
// not run.
func (r *Resolver) Search(ctx context.Context, query string, count int, mode SearchMode, opts Options) Result {
	return r.run("search", func() Result { return r.search(ctx, query, count, mode, opts) })
}

func (r *Resolver) search(ctx context.Context, query string, count int, mode SearchMode, opts Options) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return failure(fmt.Errorf("%w: search query", ErrEmptyInput))
	}
	if count <= 0 {
		count = DefaultSearchCount
	}
	if mode == "" {
		mode = SearchBoth
	}

	matches := make([]string, 0, count)
	source := SourceCache
	localRan := false

	if mode.local() && !opts.NoLocal {
		found, err := r.searchLocal(ctx, query, count)
		if err != nil {
			r.logger.Warn("local search failed", zap.String("query", query), zap.Error(err))
		} else {
			localRan = true
			matches = append(matches, found...)
		}
		r.trace(opts, "local search", zap.String("query", query), zap.Int("matches", len(found)))
	}

	if len(matches) < count && mode.remote() && !opts.NoRemote {
		found, err := r.searchRemote(ctx, query, count-len(matches), opts)
		switch {
		case err != nil && !localRan:
			return failure(err)
		case err != nil:
			r.logger.Warn("remote search failed", zap.String("query", query), zap.Error(err))
		case len(found) > 0:
			source = SourceRemote
			for _, m := range found {
				if len(matches) == count {
					break
				}
				matches = append(matches, m)
			}
		}
	}

	return Result{OK: true, Matches: matches, Source: source, Commit: noopHandle()}
}

// searchLocal scans cached part numbers for a case-insensitive substring
// match, rendering each as "<vendor> <PART NUMBER>".
func (r *Resolver) searchLocal(ctx context.Context, query string, limit int) ([]string, error) {
	keys, err := r.store.Keys(ctx, TableFlash)
	if err != nil {
		return nil, err
	}

	needle := store.NormalizeKey(query)
	var out []string
	for _, key := range keys {
		if len(out) == limit {
			break
		}
		if !strings.Contains(key, needle) {
			continue
		}

		vendor := chip.Unknown
		if rec, ok, err := r.store.Get(ctx, TableFlash, key); err == nil && ok {
			if v, known := rec.Data.String(chip.FieldVendor); known {
				vendor = v
			}
		}
		out = append(out, vendor+" "+strings.ToUpper(key))
	}
	return out, nil
}

func (r *Resolver) searchRemote(ctx context.Context, query string, limit int, opts Options) ([]string, error) {
	suffix := "searchPn?limit=" + strconv.Itoa(limit) + "&lang=chs&pn=" + url.QueryEscape(query)
	resp, err := r.fetch(ctx, opts, remote.FamilyDecode, suffix)
	if err != nil {
		return nil, err
	}

	env, err := remote.DecodeEmbedded(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if !env.Result || len(env.Data) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, fmt.Errorf("%w: search data is not a list: %w", ErrFormat, err)
	}

	out := make([]string, 0, len(items))
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
