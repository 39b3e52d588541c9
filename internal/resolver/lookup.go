package resolver

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Via records which step of Lookup produced the answer.
type Via string

const (
	ViaDirect Via = "direct"
	ViaSearch Via = "search"
	ViaMicron Via = "micron"
)

// LookupResult is a part-number result plus how it was reached.
type LookupResult struct {
	Result
	Via      Via    `json:"via,omitempty"`
	Resolved string `json:"resolved,omitempty"`
}

// lookupSearchCount bounds the search step of Lookup.
const lookupSearchCount = 5

// Lookup resolves pn as a part number, falling back to the best search
// match and then, for five-character inputs, to a Micron expansion. The
// returned result is the first affirmative one, or the direct failure.
func (r *Resolver) Lookup(ctx context.Context, pn string, opts Options) LookupResult {
	var out LookupResult
	out.Result = r.run("lookup", func() Result {
		res, via, resolved := r.lookup(ctx, pn, opts)
		out.Via, out.Resolved = via, resolved
		return res
	})
	return out
}

func (r *Resolver) lookup(ctx context.Context, pn string, opts Options) (Result, Via, string) {
	pn = strings.TrimSpace(pn)

	direct := r.partNumber(ctx, pn, opts)
	if direct.OK || direct.Kind == KindEmptyInput {
		return direct, ViaDirect, pn
	}

	mode := SearchBoth
	switch {
	case opts.NoLocal && opts.NoRemote:
		mode = ""
	case opts.NoLocal:
		mode = SearchRemote
	case opts.NoRemote:
		mode = SearchLocal
	}
	if mode != "" {
		found := r.search(ctx, pn, lookupSearchCount, mode, opts)
		if found.OK && len(found.Matches) > 0 {
			fields := strings.Fields(found.Matches[0])
			candidate := fields[len(fields)-1]
			r.trace(opts, "lookup via search", zap.String("input", pn), zap.String("candidate", candidate))
			if !strings.EqualFold(candidate, pn) {
				if res := r.partNumber(ctx, candidate, opts); res.OK {
					return res, ViaSearch, candidate
				}
			}
		}
	}

	if utf8.RuneCountInString(pn) == shortCodeLength {
		mopts := opts
		mopts.URL = ""
		m := r.micron(ctx, pn, mopts)
		if full, ok := ExpandedPartNumber(m.Data); m.OK && ok {
			r.trace(opts, "lookup via micron", zap.String("input", pn), zap.String("part_number", full))
			if res := r.partNumber(ctx, full, opts); res.OK {
				if opts.Commit != CommitNever {
					if err := m.Commit.Commit(ctx); err != nil {
						r.logger.Warn("persist micron expansion failed", zap.String("code", pn), zap.Error(err))
					}
				}
				return res, ViaMicron, full
			}
		}
	}

	return direct, "", ""
}
