package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"flashdetail/internal/decoder"
)

// PartNumber resolves a flash part number. Inputs that look like a flash ID
// (all hex, known vendor prefix) are resolved as IDs instead.
func (r *Resolver) PartNumber(ctx context.Context, pn string, opts Options) Result {
	return r.run("part_number", func() Result { return r.partNumber(ctx, pn, opts) })
}

// ID resolves a flash ID, preferring the local decoder over the remote
// service.
func (r *Resolver) ID(ctx context.Context, raw string, opts Options) Result {
	return r.run("id", func() Result { return r.id(ctx, raw, opts) })
}

func (r *Resolver) partNumber(ctx context.Context, pn string, opts Options) Result {
	pn = strings.TrimSpace(pn)
	if pn == "" {
		return failure(fmt.Errorf("%w: part number", ErrEmptyInput))
	}

	if hit, ok := r.cached(ctx, opts, TableFlash, pn); ok {
		return hit
	}

	if decoder.LooksLikeID(pn) {
		r.trace(opts, "input is a flash id", zap.String("input", pn))
		return r.id(ctx, pn, opts)
	}

	data, err := r.decodeEmbedded(ctx, opts, "decode?lang=chs&pn="+url.QueryEscape(pn))
	if err != nil {
		return failure(err)
	}
	return r.affirmative(ctx, opts, TableFlash, pn, data, SourceRemote)
}

func (r *Resolver) id(ctx context.Context, raw string, opts Options) Result {
	if strings.TrimSpace(raw) == "" {
		return failure(fmt.Errorf("%w: flash id", ErrEmptyInput))
	}
	id := decoder.NormalizeID(raw)

	if hit, ok := r.cached(ctx, opts, TableFlashID, id.String()); ok {
		return hit
	}

	if !opts.NoLocal {
		if data, ok := decoder.Decode(id); ok {
			r.trace(opts, "decoded locally", zap.String("id", id.String()), zap.String("prefix", id.Prefix()))
			return r.affirmative(ctx, opts, TableFlashID, id.String(), data, SourceLocal)
		}
		r.trace(opts, "no local decoder", zap.String("id", id.String()), zap.String("prefix", id.Prefix()))
	}

	data, err := r.decodeEmbedded(ctx, opts, "decodeId?lang=chs&id="+id.String())
	if err != nil {
		return failure(err)
	}
	return r.affirmative(ctx, opts, TableFlashID, id.String(), data, SourceRemote)
}
