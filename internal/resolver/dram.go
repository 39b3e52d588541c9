package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flashdetail/internal/chip"
	"flashdetail/internal/decoder"
	"flashdetail/internal/remote"
)

// shortCodeLength is the length of a Micron FBGA code that needs expanding
// before a DRAM lookup.
const shortCodeLength = 5

// micronPartNumber is the field of an expansion record that holds the full
// part number.
const micronPartNumber = "part-number"

// DRAM resolves a DRAM part number. Five-character inputs are Micron FBGA
// codes: they are expanded first and the expansion is always persisted.
func (r *Resolver) DRAM(ctx context.Context, pn string, opts Options) Result {
	return r.run("dram", func() Result { return r.dram(ctx, pn, opts) })
}

// Micron expands a Micron FBGA code into its full record. The full part
// number is available through ExpandedPartNumber.
func (r *Resolver) Micron(ctx context.Context, code string, opts Options) Result {
	return r.run("micron", func() Result { return r.micron(ctx, code, opts) })
}

// ExpandedPartNumber returns the full part number of a Micron expansion.
func ExpandedPartNumber(data chip.Attributes) (string, bool) {
	v, ok := data.Get(chip.Field(micronPartNumber))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func (r *Resolver) dram(ctx context.Context, pn string, opts Options) Result {
	pn = strings.TrimSpace(pn)
	if pn == "" {
		return failure(fmt.Errorf("%w: dram part number", ErrEmptyInput))
	}

	effective := pn
	if utf8.RuneCountInString(pn) == shortCodeLength {
		full, err := r.expand(ctx, pn, opts)
		if err != nil {
			return failure(err)
		}
		r.trace(opts, "expanded micron code", zap.String("code", pn), zap.String("part_number", full))
		effective = full
	}

	if hit, ok := r.cached(ctx, opts, TableDRAM, effective); ok {
		return hit
	}

	resp, err := r.fetch(ctx, opts, remote.FamilyExtra, "DRAM?param="+url.QueryEscape(effective))
	if err != nil {
		return failure(err)
	}
	if !gjson.ValidBytes(resp.Body) {
		return failure(fmt.Errorf("%w: DRAM response is not JSON", ErrFormat))
	}
	doc := gjson.ParseBytes(resp.Body)
	if !doc.Get("result").Bool() {
		return failure(fmt.Errorf("%w: no DRAM record for %s", ErrNotFound, effective))
	}

	lower := cases.Lower(language.Und)
	data := chip.Attributes{}
	doc.Get("detail").ForEach(func(k, v gjson.Result) bool {
		data[lower.String(k.String())] = v.Value()
		return true
	})

	vendor := strings.TrimSpace(doc.Get("Vendor").String())
	if vendor == "" {
		vendor = chip.Unknown
	}
	data.Set(chip.FieldVendor, vendor)

	if density, ok := data.String(chip.FieldDensity); ok {
		width, _ := data.String(chip.FieldWidth)
		data.Set(chip.FieldCapacity, decoder.FormatDensity(density, decoder.ParseWidth(width)))
	}
	data.Set(chip.FieldURL, resp.URL)

	return r.affirmative(ctx, opts, TableDRAM, effective, data, SourceRemote)
}

// expand resolves a short code through the Micron path and commits the
// expansion regardless of the caller's policy. A URL override names the
// caller's endpoint, not the Micron one, so it is not passed on.
func (r *Resolver) expand(ctx context.Context, code string, opts Options) (string, error) {
	sub := opts
	sub.Commit = CommitAffirmative
	sub.URL = ""

	m := r.micron(ctx, code, sub)
	if !m.OK {
		return "", fmt.Errorf("expand %s: %w", code, m.Err)
	}
	full, ok := ExpandedPartNumber(m.Data)
	if !ok {
		return "", fmt.Errorf("%w: expansion of %s has no %s", ErrNotFound, code, micronPartNumber)
	}
	if err := m.Commit.Commit(ctx); err != nil {
		r.logger.Warn("persist micron expansion failed", zap.String("code", code), zap.Error(err))
	}
	return full, nil
}

func (r *Resolver) micron(ctx context.Context, code string, opts Options) Result {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return failure(fmt.Errorf("%w: micron code", ErrEmptyInput))
	}

	if hit, ok := r.cached(ctx, opts, TableMicron, code); ok {
		return hit
	}

	resp, err := r.fetch(ctx, opts, remote.FamilyExtra, "micron-online?param="+url.QueryEscape(code))
	if err != nil {
		return failure(err)
	}
	if !gjson.ValidBytes(resp.Body) {
		return failure(fmt.Errorf("%w: micron response is not JSON", ErrFormat))
	}
	doc := gjson.ParseBytes(resp.Body)

	// a missing result flag counts as affirmative
	if res := doc.Get("result"); res.Exists() && !res.Bool() {
		return failure(notFound(doc.Get("error").String()))
	}

	detail := doc.Get("details.0")
	if !detail.Exists() {
		detail = doc.Get("detail")
	}
	if !detail.IsObject() || len(detail.Map()) == 0 {
		return failure(fmt.Errorf("%w: no micron details for %s", ErrNotFound, code))
	}

	data := chip.Attributes{}
	if err := json.Unmarshal([]byte(detail.Raw), &data); err != nil {
		return failure(fmt.Errorf("%w: %w", ErrFormat, err))
	}
	data.Set(chip.FieldURL, resp.URL)

	return r.affirmative(ctx, opts, TableMicron, code, data, SourceRemote)
}
