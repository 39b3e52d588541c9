package main

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// grid is a rounded table for the cache and endpoint listings. Columns are
// left aligned unless marked otherwise.
type grid struct {
	headers []string
	rows    []table.Row
	configs map[int]table.ColumnConfig
}

func newGrid(headers ...string) *grid {
	return &grid{headers: headers, configs: make(map[int]table.ColumnConfig)}
}

// numeric right-aligns the given zero-based columns.
func (g *grid) numeric(cols ...int) *grid {
	for _, c := range cols {
		cfg := g.column(c)
		cfg.Align = text.AlignRight
		g.configs[c] = cfg
	}
	return g
}

// wrap soft-wraps column col at width runes. Long endpoint URLs and list
// values would otherwise stretch the terminal.
func (g *grid) wrap(col, width int) *grid {
	cfg := g.column(col)
	cfg.WidthMax = width
	cfg.WidthMaxEnforcer = text.WrapSoft
	g.configs[col] = cfg
	return g
}

func (g *grid) column(col int) table.ColumnConfig {
	cfg, ok := g.configs[col]
	if !ok {
		cfg = table.ColumnConfig{Number: col + 1, AlignHeader: text.AlignLeft}
	}
	return cfg
}

// add appends a row, padding or truncating it to the header width.
func (g *grid) add(cells ...string) {
	row := make(table.Row, len(g.headers))
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	g.rows = append(g.rows, row)
}

// String renders the grid. An empty grid renders a single "(none)" row so
// scripts can tell "nothing configured" from a failure.
func (g *grid) String() string {
	if len(g.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(g.headers))
	for i, h := range g.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	if len(g.rows) == 0 {
		tw.AppendRow(table.Row{"(none)"})
	} else {
		tw.AppendRows(g.rows)
	}

	cols := make([]int, 0, len(g.configs))
	for c := range g.configs {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	configs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		configs = append(configs, g.configs[c])
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// printJSON writes v as indented JSON. HTML escaping is off so answering
// URLs keep their literal '&' separators.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
