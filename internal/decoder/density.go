package decoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	mbPerGB = 1024
	mbPerTB = 1024 * 1024
)

// DefaultWidth is the bus width assumed for DRAM densities when none is known.
const DefaultWidth = 8

// FormatDensity converts a raw density to bytes and renders it in the
// largest of TB/GB/MB that keeps the mantissa >= 1.
//
// Accepted forms: "<n>Tb", "<n>Gb", "<n>Mb" (bits), "<n>G" and "<n>M" (DRAM
// per-width values, multiplied by width/8) and a bare number (Mb). Anything
// after the first comma is ignored. Unparseable input is returned as-is.
func FormatDensity(raw string, width int) string {
	mb, err := densityMB(raw, width)
	if err != nil {
		return raw
	}
	return formatMB(mb)
}

// TotalDensity multiplies a per-die density in bits by the die count.
func TotalDensity(perDie string, dies int) string {
	if dies < 1 {
		dies = 1
	}
	mb, err := densityMB(perDie, DefaultWidth)
	if err != nil {
		return Unknown
	}
	return formatMB(mb * float64(dies))
}

// ParseWidth reads a DRAM width such as "x16" or "16".
func ParseWidth(s string) int {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "x")
	w, err := strconv.Atoi(s)
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

func densityMB(raw string, width int) (float64, error) {
	value := strings.TrimSpace(strings.SplitN(strings.TrimSpace(raw), ",", 2)[0])
	if value == "" {
		return 0, fmt.Errorf("empty density")
	}
	if width <= 0 {
		width = DefaultWidth
	}

	var num string
	var factor float64
	switch {
	case strings.HasSuffix(value, "Tb"):
		num, factor = value[:len(value)-2], mbPerTB/8.0
	case strings.HasSuffix(value, "Gb"):
		num, factor = value[:len(value)-2], mbPerGB/8.0
	case strings.HasSuffix(value, "Mb"):
		num, factor = value[:len(value)-2], 1/8.0
	case strings.HasSuffix(value, "G"):
		num, factor = value[:len(value)-1], float64(mbPerGB*width)/8.0
	case strings.HasSuffix(value, "M"):
		num, factor = value[:len(value)-1], float64(width)/8.0
	default:
		num, factor = value, 1/8.0
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("parse density %q: %w", raw, err)
	}
	return n * factor, nil
}

func formatMB(mb float64) string {
	switch {
	case mb >= mbPerTB:
		return formatUnit(mb/mbPerTB, "TB")
	case mb >= mbPerGB:
		return formatUnit(mb/mbPerGB, "GB")
	default:
		return formatUnit(mb, "MB")
	}
}

func formatUnit(v float64, unit string) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64) + " " + unit
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + " " + unit
}
