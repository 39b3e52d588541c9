package decoder

import (
	"testing"

	"flashdetail/internal/chip"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]Identifier{
		"xy12":                    "120000000000",
		"98 3c 98 b3 76 72":       "983C98B37672",
		"ad-de-14-a7-42-4a-ff-ff": "ADDE14A7424A",
		"":                        "000000000000",
		"zz":                      "000000000000",
		"2ca4e9a2a8a8":            "2CA4E9A2A8A8",
	}
	for in, want := range cases {
		got := NormalizeID(in)
		if got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
		if len(got) != IDLength {
			t.Fatalf("NormalizeID(%q) has length %d", in, len(got))
		}
	}
}

func TestLooksLikeID(t *testing.T) {
	cases := map[string]bool{
		"983C98B37672":   true,
		"2c84643ca9":     true,
		"ecd7":           true,
		"MT29F256G08CBC": false,
		"12345678":       false,
		"9":              false,
		"98 3C":          false,
		"TH58TFT0DDLBA8": false,
	}
	for in, want := range cases {
		if got := LooksLikeID(in); got != want {
			t.Fatalf("LooksLikeID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDecodeToshiba(t *testing.T) {
	attrs, ok := Decode(NormalizeID("983C98B37672"))
	if !ok {
		t.Fatalf("expected local decode for Toshiba prefix")
	}

	want := map[chip.Field]string{
		chip.FieldID:          "983C98B37672",
		chip.FieldVendor:      "Toshiba/Kioxia",
		chip.FieldDensity:     "32 GB",
		chip.FieldDie:         "1",
		chip.FieldCellLevel:   "TLC",
		chip.FieldPageSize:    "16",
		chip.FieldTotalPlane:  "2",
		chip.FieldPlane:       "2",
		chip.FieldProcessNode: "BiCS3",
	}
	assertFields(t, attrs, want)
}

func TestDecodeSanDiskUnknownFields(t *testing.T) {
	// device code FF and plane digit 0 are not in the tables
	attrs, ok := Decode(NormalizeID("45FF98B37077"))
	if !ok {
		t.Fatalf("expected local decode for SanDisk prefix")
	}
	if v, _ := attrs[string(chip.FieldVendor)].(string); v != "SanDisk/WD" {
		t.Fatalf("unexpected vendor %q", v)
	}
	for _, f := range []chip.Field{chip.FieldDensity, chip.FieldTotalPlane, chip.FieldPlane, chip.FieldProcessNode} {
		if attrs[string(f)] != Unknown {
			t.Fatalf("expected %s to be unknown, got %v", f, attrs[string(f)])
		}
	}
}

func TestDecodeHynix(t *testing.T) {
	attrs, ok := Decode(NormalizeID("ADDE14A7424A"))
	if !ok {
		t.Fatalf("expected local decode for Hynix prefix")
	}
	assertFields(t, attrs, map[chip.Field]string{
		chip.FieldVendor:      "SK Hynix",
		chip.FieldDensity:     "8 GB",
		chip.FieldDie:         "1",
		chip.FieldCellLevel:   "MLC",
		chip.FieldPageSize:    "16",
		chip.FieldTotalPlane:  "2",
		chip.FieldProcessNode: "16nm",
	})
}

func TestDecodeMicronONFI(t *testing.T) {
	attrs, ok := Decode(NormalizeID("2CA4E9A2A8A8"))
	if !ok {
		t.Fatalf("expected local decode for Micron prefix")
	}
	assertFields(t, attrs, map[chip.Field]string{
		chip.FieldVendor:      "Micron",
		chip.FieldDie:         "2",
		chip.FieldCellLevel:   "TLC",
		chip.FieldDensity:     "64 GB",
		chip.FieldPageSize:    "8",
		chip.FieldPlane:       "4",
		chip.FieldProcessNode: "B27B(96L)",
	})
}

func TestDecodeIntelUnknownGeneration(t *testing.T) {
	attrs, ok := Decode(NormalizeID("89C4FCA20000"))
	if !ok {
		t.Fatalf("expected local decode for Intel prefix")
	}
	// C4 = 1Tb per die, digit C -> 1 die, QLC
	assertFields(t, attrs, map[chip.Field]string{
		chip.FieldVendor:    "Intel",
		chip.FieldDie:       "1",
		chip.FieldCellLevel: "QLC",
		chip.FieldDensity:   "128 GB",
	})
	if attrs[string(chip.FieldProcessNode)] != Unknown {
		t.Fatalf("expected unknown generation, got %v", attrs[string(chip.FieldProcessNode)])
	}
}

func TestDecodeUnsupportedPrefix(t *testing.T) {
	for _, raw := range []string{"ECD7", "9BC3", "0123456789AB"} {
		if _, ok := Decode(NormalizeID(raw)); ok {
			t.Fatalf("expected no local decode for %q", raw)
		}
	}
}

func TestNormalizePlaneBounds(t *testing.T) {
	for _, total := range []int{2, 4, 8, 16} {
		for _, dies := range []int{1, 2, 4, 8} {
			got := NormalizePlane(total, dies)
			if got < 1 || got > 15 {
				t.Fatalf("NormalizePlane(%d, %d) = %d, outside [1,15]", total, dies, got)
			}
		}
	}

	cases := []struct{ total, dies, want int }{
		{8, 2, 4},
		{2, 8, 1},
		{16, 1, 1},
		{256, 1, 1},
		{32, 1, 2},
		{4, 0, 4},
	}
	for _, tc := range cases {
		if got := NormalizePlane(tc.total, tc.dies); got != tc.want {
			t.Fatalf("NormalizePlane(%d, %d) = %d, want %d", tc.total, tc.dies, got, tc.want)
		}
	}
}

func TestFormatDensity(t *testing.T) {
	cases := []struct {
		raw   string
		width int
		want  string
	}{
		{"8192Mb", 8, "1 GB"},
		{"8192", 8, "1 GB"},
		{"8Gb", 8, "1 GB"},
		{"1Tb", 8, "128 GB"},
		{"8Tb", 8, "1 TB"},
		{"12Mb", 8, "1.50 MB"},
		{"100Mb", 8, "12.50 MB"},
		{"1280Gb", 8, "160 GB"},
		{"16G", 16, "32 GB"},
		{"512M", 8, "512 MB"},
		{"4Gb,x8", 8, "512 MB"},
		{"huge", 8, "huge"},
		{"", 8, ""},
	}
	for _, tc := range cases {
		if got := FormatDensity(tc.raw, tc.width); got != tc.want {
			t.Fatalf("FormatDensity(%q, %d) = %q, want %q", tc.raw, tc.width, got, tc.want)
		}
	}
}

func TestTotalDensity(t *testing.T) {
	cases := []struct {
		perDie string
		dies   int
		want   string
	}{
		{"512Gb", 4, "256 GB"},
		{"1Tb", 8, "1 TB"},
		{"64Gb", 1, "8 GB"},
		{"3Gb", 1, "384 MB"},
		{"96Gb", 3, "36 GB"},
		{"bogus", 2, Unknown},
	}
	for _, tc := range cases {
		if got := TotalDensity(tc.perDie, tc.dies); got != tc.want {
			t.Fatalf("TotalDensity(%q, %d) = %q, want %q", tc.perDie, tc.dies, got, tc.want)
		}
	}
}

func TestParseWidth(t *testing.T) {
	cases := map[string]int{"x16": 16, "X8": 8, "32": 32, "": DefaultWidth, "wide": DefaultWidth}
	for in, want := range cases {
		if got := ParseWidth(in); got != want {
			t.Fatalf("ParseWidth(%q) = %d, want %d", in, got, want)
		}
	}
}

func assertFields(t *testing.T, attrs chip.Attributes, want map[chip.Field]string) {
	t.Helper()
	for f, v := range want {
		got, _ := attrs[string(f)].(string)
		if got != v {
			t.Fatalf("field %s = %q, want %q (attrs=%v)", f, got, v, attrs)
		}
	}
}
