package decoder

// Per chip-enable density of Toshiba/SanDisk and SK Hynix parts, keyed by
// the device code (ID byte 2).
var ceDensity = map[string]string{
	"D3": "8Gb",
	"D5": "16Gb",
	"D7": "32Gb",
	"DE": "64Gb",
	"3A": "128Gb", "5A": "128Gb",
	"3C": "256Gb", "5C": "256Gb",
	"3E": "512Gb",
	"48": "1Tb", "5E": "1Tb", "7E": "1Tb",
	"49": "2Tb", "89": "2Tb",
	"40": "4Tb",
	"41": "8Tb",
	"58": "1280Gb",
}

var (
	dieCounts  = [4]string{"1", "2", "4", "8"}
	cellLevels = [4]string{"SLC", "MLC", "TLC", "QLC"}
	pageSizes  = [4]string{"2", "4", "8", "16"}
)

// Toshiba/SanDisk total planes per chip enable, keyed by ID digit 9.
var bicsTotalPlane = map[byte]int{
	'6': 2,
	'A': 4,
	'E': 8,
	'2': 16,
}

// Toshiba/SanDisk process node, keyed by the low three bits of ID digits 10
// and 11.
var bicsProcessNode = map[string]string{
	"71": "BiCS2",
	"72": "BiCS3",
	"63": "BiCS4(.5)",
	"64": "BiCS5",
	"65": "BiCS6",
	"51": "15nm(1z)",
	"50": "A19nm(1y)",
	"57": "19nm(1x)",
	"56": "24nm",
}

// SK Hynix process node, keyed by ID byte 5.
var hynixProcessNode = map[string]string{
	"42": "32nm",
	"4A": "16nm",
	"50": "14nm",
	"60": "3DV1",
	"70": "3DV2",
	"80": "3DV3",
	"90": "3DV4",
	"A0": "3DV5",
	"B0": "3DV6",
	"C0": "3DV7",
	"D0": "3DV8",
}

// ONFI per-die density, keyed by the device code.
var onfiDieDensity = map[string]string{
	"68": "32Gb",
	"88": "64Gb",
	"64": "64Gb",
	"84": "128Gb",
	"A4": "256Gb",
	"B4": "512Gb",
	"C4": "1Tb",
	"C3": "1Tb",
	"D3": "1Tb",
	"D4": "1Tb",
	"E4": "2Tb",
}

// ONFI generation per vendor, keyed by ID byte 5.
var onfiProcessNode = map[string]map[string]string{
	PrefixMicron: {
		"04": "20nm",
		"08": "16nm",
		"A4": "B16A(64L)",
		"E4": "B17A(64L)",
		"A8": "B27B(96L)",
		"E8": "B37R(176L)",
		"AC": "B47R(176L)",
		"EC": "B58R(232L)",
	},
	PrefixIntel: {
		"04": "20nm",
		"54": "64L",
		"58": "96L",
		"5C": "144L",
	},
}

var vendorNames = map[string]string{
	PrefixToshiba: "Toshiba/Kioxia",
	PrefixSanDisk: "SanDisk/WD",
	PrefixHynix:   "SK Hynix",
	PrefixMicron:  "Micron",
	PrefixIntel:   "Intel",
	PrefixYMTC:    "YMTC",
	PrefixSamsung: "Samsung",
}

// VendorName returns the vendor for a two-character ID prefix.
func VendorName(prefix string) (string, bool) {
	name, ok := vendorNames[prefix]
	return name, ok
}
