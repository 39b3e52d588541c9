// Package decoder resolves flash IDs locally from their bitfields. It does
// no I/O; prefixes without a local branch fall through to the remote
// decode service.
package decoder

import (
	"strconv"

	"flashdetail/internal/chip"
)

// Unknown is reported for any field whose table lookup misses.
const Unknown = chip.Unknown

type branch func(id Identifier) chip.Attributes

var branches = map[string]branch{
	PrefixToshiba: decodeBiCS,
	PrefixSanDisk: decodeBiCS,
	PrefixHynix:   decodeHynix,
	PrefixMicron:  decodeONFI,
	PrefixIntel:   decodeONFI,
}

// Decode returns the locally decoded attributes of id, or false when no
// branch handles its vendor prefix.
func Decode(id Identifier) (chip.Attributes, bool) {
	fn, ok := branches[id.Prefix()]
	if !ok {
		return nil, false
	}
	attrs := fn(id)
	attrs.Set(chip.FieldID, id.String())
	return attrs, true
}

// Supported reports whether id has a local branch.
func Supported(id Identifier) bool {
	_, ok := branches[id.Prefix()]
	return ok
}

// dieAndCell splits the digit at i: low two bits die count, high two bits
// cell level.
func dieAndCell(id Identifier, i int) (die string, dies int, cell string) {
	n := id.nibble(i)
	dies = 1 << (n % 4)
	return dieCounts[n%4], dies, cellLevels[n/4]
}

func lookup(table map[string]string, key string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return Unknown
}

// decodeBiCS handles Toshiba/Kioxia and SanDisk/WD.
func decodeBiCS(id Identifier) chip.Attributes {
	attrs := chip.Attributes{}
	attrs.Set(chip.FieldVendor, vendorNames[id.Prefix()])

	if raw, ok := ceDensity[id.pair(2)]; ok {
		attrs.Set(chip.FieldDensity, FormatDensity(raw, DefaultWidth))
	} else {
		attrs.Set(chip.FieldDensity, Unknown)
	}

	die, dies, cell := dieAndCell(id, 5)
	attrs.Set(chip.FieldDie, die)
	attrs.Set(chip.FieldCellLevel, cell)
	attrs.Set(chip.FieldPageSize, pageSizes[id.nibble(7)%4])

	if total, ok := bicsTotalPlane[id[9]]; ok {
		attrs.Set(chip.FieldTotalPlane, strconv.Itoa(total))
		attrs.Set(chip.FieldPlane, strconv.Itoa(NormalizePlane(total, dies)))
	} else {
		attrs.Set(chip.FieldTotalPlane, Unknown)
		attrs.Set(chip.FieldPlane, Unknown)
	}

	node := strconv.Itoa(id.nibble(10)%8) + strconv.Itoa(id.nibble(11)%8)
	attrs.Set(chip.FieldProcessNode, lookup(bicsProcessNode, node))
	return attrs
}

func decodeHynix(id Identifier) chip.Attributes {
	attrs := chip.Attributes{}
	attrs.Set(chip.FieldVendor, vendorNames[PrefixHynix])

	if raw, ok := ceDensity[id.pair(2)]; ok {
		attrs.Set(chip.FieldDensity, FormatDensity(raw, DefaultWidth))
	} else {
		attrs.Set(chip.FieldDensity, Unknown)
	}

	die, _, cell := dieAndCell(id, 5)
	attrs.Set(chip.FieldDie, die)
	attrs.Set(chip.FieldCellLevel, cell)
	attrs.Set(chip.FieldPageSize, pageSizes[id.nibble(7)%4])
	attrs.Set(chip.FieldTotalPlane, dieCounts[id.nibble(4)%4])
	attrs.Set(chip.FieldProcessNode, lookup(hynixProcessNode, id.pair(10)))
	return attrs
}

// decodeONFI handles the Micron/Intel family, whose device code is a per-die
// density.
func decodeONFI(id Identifier) chip.Attributes {
	prefix := id.Prefix()
	attrs := chip.Attributes{}
	attrs.Set(chip.FieldVendor, vendorNames[prefix])

	die, dies, cell := dieAndCell(id, 5)
	attrs.Set(chip.FieldDie, die)
	attrs.Set(chip.FieldCellLevel, cell)

	if perDie, ok := onfiDieDensity[id.pair(2)]; ok {
		attrs.Set(chip.FieldDensity, TotalDensity(perDie, dies))
	} else {
		attrs.Set(chip.FieldDensity, Unknown)
	}

	attrs.Set(chip.FieldPageSize, pageSizes[id.nibble(7)%4])
	attrs.Set(chip.FieldPlane, dieCounts[(id.nibble(9)/4)%4])
	attrs.Set(chip.FieldProcessNode, lookup(onfiProcessNode[prefix], id.pair(10)))
	return attrs
}
