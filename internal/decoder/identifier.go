package decoder

import "strings"

// IDLength is the number of hex digits in a normalized flash ID.
const IDLength = 12

const hexDigits = "0123456789ABCDEF"

// Identifier is a normalized flash ID: exactly IDLength uppercase hex digits.
type Identifier string

// Vendor prefixes that mark an input as a flash ID rather than a part number.
const (
	PrefixToshiba = "98"
	PrefixSanDisk = "45"
	PrefixHynix   = "AD"
	PrefixMicron  = "2C"
	PrefixIntel   = "89"
	PrefixYMTC    = "9B"
	PrefixSamsung = "EC"
)

var idPrefixes = []string{
	PrefixIntel, PrefixSanDisk, PrefixMicron, PrefixSamsung,
	PrefixHynix, PrefixToshiba, PrefixYMTC,
}

// NormalizeID keeps the hex digits of s in order, uppercases them, truncates
// at IDLength and right-pads with '0'.
func NormalizeID(s string) Identifier {
	var b strings.Builder
	b.Grow(IDLength)
	for i := 0; i < len(s) && b.Len() < IDLength; i++ {
		c := upper(s[i])
		if strings.IndexByte(hexDigits, c) >= 0 {
			b.WriteByte(c)
		}
	}
	for b.Len() < IDLength {
		b.WriteByte('0')
	}
	return Identifier(b.String())
}

// LooksLikeID reports whether s is entirely hex and starts with a known
// vendor prefix. Such inputs are resolved as IDs, never as part numbers.
func LooksLikeID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(hexDigits, upper(s[i])) < 0 {
			return false
		}
	}
	prefix := strings.ToUpper(s[:2])
	for _, p := range idPrefixes {
		if prefix == p {
			return true
		}
	}
	return false
}

// Prefix returns the two-character vendor prefix.
func (id Identifier) Prefix() string {
	if len(id) < 2 {
		return ""
	}
	return string(id[:2])
}

func (id Identifier) String() string { return string(id) }

// nibble returns the value of the hex digit at position i.
func (id Identifier) nibble(i int) int {
	if i < 0 || i >= len(id) {
		return 0
	}
	return strings.IndexByte(hexDigits, id[i])
}

// pair returns the two characters starting at i.
func (id Identifier) pair(i int) string {
	if i < 0 || i+2 > len(id) {
		return ""
	}
	return string(id[i : i+2])
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
