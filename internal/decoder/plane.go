package decoder

// planeSaturation is the per-die plane count at which the encoding wraps.
const planeSaturation = 16

// NormalizePlane derives planes per die from the total plane count of a chip
// enable. The quotient never goes below 1 and is folded by 16 until it fits
// in [1, 15].
func NormalizePlane(totalPlane, dies int) int {
	if dies < 1 {
		dies = 1
	}
	q := totalPlane / dies
	if q < 1 {
		return 1
	}
	for q >= planeSaturation {
		q /= planeSaturation
	}
	return q
}
