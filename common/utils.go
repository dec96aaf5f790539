package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// CeilDiv divides n by d rounding up. Used to turn a logical domain size into a workgroup count.
//
// Parameters:
//   - n: the numerator (domain size)
//   - d: the denominator (workgroup size), must be non-zero
//
// Returns:
//   - uint32: the smallest integer k such that k*d >= n
func CeilDiv(n, d uint32) uint32 {
	if d == 0 {
		panic("common: CeilDiv by zero")
	}
	return (n + d - 1) / d
}

// MipLevelCount returns the number of mip levels in a full chain for a 2D image of the given extent.
//
// Parameters:
//   - width: the base level width in texels
//   - height: the base level height in texels
//
// Returns:
//   - uint32: floor(log2(max(width, height))) + 1, or 1 for degenerate extents
func MipLevelCount(width, height uint32) uint32 {
	m := max(width, height)
	levels := uint32(1)
	for m > 1 {
		m >>= 1
		levels++
	}
	return levels
}

// MipExtent returns the extent of a mip level, clamped to at least one texel per axis.
func MipExtent(width, height, level uint32) (uint32, uint32) {
	return max(width>>level, 1), max(height>>level, 1)
}
