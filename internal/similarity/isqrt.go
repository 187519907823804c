package similarity

// Isqrt computes the integer square root of a non-negative int64 via
// Newton's method: the result is the largest integer whose square does
// not exceed n.
func Isqrt(n int64) int64 {
	if n < 0 {
		panic("similarity: Isqrt of negative number")
	}
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
