// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-two helpers used to size ring buffers so
that wrap-around is a mask instead of a modulo.

	size := bitint.NextPowerOfTwo(24) // 32
	next := (i + 1) & (size - 1)

NextPowerOfTwo subtracts one before taking the bit length so exact powers of
two map to themselves:

	8 -> 7 (0111) -> Len 3 -> 1<<3 = 8
	9 -> 8 (1000) -> Len 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	1      1
//	5      8
//	32     32
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have a single set bit, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns size-1 for a power-of-two size, or 0 otherwise.
func Mask(size int) int {
	if !IsPowerOfTwo(size) {
		return 0
	}
	return size - 1
}
