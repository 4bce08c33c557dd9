// SPDX-License-Identifier: MIT
//
// Package bitint provides the power-of-two helpers used to classify and
// round transform sizes. All functions are allocation free and O(1).
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0
// return 1.
//
// The subtraction keeps exact powers of two in place: Len(8-1) is 3, so
// 8 maps to 1<<3 rather than 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of
// two has one bit set, so clearing its lowest set bit leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
