package emulator

import (
	"errors"
	"fmt"
	"math/bits"
)

var errOverflow = errors.New("integer overflow")

// Names of the general purpose registers
var RegisterNames = []string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3", // 00
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7", // 08
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", // 10
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra", // 18
}

// Returns the name of the register index
func GetRegisterName(index uint32) string {
	return RegisterNames[index]
}

// Returns the register index by it's name (in RegisterNames).
// Returns false if the register name does not exist
func GetRegisterIndexByName(name string) (uint32, bool) {
	for idx, n := range RegisterNames {
		if n == name {
			return uint32(idx), true
		}
	}
	return 0, false
}

// Formatted panic()
func panicFmt(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

// Adds two signed integers and checks for overflow
func add32Overflow(a, b int32) (int32, error) {
	c := a + b
	// overflow only happens when both operands share a sign that the
	// result doesn't
	if (a >= 0) == (b >= 0) && (c >= 0) != (a >= 0) {
		return c, errOverflow
	}
	return c, nil
}

// Subtracts two signed integers and checks for overflow
func sub32Overflow(a, b int32) (int32, error) {
	c := a - b
	if (a >= 0) != (b >= 0) && (c >= 0) != (a >= 0) {
		return c, errOverflow
	}
	return c, nil
}

func oneIfTrue(val bool) uint32 {
	if val {
		return 1
	}
	return 0
}

// Sign-extends the lowest 16 bits of `val`
func signExtend16(val uint32) uint32 {
	return uint32(int32(int16(val)))
}

// Returns true if `val` is a power of two. Zero is not
func isPowerOfTwo(val uint32) bool {
	return val != 0 && val&(val-1) == 0
}

// Rounds `val` up to the next power of two. Zero becomes one and values
// above 1<<31 are clamped to 1<<31
func ceilPowerOfTwo(val uint32) uint32 {
	if val <= 1 {
		return 1
	}
	if val > 1<<31 {
		return 1 << 31
	}
	return 1 << bits.Len32(val-1)
}

// Base 2 logarithm of a power of two
func log2(val uint32) uint32 {
	return uint32(bits.TrailingZeros32(val))
}
