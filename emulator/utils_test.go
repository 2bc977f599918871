package emulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilPowerOfTwo(t *testing.T) {
	for i, x := uint32(0), uint32(1); i < 32; i++ {
		assert.Equal(t, x, ceilPowerOfTwo(x))
		if x > 2 {
			assert.Equal(t, x, ceilPowerOfTwo(x-1))
		}
		x <<= 1
	}
	assert.Equal(t, uint32(1), ceilPowerOfTwo(0))
	assert.Equal(t, uint32(1<<31), ceilPowerOfTwo(math.MaxUint32))
}

func TestLog2(t *testing.T) {
	for i := uint32(0); i < 32; i++ {
		assert.Equal(t, i, log2(1<<i))
		assert.True(t, isPowerOfTwo(1<<i))
	}
	assert.False(t, isPowerOfTwo(0))
	assert.False(t, isPowerOfTwo(12))
}

func TestAdd32Overflow(t *testing.T) {
	cases := []struct {
		a, b     int32
		overflow bool
	}{
		{1, 2, false},
		{math.MaxInt32, 1, true},
		{math.MinInt32, -1, true},
		{math.MaxInt32, math.MinInt32, false},
		{-5, 5, false},
	}
	for _, c := range cases {
		r, err := add32Overflow(c.a, c.b)
		if c.overflow {
			assert.ErrorIs(t, err, errOverflow, "%d + %d", c.a, c.b)
		} else {
			assert.NoError(t, err, "%d + %d", c.a, c.b)
			assert.Equal(t, c.a+c.b, r)
		}
	}

	_, err := sub32Overflow(math.MinInt32, 1)
	assert.ErrorIs(t, err, errOverflow)
	r, err := sub32Overflow(-1, math.MaxInt32)
	assert.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), r)
}

func TestSignExtend16(t *testing.T) {
	assert.Equal(t, uint32(0xffffff9c), signExtend16(65436))
	assert.Equal(t, uint32(0x7fff), signExtend16(0x7fff))
	assert.Equal(t, uint32(0xffff8000), signExtend16(0x8000))
}

func TestRegisterNames(t *testing.T) {
	for i := range RegisterNames {
		idx, ok := GetRegisterIndexByName(GetRegisterName(uint32(i)))
		assert.True(t, ok)
		assert.Equal(t, uint32(i), idx)
	}
	_, ok := GetRegisterIndexByName("t10")
	assert.False(t, ok)
}
