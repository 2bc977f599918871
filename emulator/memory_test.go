package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndiannessRoundTrip(t *testing.T) {
	for _, bigEndian := range []bool{false, true} {
		mem := NewMIPS32Memory(bigEndian)
		_, err := mem.SetWord(DATA_START, 0x11223344)
		require.NoError(t, err)

		v, err := mem.GetWord(DATA_START)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x11223344), v)

		b, err := mem.GetByte(DATA_START)
		require.NoError(t, err)
		if bigEndian {
			assert.Equal(t, byte(0x11), b)
		} else {
			assert.Equal(t, byte(0x44), b)
		}

		h, err := mem.GetHalfword(DATA_START + 2)
		require.NoError(t, err)
		if bigEndian {
			assert.Equal(t, uint16(0x3344), h)
		} else {
			assert.Equal(t, uint16(0x1122), h)
		}
	}

	assert.Equal(t, [4]byte{0x11, 0x22, 0x33, 0x44}, SplitWord(0x11223344, true))
	assert.Equal(t, [4]byte{0x44, 0x33, 0x22, 0x11}, SplitWord(0x11223344, false))
}

func TestMemoryReturnsOldValues(t *testing.T) {
	mem := NewMIPS32Memory(false)
	old, err := mem.SetWord(DATA_START, 0xdeadbeef)
	require.NoError(t, err)
	assert.Zero(t, old)

	old, err = mem.SetWord(DATA_START, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), old)

	oldByte, err := mem.SetByte(DATA_START+3, 0xff)
	require.NoError(t, err)
	assert.Equal(t, byte(0), oldByte)
}

func TestMemoryErrors(t *testing.T) {
	mem := NewMIPS32Memory(false)

	_, err := mem.GetWord(DATA_START + 2)
	assert.ErrorIs(t, err, ErrUnalignedAccess)

	_, err = mem.SetHalfword(DATA_START+1, 0)
	assert.ErrorIs(t, err, ErrUnalignedAccess)

	// between the text and data sections
	_, err = mem.GetWord(0x00100000)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	var addrErr *AddressError
	_, err = mem.SetWord(0x00000000, 1)
	require.ErrorAs(t, err, &addrErr)
	assert.True(t, addrErr.Store)
	assert.Equal(t, uint32(0), addrErr.Address)
}

func TestOverlappingSections(t *testing.T) {
	_, err := NewSectionedMemory(false,
		NewMemorySection("a", 0x1000, 0x1000, 0x100),
		NewMemorySection("b", 0x1800, 0x1000, 0x100),
	)
	assert.Error(t, err)

	mem, err := NewSectionedMemory(false,
		NewMemorySection("b", 0x2000, 0x1000, 0x100),
		NewMemorySection("a", 0x1000, 0x1000, 0x100),
	)
	require.NoError(t, err)
	assert.Equal(t, "a", mem.Section(0x1ffc).Name)
	assert.Equal(t, "b", mem.Section(0x2000).Name)
	assert.Nil(t, mem.Section(0x3000))
}

func TestCellsAreAllocatedOnWrite(t *testing.T) {
	mem := NewMIPS32Memory(false)
	data := mem.Section(DATA_START)
	require.NotNil(t, data)

	_, err := mem.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, 0, data.AllocatedCells())

	_, err = mem.SetWord(DATA_START, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, data.AllocatedCells())

	mem.Reset()
	assert.Equal(t, 0, data.AllocatedCells())
}

func TestMemoryClone(t *testing.T) {
	mem := NewMIPS32Memory(true)
	_, err := mem.SetWord(DATA_START, 42)
	require.NoError(t, err)

	clone := mem.Clone()
	_, err = mem.SetWord(DATA_START, 43)
	require.NoError(t, err)

	v, err := clone.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
	assert.True(t, clone.IsBigEndian())
}

func TestRestoreBytes(t *testing.T) {
	mem := NewMIPS32Memory(false)
	require.NoError(t, mem.RestoreBytes(DATA_START+1, []byte{1, 2}))
	v, err := mem.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00020100), v)

	assert.ErrorIs(t, mem.RestoreBytes(0, []byte{1}), ErrOutOfBounds)
}
