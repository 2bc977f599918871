package emulator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, b CacheBuilder) (*Cache, *SectionedMemory) {
	t.Helper()
	mem := NewMIPS32Memory(false)
	return b.Build(mem), mem
}

func TestCacheWriteThenRead(t *testing.T) {
	kinds := []CacheKind{CACHE_DIRECT_MAPPED, CACHE_SET_ASSOCIATIVE, CACHE_FULLY_ASSOCIATIVE}
	for _, kind := range kinds {
		for _, blockSize := range []uint32{1, 2, 4, 8} {
			for _, blocks := range []uint32{1, 4, 16} {
				name := fmt.Sprintf("%v/%d/%d", kind, blockSize, blocks)
				t.Run(name, func(t *testing.T) {
					cache, _ := newTestCache(t, CacheBuilder{
						Kind:      kind,
						BlockSize: blockSize,
						Blocks:    blocks,
						SetSize:   2,
						Write:     WRITE_BACK,
					})

					_, err := cache.SetWord(DATA_START, 0xcafebabe)
					require.NoError(t, err)
					v, err := cache.GetWord(DATA_START)
					require.NoError(t, err)
					assert.Equal(t, uint32(0xcafebabe), v)

					// the rest of the block is resident too
					for w := uint32(1); w < blockSize; w++ {
						_, err := cache.GetWord(DATA_START + w*4)
						require.NoError(t, err)
					}

					stats := cache.Stats()
					assert.Equal(t, uint64(1+blockSize), stats.Operations)
					assert.Equal(t, uint64(1), stats.Misses)
					assert.Equal(t, uint64(blockSize), stats.Hits)
				})
			}
		}
	}
}

func TestCacheWriteBackRoundTrip(t *testing.T) {
	cache, mem := newTestCache(t, CacheBuilder{
		Kind:      CACHE_DIRECT_MAPPED,
		BlockSize: 4,
		Blocks:    1,
		Write:     WRITE_BACK,
	})

	_, err := cache.SetWord(DATA_START+4, 1234)
	require.NoError(t, err)

	v, err := mem.GetWord(DATA_START + 4)
	require.NoError(t, err)
	assert.Zero(t, v, "write back caches must not touch the parent until eviction")
	assert.True(t, cache.Blocks()[0].Dirty)

	// same index, different tag
	_, err = cache.GetWord(DATA_START + 0x100)
	require.NoError(t, err)

	v, err = mem.GetWord(DATA_START + 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), v)
	assert.False(t, cache.Blocks()[0].Dirty)

	_, err = cache.SetByte(DATA_START+0x101, 0xaa)
	require.NoError(t, err)
	require.NoError(t, cache.Flush())
	b, err := mem.GetByte(DATA_START + 0x101)
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), b)
}

func TestCacheWriteThrough(t *testing.T) {
	cache, mem := newTestCache(t, CacheBuilder{
		Kind:        CACHE_SET_ASSOCIATIVE,
		BlockSize:   2,
		Blocks:      4,
		SetSize:     2,
		Write:       WRITE_THROUGH,
		Replacement: REPLACEMENT_FIFO,
	})

	values := []uint32{1, 0xffffffff, 0x80000000, 7}
	for i, val := range values {
		addr := DATA_START + uint32(i)*0x40
		_, err := cache.SetWord(addr, val)
		require.NoError(t, err)
		v, err := mem.GetWord(addr)
		require.NoError(t, err)
		assert.Equal(t, val, v)

		_, err = cache.SetHalfword(addr+2, 0xbeef)
		require.NoError(t, err)
		h, err := mem.GetHalfword(addr + 2)
		require.NoError(t, err)
		assert.Equal(t, uint16(0xbeef), h)
	}
	for _, block := range cache.Blocks() {
		assert.False(t, block.Dirty)
	}
}

// Accesses A, B, A and then C on a two line cache. LRU evicts B, FIFO
// evicts A
func TestCacheReplacementPolicies(t *testing.T) {
	const a, b, c = DATA_START, DATA_START + 0x10, DATA_START + 0x20
	cases := []struct {
		policy  ReplacementPolicy
		evicted uint32
		kept    uint32
	}{
		{REPLACEMENT_LRU, b, a},
		{REPLACEMENT_FIFO, a, b},
	}
	for _, test := range cases {
		t.Run(test.policy.String(), func(t *testing.T) {
			cache, _ := newTestCache(t, CacheBuilder{
				Kind:        CACHE_FULLY_ASSOCIATIVE,
				BlockSize:   1,
				Blocks:      2,
				Replacement: test.policy,
			})
			for _, addr := range []uint32{a, b, a, c} {
				_, err := cache.GetWord(addr)
				require.NoError(t, err)
			}
			assert.Equal(t, -1, cache.find(test.evicted))
			assert.GreaterOrEqual(t, cache.find(test.kept), 0)
			assert.GreaterOrEqual(t, cache.find(c), 0)
			assert.Equal(t, CacheStats{Operations: 4, Hits: 1, Misses: 3}, cache.Stats())
		})
	}
}

func TestCacheRandomReplacementIsSeeded(t *testing.T) {
	builder := CacheBuilder{
		Kind:        CACHE_FULLY_ASSOCIATIVE,
		BlockSize:   1,
		Blocks:      4,
		Replacement: REPLACEMENT_RANDOM,
		Seed:        99,
	}
	first, _ := newTestCache(t, builder)
	second, _ := newTestCache(t, builder)
	for i := uint32(0); i < 64; i++ {
		addr := DATA_START + (i*7%13)*4
		_, err := first.GetWord(addr)
		require.NoError(t, err)
		_, err = second.GetWord(addr)
		require.NoError(t, err)
	}
	assert.Equal(t, first.Stats(), second.Stats())
	assert.Equal(t, first.Blocks(), second.Blocks())
}

func TestCacheDecompose(t *testing.T) {
	cache, _ := newTestCache(t, CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 4, Blocks: 16})
	assert.Equal(t, uint32(4), cache.OffsetBits())
	assert.Equal(t, uint32(4), cache.IndexBits())

	tag, index, offset := cache.Decompose(0x10010034)
	assert.Equal(t, uint32(0x100100), tag)
	assert.Equal(t, uint32(3), index)
	assert.Equal(t, uint32(4), offset)
}

func TestCacheBuilderNormalization(t *testing.T) {
	b := CacheBuilder{Kind: CACHE_SET_ASSOCIATIVE, BlockSize: 3, Blocks: 5, SetSize: 16}.Normalized()
	assert.Equal(t, uint32(4), b.BlockSize)
	assert.Equal(t, uint32(8), b.Blocks)
	assert.Equal(t, uint32(8), b.SetSize)

	b = CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 1 << 29, Blocks: 1 << 20, SetSize: 4}.Normalized()
	assert.Equal(t, uint32(1<<29), b.BlockSize)
	assert.Equal(t, uint32(2), b.Blocks)
	assert.Equal(t, uint32(1), b.SetSize)

	b = CacheBuilder{Kind: CACHE_FULLY_ASSOCIATIVE, BlockSize: 0, Blocks: 0}.Normalized()
	assert.Equal(t, uint32(1), b.BlockSize)
	assert.Equal(t, uint32(1), b.Blocks)
	assert.Equal(t, uint32(1), b.SetSize)
}

func TestParseCacheBuilder(t *testing.T) {
	b, err := ParseCacheBuilder("set:4:16:2:through:fifo")
	require.NoError(t, err)
	assert.Equal(t, CacheBuilder{
		Kind:        CACHE_SET_ASSOCIATIVE,
		BlockSize:   4,
		Blocks:      16,
		SetSize:     2,
		Write:       WRITE_THROUGH,
		Replacement: REPLACEMENT_FIFO,
	}, b)
	assert.Equal(t, "set:4:16:2:through:fifo", b.String())

	b, err = ParseCacheBuilder("dm:1:8:wb:rand")
	require.NoError(t, err)
	assert.Equal(t, CACHE_DIRECT_MAPPED, b.Kind)
	assert.Equal(t, WRITE_BACK, b.Write)
	assert.Equal(t, REPLACEMENT_RANDOM, b.Replacement)

	for _, s := range []string{"", "direct:4:16", "set:4:16:back:lru", "ring:4:16:back:lru", "direct:x:16:back:lru", "direct:4:16:later:lru"} {
		_, err := ParseCacheBuilder(s)
		assert.Error(t, err, s)
	}
}

func TestCacheHierarchy(t *testing.T) {
	mem := NewMIPS32Memory(false)
	top := BuildHierarchy(mem,
		CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 1, Blocks: 4},
		CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 4, Blocks: 4},
	)
	levels := CacheLevels(top)
	require.Len(t, levels, 2)
	assert.Same(t, mem, levels[1].Parent())

	_, err := top.GetWord(DATA_START)
	require.NoError(t, err)
	_, err = top.GetWord(DATA_START + 4)
	require.NoError(t, err)
	_, err = top.GetWord(DATA_START)
	require.NoError(t, err)

	assert.Equal(t, CacheStats{Operations: 3, Hits: 1, Misses: 2}, levels[0].Stats())
	assert.Equal(t, CacheStats{Operations: 2, Hits: 1, Misses: 1}, levels[1].Stats())
}

func TestCacheRestoreBytesKeepsStats(t *testing.T) {
	cache, mem := newTestCache(t, CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 1, Blocks: 2, Write: WRITE_BACK})
	_, err := cache.SetWord(DATA_START, 5)
	require.NoError(t, err)
	stats := cache.Stats()

	b := SplitWord(9, false)
	require.NoError(t, cache.RestoreBytes(DATA_START, b[:]))
	assert.Equal(t, stats, cache.Stats())

	v, err := mem.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), v)
	v, err = cache.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), v)
}

func TestCacheClone(t *testing.T) {
	cache, _ := newTestCache(t, CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 2, Blocks: 2, Write: WRITE_BACK})
	_, err := cache.SetWord(DATA_START, 1)
	require.NoError(t, err)

	clone := cache.Clone().(*Cache)
	_, err = cache.SetWord(DATA_START, 2)
	require.NoError(t, err)

	v, err := clone.GetWord(DATA_START)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, uint64(2), clone.Stats().Operations)
	assert.Equal(t, uint64(2), cache.Stats().Operations)
	assert.NotSame(t, cache.Parent(), clone.Parent())
}

func TestCacheUnaligned(t *testing.T) {
	cache, _ := newTestCache(t, CacheBuilder{Kind: CACHE_DIRECT_MAPPED, BlockSize: 1, Blocks: 1})
	_, err := cache.GetWord(DATA_START + 1)
	assert.ErrorIs(t, err, ErrUnalignedAccess)
	assert.Zero(t, cache.Stats().Operations)
}
