package emulator

import (
	"fmt"
	"math/rand"
)

// Exact access counters of a cache
type CacheStats struct {
	Operations uint64
	Hits       uint64
	Misses     uint64
}

// Returns hits/operations, 0 when nothing was accessed yet
func (stats CacheStats) HitRate() float64 {
	if stats.Operations == 0 {
		return 0
	}
	return float64(stats.Hits) / float64(stats.Operations)
}

func (stats CacheStats) String() string {
	return fmt.Sprintf("ops=%d hits=%d misses=%d rate=%.2f%%",
		stats.Operations, stats.Hits, stats.Misses, stats.HitRate()*100)
}

// Metadata of a cache line. The data of line i lives in the cache arena at
// [i*blockBytes, (i+1)*blockBytes)
type CacheBlock struct {
	Valid          bool
	Tag            uint32
	BaseAddress    uint32 // Address of the first byte of the block
	Dirty          bool
	CreationTime   uint64 // Cache clock when the block was fetched
	LastAccessTime uint64 // Cache clock of the last hit
}

// A cache in front of a parent memory. It is a Memory itself, so caches can
// be stacked into multi-level hierarchies
type Cache struct {
	parent      Memory
	kind        CacheKind
	write       WritePolicy
	replacement ReplacementPolicy

	blockSize  uint32 // In words
	blockBytes uint32
	blocks     uint32
	ways       uint32 // Lines per set
	sets       uint32
	offsetBits uint32
	indexBits  uint32

	lines []CacheBlock
	data  []byte
	stats CacheStats
	clock uint64
	seed  int64
	rng   *rand.Rand
}

// Creates a cache from an already normalized builder
func newCache(parent Memory, b CacheBuilder) *Cache {
	cache := &Cache{
		parent:      parent,
		kind:        b.Kind,
		write:       b.Write,
		replacement: b.Replacement,
		blockSize:   b.BlockSize,
		blockBytes:  b.BlockSize * 4,
		blocks:      b.Blocks,
		seed:        b.Seed,
	}

	switch b.Kind {
	case CACHE_DIRECT_MAPPED:
		cache.ways = 1
	case CACHE_FULLY_ASSOCIATIVE:
		cache.ways = b.Blocks
	default:
		cache.ways = b.SetSize
	}
	cache.sets = cache.blocks / cache.ways
	cache.offsetBits = log2(b.BlockSize) + 2
	cache.indexBits = log2(cache.sets)

	cache.lines = make([]CacheBlock, cache.blocks)
	cache.data = make([]byte, int(cache.blocks)*int(cache.blockBytes))
	cache.rng = rand.New(rand.NewSource(b.Seed))
	return cache
}

func (cache *Cache) String() string {
	return fmt.Sprintf("%v cache: %d blocks of %d words, %d-way, write-%v, %v",
		cache.kind, cache.blocks, cache.blockSize, cache.ways, cache.write, cache.replacement)
}

// Returns the memory this cache reads from and writes to
func (cache *Cache) Parent() Memory {
	return cache.parent
}

func (cache *Cache) Kind() CacheKind                      { return cache.kind }
func (cache *Cache) WritePolicy() WritePolicy             { return cache.write }
func (cache *Cache) ReplacementPolicy() ReplacementPolicy { return cache.replacement }
func (cache *Cache) BlockSize() uint32                    { return cache.blockSize }
func (cache *Cache) BlocksCount() uint32                  { return cache.blocks }
func (cache *Cache) SetSize() uint32                      { return cache.ways }
func (cache *Cache) OffsetBits() uint32                   { return cache.offsetBits }
func (cache *Cache) IndexBits() uint32                    { return cache.indexBits }

func (cache *Cache) Stats() CacheStats {
	return cache.stats
}

func (cache *Cache) ResetStats() {
	cache.stats = CacheStats{}
}

// Returns a copy of the line metadata
func (cache *Cache) Blocks() []CacheBlock {
	return append([]CacheBlock(nil), cache.lines...)
}

// Returns a copy of the bytes held by line `index`
func (cache *Cache) BlockData(index int) []byte {
	return append([]byte(nil), cache.blockData(index)...)
}

func (cache *Cache) blockData(index int) []byte {
	size := int(cache.blockBytes)
	return cache.data[index*size : (index+1)*size]
}

// Splits an address into its tag, set index and byte offset
func (cache *Cache) Decompose(address uint32) (tag, index, offset uint32) {
	offset = address & (cache.blockBytes - 1)
	index = (address >> cache.offsetBits) & (cache.sets - 1)
	shift := cache.offsetBits + cache.indexBits
	if shift < 32 {
		tag = address >> shift
	}
	return tag, index, offset
}

// Returns the line holding `address` without touching statistics, -1 if
// the block is not resident
func (cache *Cache) find(address uint32) int {
	tag, index, _ := cache.Decompose(address)
	first := index * cache.ways
	for i := first; i < first+cache.ways; i++ {
		if cache.lines[i].Valid && cache.lines[i].Tag == tag {
			return int(i)
		}
	}
	return -1
}

// Returns the line holding `address`, fetching it from the parent on a
// miss. Always counts exactly one operation
func (cache *Cache) lookup(address uint32) (int, error) {
	cache.stats.Operations++
	cache.clock++

	if line := cache.find(address); line >= 0 {
		cache.stats.Hits++
		cache.lines[line].LastAccessTime = cache.clock
		return line, nil
	}
	cache.stats.Misses++

	tag, index, _ := cache.Decompose(address)
	first := index * cache.ways
	line := int(first) + selectVictim(cache.replacement, cache.lines[first:first+cache.ways], cache.rng)

	if err := cache.evict(line); err != nil {
		return 0, err
	}

	base := address &^ (cache.blockBytes - 1)
	data := cache.blockData(line)
	for w := uint32(0); w < cache.blockSize; w++ {
		word, err := cache.parent.GetWord(base + w*4)
		if err != nil {
			return 0, err
		}
		b := SplitWord(word, cache.parent.IsBigEndian())
		copy(data[w*4:], b[:])
	}

	cache.lines[line] = CacheBlock{
		Valid:          true,
		Tag:            tag,
		BaseAddress:    base,
		CreationTime:   cache.clock,
		LastAccessTime: cache.clock,
	}
	return line, nil
}

// Writes the line back to the parent if it's dirty and invalidates it
func (cache *Cache) evict(line int) error {
	if err := cache.writeBack(line); err != nil {
		return err
	}
	cache.lines[line].Valid = false
	return nil
}

func (cache *Cache) writeBack(line int) error {
	block := &cache.lines[line]
	if !block.Valid || !block.Dirty {
		return nil
	}
	data := cache.blockData(line)
	for w := uint32(0); w < cache.blockSize; w++ {
		word := MergeWord(data[w*4:w*4+4], cache.parent.IsBigEndian())
		if _, err := cache.parent.SetWord(block.BaseAddress+w*4, word); err != nil {
			return err
		}
	}
	block.Dirty = false
	return nil
}

// Writes every dirty line back to the parent memory
func (cache *Cache) Flush() error {
	for i := range cache.lines {
		if err := cache.writeBack(i); err != nil {
			return err
		}
	}
	return nil
}

func (cache *Cache) load(address uint32, dst []byte) error {
	if address%uint32(len(dst)) != 0 {
		return unaligned(address, false)
	}
	line, err := cache.lookup(address)
	if err != nil {
		return err
	}
	_, _, offset := cache.Decompose(address)
	copy(dst, cache.blockData(line)[offset:])
	return nil
}

func (cache *Cache) store(address uint32, src, old []byte) error {
	if address%uint32(len(src)) != 0 {
		return unaligned(address, true)
	}
	line, err := cache.lookup(address)
	if err != nil {
		return err
	}
	_, _, offset := cache.Decompose(address)
	data := cache.blockData(line)[offset : offset+uint32(len(src))]
	copy(old, data)
	copy(data, src)

	if cache.write == WRITE_BACK {
		cache.lines[line].Dirty = true
		return nil
	}
	return storeBytes(cache.parent, address, src)
}

// Stores `src` into `mem` using the access matching its length
func storeBytes(mem Memory, address uint32, src []byte) error {
	var err error
	switch len(src) {
	case 1:
		_, err = mem.SetByte(address, src[0])
	case 2:
		_, err = mem.SetHalfword(address, mergeHalfword(src, mem.IsBigEndian()))
	case 4:
		_, err = mem.SetWord(address, MergeWord(src, mem.IsBigEndian()))
	default:
		panicFmt("cache: invalid store size %d", len(src))
	}
	return err
}

func (cache *Cache) GetByte(address uint32) (byte, error) {
	var b [1]byte
	err := cache.load(address, b[:])
	return b[0], err
}

func (cache *Cache) SetByte(address uint32, val byte) (byte, error) {
	var old [1]byte
	err := cache.store(address, []byte{val}, old[:])
	return old[0], err
}

func (cache *Cache) GetHalfword(address uint32) (uint16, error) {
	var b [2]byte
	if err := cache.load(address, b[:]); err != nil {
		return 0, err
	}
	return mergeHalfword(b[:], cache.IsBigEndian()), nil
}

func (cache *Cache) SetHalfword(address uint32, val uint16) (uint16, error) {
	var old [2]byte
	b := splitHalfword(val, cache.IsBigEndian())
	if err := cache.store(address, b[:], old[:]); err != nil {
		return 0, err
	}
	return mergeHalfword(old[:], cache.IsBigEndian()), nil
}

func (cache *Cache) GetWord(address uint32) (uint32, error) {
	var b [4]byte
	if err := cache.load(address, b[:]); err != nil {
		return 0, err
	}
	return MergeWord(b[:], cache.IsBigEndian()), nil
}

func (cache *Cache) SetWord(address uint32, val uint32) (uint32, error) {
	var old [4]byte
	b := SplitWord(val, cache.IsBigEndian())
	if err := cache.store(address, b[:], old[:]); err != nil {
		return 0, err
	}
	return MergeWord(old[:], cache.IsBigEndian()), nil
}

// Updates resident lines and forwards the bytes to the parent. Statistics,
// dirty flags and access times are left untouched
func (cache *Cache) RestoreBytes(address uint32, data []byte) error {
	for i, b := range data {
		addr := address + uint32(i)
		if line := cache.find(addr); line >= 0 {
			_, _, offset := cache.Decompose(addr)
			cache.blockData(line)[offset] = b
		}
	}
	return cache.parent.RestoreBytes(address, data)
}

func (cache *Cache) IsBigEndian() bool {
	return cache.parent.IsBigEndian()
}

// Deep copies the cache and its whole parent chain. The random source of
// the copy is reseeded from the original seed and clock
func (cache *Cache) Clone() Memory {
	c := *cache
	c.parent = cache.parent.Clone()
	c.lines = append([]CacheBlock(nil), cache.lines...)
	c.data = append([]byte(nil), cache.data...)
	c.rng = rand.New(rand.NewSource(cache.seed + int64(cache.clock)))
	return &c
}

// Invalidates every line without writing it back, clears the statistics
// and resets the parent
func (cache *Cache) Reset() {
	for i := range cache.lines {
		cache.lines[i] = CacheBlock{}
	}
	clear(cache.data)
	cache.stats = CacheStats{}
	cache.clock = 0
	cache.rng = rand.New(rand.NewSource(cache.seed))
	cache.parent.Reset()
}

// Returns the caches of a hierarchy, from the one closest to the CPU to
// the one closest to main memory
func CacheLevels(mem Memory) []*Cache {
	var levels []*Cache
	for {
		cache, ok := mem.(*Cache)
		if !ok {
			return levels
		}
		levels = append(levels, cache)
		mem = cache.parent
	}
}
