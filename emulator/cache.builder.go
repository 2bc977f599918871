package emulator

import (
	"fmt"
	"strconv"
	"strings"
)

// Cache configuration. Invalid sizes are rounded and clamped by Build
// instead of being rejected
type CacheBuilder struct {
	Kind        CacheKind
	BlockSize   uint32 // Words per block
	Blocks      uint32 // Total number of lines
	SetSize     uint32 // Lines per set, only used by set associative caches
	Write       WritePolicy
	Replacement ReplacementPolicy
	Seed        int64 // Random replacement seed
}

// Returns a copy of the builder with every size rounded up to a power of
// two and clamped so the offset and index bits fit in a 32 bit address
func (b CacheBuilder) Normalized() CacheBuilder {
	b.BlockSize = ceilPowerOfTwo(b.BlockSize)
	if b.BlockSize > 1<<29 {
		b.BlockSize = 1 << 29
	}
	b.Blocks = ceilPowerOfTwo(b.Blocks)

	offsetBits := log2(b.BlockSize) + 2
	for offsetBits+log2(b.Blocks) > 32 {
		b.Blocks >>= 1
	}

	switch b.Kind {
	case CACHE_DIRECT_MAPPED:
		b.SetSize = 1
	case CACHE_FULLY_ASSOCIATIVE:
		b.SetSize = b.Blocks
	default:
		b.SetSize = ceilPowerOfTwo(b.SetSize)
		if b.SetSize > b.Blocks {
			b.SetSize = b.Blocks
		}
	}
	return b
}

// Builds a cache in front of `parent`
func (b CacheBuilder) Build(parent Memory) *Cache {
	return newCache(parent, b.Normalized())
}

func (b CacheBuilder) String() string {
	if b.Kind == CACHE_SET_ASSOCIATIVE {
		return fmt.Sprintf("%v:%d:%d:%d:%v:%v", b.Kind, b.BlockSize, b.Blocks, b.SetSize, b.Write, b.Replacement)
	}
	return fmt.Sprintf("%v:%d:%d:%v:%v", b.Kind, b.BlockSize, b.Blocks, b.Write, b.Replacement)
}

// Parses "kind:blockWords:blocks[:setSize]:write:replacement", for example
// "direct:4:16:back:lru" or "set:4:16:2:through:fifo"
func ParseCacheBuilder(s string) (CacheBuilder, error) {
	var b CacheBuilder
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 5 {
		return b, fmt.Errorf("cache: invalid description %q", s)
	}

	kind, err := parseCacheKind(parts[0])
	if err != nil {
		return b, err
	}
	b.Kind = kind

	want := 5
	if kind == CACHE_SET_ASSOCIATIVE {
		want = 6
	}
	if len(parts) != want {
		return b, fmt.Errorf("cache: %q needs %d fields, got %d", s, want, len(parts))
	}

	sizes := make([]uint32, want-3)
	for i := range sizes {
		v, err := strconv.ParseUint(parts[i+1], 10, 32)
		if err != nil {
			return b, fmt.Errorf("cache: invalid size %q: %w", parts[i+1], err)
		}
		sizes[i] = uint32(v)
	}
	b.BlockSize, b.Blocks = sizes[0], sizes[1]
	if kind == CACHE_SET_ASSOCIATIVE {
		b.SetSize = sizes[2]
	}

	if b.Write, err = parseWritePolicy(parts[want-2]); err != nil {
		return b, err
	}
	if b.Replacement, err = parseReplacementPolicy(parts[want-1]); err != nil {
		return b, err
	}
	return b, nil
}

// Builds the hierarchy described by `builders` on top of `mem`. The first
// builder is the level closest to the CPU
func BuildHierarchy(mem Memory, builders ...CacheBuilder) Memory {
	for i := len(builders) - 1; i >= 0; i-- {
		mem = builders[i].Build(mem)
	}
	return mem
}
