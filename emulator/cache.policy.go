package emulator

import (
	"fmt"
	"math/rand"
	"strings"
)

type CacheKind uint8

const (
	CACHE_DIRECT_MAPPED     CacheKind = iota // One candidate line per index
	CACHE_SET_ASSOCIATIVE   CacheKind = iota // N candidate lines per index
	CACHE_FULLY_ASSOCIATIVE CacheKind = iota // Every line is a candidate
)

func (kind CacheKind) String() string {
	switch kind {
	case CACHE_DIRECT_MAPPED:
		return "direct"
	case CACHE_SET_ASSOCIATIVE:
		return "set"
	case CACHE_FULLY_ASSOCIATIVE:
		return "full"
	}
	return fmt.Sprintf("CacheKind(%d)", uint8(kind))
}

type WritePolicy uint8

const (
	WRITE_THROUGH WritePolicy = iota // Stores are mirrored to the parent immediately
	WRITE_BACK    WritePolicy = iota // Stores mark the line dirty
)

func (policy WritePolicy) String() string {
	if policy == WRITE_BACK {
		return "back"
	}
	return "through"
}

type ReplacementPolicy uint8

const (
	REPLACEMENT_LRU    ReplacementPolicy = iota // Evict the least recently accessed line
	REPLACEMENT_FIFO   ReplacementPolicy = iota // Evict the oldest fetched line
	REPLACEMENT_RANDOM ReplacementPolicy = iota // Evict a random candidate
)

func (policy ReplacementPolicy) String() string {
	switch policy {
	case REPLACEMENT_FIFO:
		return "fifo"
	case REPLACEMENT_RANDOM:
		return "random"
	}
	return "lru"
}

func parseCacheKind(s string) (CacheKind, error) {
	switch strings.ToLower(s) {
	case "direct", "dm":
		return CACHE_DIRECT_MAPPED, nil
	case "set", "sa":
		return CACHE_SET_ASSOCIATIVE, nil
	case "full", "fa":
		return CACHE_FULLY_ASSOCIATIVE, nil
	}
	return 0, fmt.Errorf("cache: unknown kind %q", s)
}

func parseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(s) {
	case "through", "wt":
		return WRITE_THROUGH, nil
	case "back", "wb":
		return WRITE_BACK, nil
	}
	return 0, fmt.Errorf("cache: unknown write policy %q", s)
}

func parseReplacementPolicy(s string) (ReplacementPolicy, error) {
	switch strings.ToLower(s) {
	case "lru":
		return REPLACEMENT_LRU, nil
	case "fifo":
		return REPLACEMENT_FIFO, nil
	case "random", "rand":
		return REPLACEMENT_RANDOM, nil
	}
	return 0, fmt.Errorf("cache: unknown replacement policy %q", s)
}

// Picks the line to evict among blocks[first:first+ways]. Invalid lines
// are always chosen first
func selectVictim(policy ReplacementPolicy, blocks []CacheBlock, rng *rand.Rand) int {
	for i := range blocks {
		if !blocks[i].Valid {
			return i
		}
	}

	victim := 0
	switch policy {
	case REPLACEMENT_LRU:
		for i := 1; i < len(blocks); i++ {
			if blocks[i].LastAccessTime < blocks[victim].LastAccessTime {
				victim = i
			}
		}
	case REPLACEMENT_FIFO:
		for i := 1; i < len(blocks); i++ {
			if blocks[i].CreationTime < blocks[victim].CreationTime {
				victim = i
			}
		}
	case REPLACEMENT_RANDOM:
		victim = rng.Intn(len(blocks))
	}
	return victim
}
