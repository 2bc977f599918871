package emulator

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Byte addressable memory. Caches implement it too, so hierarchies can be
// stacked freely. Every setter returns the value it replaced
type Memory interface {
	GetByte(address uint32) (byte, error)
	SetByte(address uint32, val byte) (byte, error)
	GetHalfword(address uint32) (uint16, error)
	SetHalfword(address uint32, val uint16) (uint16, error)
	GetWord(address uint32) (uint32, error)
	SetWord(address uint32, val uint32) (uint32, error)

	// Writes raw bytes through the whole hierarchy without touching
	// statistics or replacement state. Used to load programs and undo steps
	RestoreBytes(address uint32, data []byte) error

	IsBigEndian() bool
	Clone() Memory
	Reset()
}

// Merges 4 bytes into a word. Big endian stores byte 0 at the highest
// order position
func MergeWord(b []byte, bigEndian bool) uint32 {
	if bigEndian {
		return binary.BigEndian.Uint32(b)
	}
	return binary.LittleEndian.Uint32(b)
}

// Splits a word into 4 bytes
func SplitWord(word uint32, bigEndian bool) [4]byte {
	var b [4]byte
	if bigEndian {
		binary.BigEndian.PutUint32(b[:], word)
	} else {
		binary.LittleEndian.PutUint32(b[:], word)
	}
	return b
}

func mergeHalfword(b []byte, bigEndian bool) uint16 {
	if bigEndian {
		return binary.BigEndian.Uint16(b)
	}
	return binary.LittleEndian.Uint16(b)
}

func splitHalfword(half uint16, bigEndian bool) [2]byte {
	var b [2]byte
	if bigEndian {
		binary.BigEndian.PutUint16(b[:], half)
	} else {
		binary.LittleEndian.PutUint16(b[:], half)
	}
	return b
}

// Flat memory made of non overlapping sections
type SectionedMemory struct {
	Sections  []*MemorySection
	bigEndian bool
}

// Creates a memory from `sections`. Fails if two sections overlap
func NewSectionedMemory(bigEndian bool, sections ...*MemorySection) (*SectionedMemory, error) {
	sorted := append([]*MemorySection(nil), sections...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start < sorted[j].Range.Start
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Range.Overlaps(sorted[i].Range) {
			return nil, fmt.Errorf("memory: section %v overlaps %v", sorted[i-1], sorted[i])
		}
	}
	return &SectionedMemory{Sections: sorted, bigEndian: bigEndian}, nil
}

// Creates the default MIPS32 memory layout
func NewMIPS32Memory(bigEndian bool) *SectionedMemory {
	mem, err := NewSectionedMemory(bigEndian,
		NewMemorySection("text", 0x00400000, 0x0fc00000, DEFAULT_CELL_SIZE),
		NewMemorySection("data", 0x10000000, 0x70000000, DEFAULT_CELL_SIZE),
		NewMemorySection("kernel", 0x80000000, 0x7fff0000, DEFAULT_CELL_SIZE),
		NewMemorySection("mmio", 0xffff0000, 0x00010000, DEFAULT_CELL_SIZE),
	)
	if err != nil {
		panicFmt("memory: invalid default layout: %v", err)
	}
	return mem
}

// Returns the section containing `address`, nil if there's none
func (mem *SectionedMemory) Section(address uint32) *MemorySection {
	idx := sort.Search(len(mem.Sections), func(i int) bool {
		return mem.Sections[i].Range.End() > uint64(address)
	})
	if idx < len(mem.Sections) && mem.Sections[idx].Range.Contains(address) {
		return mem.Sections[idx]
	}
	return nil
}

// Checks that [address, address+size) is aligned and inside one section
func (mem *SectionedMemory) check(address, size uint32, store bool) (*MemorySection, error) {
	if address%size != 0 {
		return nil, unaligned(address, store)
	}
	section := mem.Section(address)
	if section == nil || !section.Range.Contains(address+size-1) {
		return nil, outOfBounds(address, store)
	}
	return section, nil
}

func (mem *SectionedMemory) load(address uint32, dst []byte) error {
	section, err := mem.check(address, uint32(len(dst)), false)
	if err != nil {
		return err
	}
	section.load(address, dst)
	return nil
}

// Stores `src` and leaves the previous contents in `old`
func (mem *SectionedMemory) store(address uint32, src, old []byte) error {
	section, err := mem.check(address, uint32(len(src)), true)
	if err != nil {
		return err
	}
	section.load(address, old)
	section.store(address, src)
	return nil
}

func (mem *SectionedMemory) GetByte(address uint32) (byte, error) {
	var b [1]byte
	err := mem.load(address, b[:])
	return b[0], err
}

func (mem *SectionedMemory) SetByte(address uint32, val byte) (byte, error) {
	var old [1]byte
	err := mem.store(address, []byte{val}, old[:])
	return old[0], err
}

func (mem *SectionedMemory) GetHalfword(address uint32) (uint16, error) {
	var b [2]byte
	if err := mem.load(address, b[:]); err != nil {
		return 0, err
	}
	return mergeHalfword(b[:], mem.bigEndian), nil
}

func (mem *SectionedMemory) SetHalfword(address uint32, val uint16) (uint16, error) {
	var old [2]byte
	b := splitHalfword(val, mem.bigEndian)
	if err := mem.store(address, b[:], old[:]); err != nil {
		return 0, err
	}
	return mergeHalfword(old[:], mem.bigEndian), nil
}

func (mem *SectionedMemory) GetWord(address uint32) (uint32, error) {
	var b [4]byte
	if err := mem.load(address, b[:]); err != nil {
		return 0, err
	}
	return MergeWord(b[:], mem.bigEndian), nil
}

func (mem *SectionedMemory) SetWord(address uint32, val uint32) (uint32, error) {
	var old [4]byte
	b := SplitWord(val, mem.bigEndian)
	if err := mem.store(address, b[:], old[:]); err != nil {
		return 0, err
	}
	return MergeWord(old[:], mem.bigEndian), nil
}

func (mem *SectionedMemory) RestoreBytes(address uint32, data []byte) error {
	for i, b := range data {
		addr := address + uint32(i)
		section := mem.Section(addr)
		if section == nil {
			return outOfBounds(addr, true)
		}
		section.store(addr, []byte{b})
	}
	return nil
}

func (mem *SectionedMemory) IsBigEndian() bool {
	return mem.bigEndian
}

// Switches the byte order used to merge and split words
func (mem *SectionedMemory) SetBigEndian(bigEndian bool) {
	mem.bigEndian = bigEndian
}

func (mem *SectionedMemory) Clone() Memory {
	c := &SectionedMemory{
		Sections:  make([]*MemorySection, len(mem.Sections)),
		bigEndian: mem.bigEndian,
	}
	for i, section := range mem.Sections {
		c.Sections[i] = section.clone()
	}
	return c
}

// Drops every allocated cell
func (mem *SectionedMemory) Reset() {
	for _, section := range mem.Sections {
		section.reset()
	}
}
