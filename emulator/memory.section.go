package emulator

import "fmt"

const DEFAULT_CELL_SIZE uint32 = 0x10000 // 64KB pages

// Fixed-size page of bytes. Cells are allocated the first time a value
// is written to them
type MemoryCell struct {
	Data []byte
}

func NewMemoryCell(size uint32) *MemoryCell {
	return &MemoryCell{Data: make([]byte, size)}
}

// Copies `len(dst)` bytes starting at `offset` into dst
func (cell *MemoryCell) Load(offset uint32, dst []byte) {
	copy(dst, cell.Data[offset:])
}

// Copies `src` into the cell starting at `offset`
func (cell *MemoryCell) Store(offset uint32, src []byte) {
	copy(cell.Data[offset:], src)
}

// Named address range of a Memory
type MemorySection struct {
	Name     string
	Range    Range
	CellSize uint32

	cells map[uint32]*MemoryCell
}

// Creates a section covering [first, first+length). The cell size is
// rounded up to a power of two multiple of 4
func NewMemorySection(name string, first, length, cellSize uint32) *MemorySection {
	cellSize = ceilPowerOfTwo(cellSize)
	if cellSize < 4 {
		cellSize = 4
	}
	return &MemorySection{
		Name:     name,
		Range:    NewRange(first, length),
		CellSize: cellSize,
		cells:    make(map[uint32]*MemoryCell),
	}
}

func (section *MemorySection) String() string {
	return fmt.Sprintf("%s [0x%08x, 0x%09x)", section.Name, section.Range.Start, section.Range.End())
}

// Returns the number of cells allocated so far
func (section *MemorySection) AllocatedCells() int {
	return len(section.cells)
}

func (section *MemorySection) locate(address uint32) (uint32, uint32) {
	offset := section.Range.Offset(address)
	return offset / section.CellSize, offset % section.CellSize
}

// Reads `len(dst)` bytes at `address`. The access must not cross a cell.
// Reading an unallocated cell yields zeroes without allocating it
func (section *MemorySection) load(address uint32, dst []byte) {
	index, offset := section.locate(address)
	cell, ok := section.cells[index]
	if !ok {
		clear(dst)
		return
	}
	cell.Load(offset, dst)
}

// Writes `src` at `address`, allocating the cell if needed
func (section *MemorySection) store(address uint32, src []byte) {
	index, offset := section.locate(address)
	cell, ok := section.cells[index]
	if !ok {
		cell = NewMemoryCell(section.CellSize)
		section.cells[index] = cell
	}
	cell.Store(offset, src)
}

func (section *MemorySection) clone() *MemorySection {
	c := &MemorySection{
		Name:     section.Name,
		Range:    section.Range,
		CellSize: section.CellSize,
		cells:    make(map[uint32]*MemoryCell, len(section.cells)),
	}
	for idx, cell := range section.cells {
		data := make([]byte, len(cell.Data))
		copy(data, cell.Data)
		c.cells[idx] = &MemoryCell{Data: data}
	}
	return c
}

func (section *MemorySection) reset() {
	section.cells = make(map[uint32]*MemoryCell)
}
