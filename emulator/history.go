package emulator

// Changes applied by a single step, enough to revert it
type stepDelta struct {
	registers []registerChange
	memory    []memoryChange
	stats     []CacheStats
	cycles    uint64
	nextID    uint64
	arch      any
	exited    bool
	exitCode  int
	retired   uint64
	irqBefore irqSnapshot
	irqAfter  irqSnapshot
}

type registerChange struct {
	reg   *Register
	value uint32
	owner uint64
	lock  bool // true if the change is a lock change
}

type memoryChange struct {
	address uint32
	old     [4]byte
	size    int
}

// Bounded stack of step deltas. When full, pushing drops the oldest entry
type History struct {
	buffer []*stepDelta
	head   int // Index of the oldest entry
	length int
}

// Returns a history holding at most `limit` steps. A limit of 0 disables
// undo
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{buffer: make([]*stepDelta, limit)}
}

func (history *History) IsEmpty() bool {
	return history.length == 0
}

func (history *History) IsFull() bool {
	return history.length == len(history.buffer)
}

func (history *History) Len() int {
	return history.length
}

func (history *History) Cap() int {
	return len(history.buffer)
}

func (history *History) Clear() {
	clear(history.buffer)
	history.head = 0
	history.length = 0
}

func (history *History) Push(delta *stepDelta) {
	if len(history.buffer) == 0 {
		return
	}
	if history.IsFull() {
		// overwrite the oldest entry
		history.buffer[history.head] = delta
		history.head = (history.head + 1) % len(history.buffer)
		return
	}
	history.buffer[(history.head+history.length)%len(history.buffer)] = delta
	history.length++
}

// Removes and returns the newest entry, nil if the history is empty
func (history *History) Pop() *stepDelta {
	if history.length == 0 {
		return nil
	}
	history.length--
	idx := (history.head + history.length) % len(history.buffer)
	delta := history.buffer[idx]
	history.buffer[idx] = nil
	return delta
}
