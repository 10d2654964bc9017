// Package blockmap translates logical block indices into physical slots of a
// backing file. Slots are handed out in order of first use and never freed.
package blockmap

import (
	"fmt"

	"github.com/golang/glog"
)

const unallocated = -1

// Extender grows the backing store by a zeroed region of n bytes starting at
// off. off is always the current end of the store.
type Extender interface {
	Extend(off, n int64) error
}

// Map is a fixed-capacity table of logical block -> physical slot.
type Map struct {
	blockSize int64
	slots     []int64

	// cfsize is the number of slots handed out so far. Allocated slots are
	// exactly 0..cfsize-1.
	cfsize int64
}

func New(blockSize int64, blockCount uint32) *Map {
	m := &Map{
		blockSize: blockSize,
		slots:     make([]int64, blockCount),
	}
	for i := range m.slots {
		m.slots[i] = unallocated
	}
	return m
}

// Resolve returns the byte offset of block inside the backing store,
// allocating a new slot at the end of the store on first touch.
func (m *Map) Resolve(block uint32, e Extender) (int64, error) {
	if int(block) >= len(m.slots) {
		panic(fmt.Sprintf("blockmap: block %d out of range [0, %d)", block, len(m.slots)))
	}

	slot := m.slots[block]
	if slot == unallocated {
		slot = m.cfsize
		// the entry stays unallocated until the store has actually grown
		err := e.Extend(slot*m.blockSize, m.blockSize)
		if err != nil {
			return 0, fmt.Errorf("unable to allocate slot for block %d: %w", block, err)
		}
		m.slots[block] = slot
		m.cfsize++
		if glog.V(2) {
			glog.Infof("blockmap: block %d -> slot %d", block, slot)
		}
	}

	return slot * m.blockSize, nil
}

// Slot reports the physical slot of block, if any.
func (m *Map) Slot(block uint32) (int64, bool) {
	if int(block) >= len(m.slots) {
		return 0, false
	}
	s := m.slots[block]
	return s, s != unallocated
}

// Len is the number of allocated slots.
func (m *Map) Len() int64 {
	return m.cfsize
}

// Cap is the number of logical blocks the map covers.
func (m *Map) Cap() uint32 {
	return uint32(len(m.slots))
}
