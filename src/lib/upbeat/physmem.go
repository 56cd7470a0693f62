package upbeat

import (
	"encoding/binary"
	"fmt"

	"serenity/src/hardware/riscv"
)

// PhysicalMemory is the RAM of the machine, addressed by physical
// address starting at Base.
type PhysicalMemory struct {
	base uint64
	data []byte
}

func NewPhysicalMemory(base uint64, frames uint32) *PhysicalMemory {
	return &PhysicalMemory{
		base: base,
		data: make([]byte, uint64(frames)*riscv.PageSize),
	}
}

func (m *PhysicalMemory) Base() uint64 {
	return m.base
}

// End is the first physical address past the end of RAM.
func (m *PhysicalMemory) End() uint64 {
	return m.base + uint64(len(m.data))
}

func (m *PhysicalMemory) Frames() uint32 {
	return uint32(uint64(len(m.data)) / riscv.PageSize)
}

func (m *PhysicalMemory) Contains(pa uint64, n uint64) bool {
	return pa >= m.base && pa+n >= pa && pa+n <= m.End()
}

// Bytes returns the n bytes at pa.  The slice aliases RAM.
func (m *PhysicalMemory) Bytes(pa uint64, n uint64) []byte {
	if !m.Contains(pa, n) {
		panic(fmt.Sprintf("physical access outside RAM: %#x+%d", pa, n))
	}
	off := pa - m.base
	return m.data[off : off+n : off+n]
}

// Page returns the frame that contains pa.
func (m *PhysicalMemory) Page(pa uint64) []byte {
	return m.Bytes(riscv.PageBase(pa), riscv.PageSize)
}

func (m *PhysicalMemory) Load64(pa uint64) uint64 {
	return binary.LittleEndian.Uint64(m.Bytes(pa, 8))
}

func (m *PhysicalMemory) Store64(pa uint64, v uint64) {
	binary.LittleEndian.PutUint64(m.Bytes(pa, 8), v)
}

func (m *PhysicalMemory) Zero(pa uint64, n uint64) {
	b := m.Bytes(pa, n)
	for i := range b {
		b[i] = 0
	}
}
