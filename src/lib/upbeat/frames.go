package upbeat

import (
	"errors"
	"fmt"

	"serenity/src/hardware/riscv"
)

var ErrNoFreeFrames = errors.New("no physical frames available")
var ErrBadFrame = errors.New("address is not a frame of this allocator")
var ErrFrameAlreadyFree = errors.New("frame is already free")

// FrameAllocator hands out zeroed, page aligned, uniquely owned frames.
type FrameAllocator interface {
	AllocateFrame() (uint64, error)
	FreeFrame(pa uint64) error
	Clear(pa uint64)
}

// BitmapFrames keeps one bit per frame of a PhysicalMemory.
type BitmapFrames struct {
	mem   *PhysicalMemory
	inUse *BitSet
	hint  BitIndex
	limit uint32
}

// NewBitmapFrames manages every frame of mem.  The first reserved frames
// are marked in use and never handed out.
func NewBitmapFrames(mem *PhysicalMemory, reserved uint32) (*BitmapFrames, error) {
	n := mem.Frames()
	if reserved > n {
		return nil, fmt.Errorf("reserving %d frames of %d", reserved, n)
	}
	size := (n + 63) &^ 63
	bits, err := NewBitSet(size)
	if err != nil {
		return nil, err
	}
	b := &BitmapFrames{mem: mem, inUse: bits, limit: n}
	for i := uint32(0); i < reserved; i++ {
		bits.Set(BitIndex(i))
	}
	//bits past the end of RAM are never handed out
	for i := n; i < size; i++ {
		bits.Set(BitIndex(i))
	}
	b.hint = BitIndex(reserved)
	return b, nil
}

func (b *BitmapFrames) AllocateFrame() (uint64, error) {
	i, ok := b.inUse.FirstClear(b.hint)
	if !ok {
		i, ok = b.inUse.FirstClear(0)
		if !ok {
			return 0, ErrNoFreeFrames
		}
	}
	b.inUse.Set(i)
	b.hint = i + 1
	pa := b.mem.Base() + uint64(i)*riscv.PageSize
	b.Clear(pa)
	return pa, nil
}

func (b *BitmapFrames) FreeFrame(pa uint64) error {
	i, err := b.index(pa)
	if err != nil {
		return err
	}
	if !b.inUse.On(i) {
		return ErrFrameAlreadyFree
	}
	b.inUse.Clear(i)
	if i < b.hint {
		b.hint = i
	}
	return nil
}

func (b *BitmapFrames) Clear(pa uint64) {
	b.mem.Zero(riscv.PageBase(pa), riscv.PageSize)
}

// InUse reports whether the frame at pa is allocated.
func (b *BitmapFrames) InUse(pa uint64) bool {
	i, err := b.index(pa)
	return err == nil && b.inUse.On(i)
}

func (b *BitmapFrames) FreeCount() int {
	return int(b.inUse.Size()) - b.inUse.Count()
}

func (b *BitmapFrames) index(pa uint64) (BitIndex, error) {
	if pa&(riscv.PageSize-1) != 0 || !b.mem.Contains(pa, riscv.PageSize) {
		return 0, ErrBadFrame
	}
	return BitIndex((pa - b.mem.Base()) / riscv.PageSize), nil
}
