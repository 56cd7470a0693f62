package vm

import (
	"fmt"

	"serenity/src/drivers/blockdev"
	"serenity/src/hardware/riscv"
)

//go:generate genny -in=../../gen/doubly_linked.go -out=swaprecord_dl.go -pkg=vm gen "Generic=SwapRecord"

// BlocksPerPage is the number of device blocks that hold one page.
const BlocksPerPage = int(riscv.PageSize / blockdev.BlockSize)

// SwapRecord is one page sized slot of the swap device.  While the page is
// out, the PTE's frame field holds BlockID.
type SwapRecord struct {
	BlockID  uint64
	PageBase uint64
}

// SwapArea is a run of slots on a block device.  Every record is on exactly
// one of the two lists.
type SwapArea struct {
	dev     blockdev.Device
	swapped SwapRecordDoublyLinkedList
	free    SwapRecordDoublyLinkedList
}

// NewSwapArea carves slots page sized slots out of dev, starting at block
// start.
func NewSwapArea(dev blockdev.Device, start uint64, slots int) (*SwapArea, error) {
	need := start + uint64(slots*BlocksPerPage)
	if slots <= 0 || need > dev.Blocks() {
		return nil, fmt.Errorf("swap area of %d slots at block %d does not fit a device of %d blocks",
			slots, start, dev.Blocks())
	}
	s := &SwapArea{
		dev:     dev,
		swapped: NewSwapRecordDoublyLinkedList(),
		free:    NewSwapRecordDoublyLinkedList(),
	}
	for i := 0; i < slots; i++ {
		s.free.Append(&SwapRecord{BlockID: start + uint64(i*BlocksPerPage)})
	}
	return s, nil
}

func (s *SwapArea) FreeSlots() int {
	return s.free.Length()
}

func (s *SwapArea) SwappedPages() int {
	return s.swapped.Length()
}

func (s *SwapArea) find(block uint64) *SwapRecordNodeDL {
	for n := s.swapped.First(); n != nil; n = n.Next() {
		if n.Value().BlockID == block {
			return n
		}
	}
	return nil
}

// writeOut stores a page in a free slot and returns its record.
func (s *SwapArea) writeOut(pageBase uint64, page []byte) (*SwapRecord, error) {
	n := s.free.First()
	if n == nil {
		return nil, ErrSwapFull
	}
	rec := n.Value()
	if err := s.dev.WriteBlocks(page, rec.BlockID, BlocksPerPage); err != nil {
		return nil, err
	}
	s.free.Remove(n)
	rec.PageBase = pageBase
	s.swapped.AppendNode(n)
	return rec, nil
}

// readIn fills page from the slot at block and frees the slot.
func (s *SwapArea) readIn(block, pageBase uint64, page []byte) error {
	n := s.find(block)
	if n == nil || n.Value().PageBase != pageBase {
		return ErrBadSwapRecord
	}
	if err := s.dev.ReadBlocks(page, block, BlocksPerPage); err != nil {
		return err
	}
	s.release(n)
	return nil
}

func (s *SwapArea) releaseBlock(block uint64) error {
	n := s.find(block)
	if n == nil {
		return ErrBadSwapRecord
	}
	s.release(n)
	return nil
}

func (s *SwapArea) release(n *SwapRecordNodeDL) {
	s.swapped.Remove(n)
	n.Value().PageBase = 0
	s.free.AppendNode(n)
}

// SwapOut evicts the resident user page at va: its contents go to a swap
// slot, its frame is freed and the entry is left Swapped and not present.
func (w *Walker) SwapOut(root, va uint64) error {
	if w.swap == nil {
		return ErrNotSwappable
	}
	addr, level, err := w.leafSlot(root, va)
	if err != nil {
		return err
	}
	pte := w.load(addr)
	if level != 0 || !pte.Valid() || !pte.IsLeaf() {
		return ErrUnmapped
	}
	if pte.Any(riscv.Global | riscv.Shared) {
		return ErrNotSwappable
	}
	rec, err := w.swap.writeOut(riscv.PageBase(va), w.mem.Page(pte.Frame()))
	if err != nil {
		return err
	}
	if err := w.frames.FreeFrame(pte.Frame()); err != nil {
		return err
	}
	pte = pte.Clear(riscv.Present | riscv.Accessed | riscv.Dirty).Set(riscv.Swapped).WithPFN(rec.BlockID)
	w.store(addr, pte)
	if w.opts.Flush != nil {
		w.opts.Flush()
	}
	w.stats.SwapOuts++
	w.log.Debugf("swapped out %#x to block %d", va, rec.BlockID)
	return nil
}

func (w *Walker) swapIn(root, va uint64, pte riscv.PTE) (uint64, error) {
	if w.swap == nil || w.swap.find(pte.PFN()) == nil {
		return 0, ErrBadSwapRecord
	}
	pa, err := w.allocFrame(root)
	if err != nil {
		return 0, err
	}
	if err := w.swap.readIn(pte.PFN(), riscv.PageBase(va), w.mem.Page(pa)); err != nil {
		w.frames.FreeFrame(pa)
		return 0, err
	}
	w.stats.SwapIns++
	w.log.Debugf("swapped in %#x from block %d", va, pte.PFN())
	return pa, nil
}

// reclaim evicts one resident page of root, preferring one that has not
// been accessed since the last sweep.
func (w *Walker) reclaim(root uint64) error {
	for pass := 0; pass < 2; pass++ {
		victim, found := uint64(0), false
		w.walkLeaves(root, func(va, addr uint64, pte riscv.PTE) bool {
			if !pte.Valid() || pte.Any(riscv.Global|riscv.Shared) {
				return true
			}
			if pass == 0 && pte.Has(riscv.Accessed) {
				w.store(addr, pte.Clear(riscv.Accessed))
				return true
			}
			victim, found = va, true
			return false
		})
		if found {
			return w.SwapOut(root, victim)
		}
	}
	return ErrNoMemory
}

// walkLeaves calls fn for each 4K leaf slot of the user half of root until
// fn returns false.
func (w *Walker) walkLeaves(root uint64, fn func(va, addr uint64, pte riscv.PTE) bool) {
	for i2 := uint64(0); i2 < riscv.PTEsPerTable; i2++ {
		p2 := w.load(root + i2*riscv.PTESize)
		if !p2.Valid() || p2.IsLeaf() || p2.Has(riscv.Global) {
			continue
		}
		for i1 := uint64(0); i1 < riscv.PTEsPerTable; i1++ {
			p1 := w.load(p2.Frame() + i1*riscv.PTESize)
			if !p1.Valid() || p1.IsLeaf() {
				continue
			}
			for i0 := uint64(0); i0 < riscv.PTEsPerTable; i0++ {
				addr := p1.Frame() + i0*riscv.PTESize
				va := i2<<30 | i1<<21 | i0<<riscv.PageShift
				if i2 >= riscv.PTEsPerTable/2 {
					va |= ^riscv.VAMask
				}
				if !fn(va, addr, w.load(addr)) {
					return
				}
			}
		}
	}
}
