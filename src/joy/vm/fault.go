package vm

import (
	"serenity/src/hardware/riscv"
)

// grant is the set of permissions a demand paged leaf gets for a fault.
func (w *Walker) grant(a Access) riscv.PTEFlag {
	switch a {
	case AccessFetch:
		return riscv.Exec
	case AccessLoad:
		if !w.opts.LoadGrantsWrite {
			return riscv.Read
		}
	}
	return riscv.Read | riscv.Write
}

// HandleFault resolves a page fault at va in the address space root.
// Missing tables are allocated, missing leaves are demand paged or swapped
// back in.  A present leaf whose permissions forbid the access is a
// *ProtectionFault.
func (w *Walker) HandleFault(root, va uint64, a Access) error {
	if riscv.IsKernelAddress(va) || !canonical(va) {
		return ErrKernelAddress
	}
	w.stats.Faults++
	table := root
	for level := 2; level > 0; level-- {
		addr := pteAddr(table, va, level)
		pte := w.load(addr)
		if !pte.Valid() {
			next, err := w.newTable()
			if err != nil {
				return err
			}
			w.store(addr, riscv.MakePTE(next, riscv.Present|riscv.User))
			table = next
			continue
		}
		if pte.IsLeaf() {
			return w.touch(addr, pte, va, a)
		}
		table = pte.Frame()
	}
	addr := pteAddr(table, va, 0)
	pte := w.load(addr)
	if pte.Valid() {
		return w.touch(addr, pte, va, a)
	}

	flags := riscv.Present | riscv.User | w.grant(a)
	var pa uint64
	var err error
	if pte.Has(riscv.Swapped) {
		pa, err = w.swapIn(root, va, pte)
		if err != nil {
			return err
		}
		flags |= pte.Flags() & (riscv.RWX | riscv.User)
	} else {
		pa, err = w.allocFrame(root)
		if err != nil {
			return err
		}
		w.stats.DemandPages++
	}
	// the slot for va was not present, so reclaim never picked it
	w.store(addr, riscv.MakePTE(pa, flags))
	w.log.Debugf("fault %s %#x -> %#x", a, va, pa)
	return nil
}

// touch handles a fault on a present leaf.
func (w *Walker) touch(addr uint64, pte riscv.PTE, va uint64, a Access) error {
	if !permits(pte, a) {
		return &ProtectionFault{VA: va, Access: a, PTE: pte}
	}
	pte = pte.Set(riscv.Accessed)
	if a == AccessStore {
		pte = pte.Set(riscv.Dirty)
	}
	w.store(addr, pte)
	return nil
}

// Translate is the hardware walk: it sets Accessed and Dirty on success
// and reports false where the hart would raise a page fault.
func (w *Walker) Translate(root, va uint64, a Access, user bool) (uint64, bool) {
	if !canonical(va) {
		return 0, false
	}
	table := root
	for level := 2; level >= 0; level-- {
		addr := pteAddr(table, va, level)
		pte := w.load(addr)
		if !pte.Valid() {
			return 0, false
		}
		if !pte.IsLeaf() {
			if level == 0 {
				return 0, false
			}
			table = pte.Frame()
			continue
		}
		if user != pte.Has(riscv.User) || !permits(pte, a) {
			return 0, false
		}
		upd := pte.Set(riscv.Accessed)
		if a == AccessStore {
			upd = upd.Set(riscv.Dirty)
		}
		if upd != pte {
			w.store(addr, upd)
		}
		m := offsetMask(level)
		return pte.Frame()&^m | va&m, true
	}
	return 0, false
}

// allocFrame gets a frame for a page of root, evicting one of root's own
// pages when memory is exhausted.
func (w *Walker) allocFrame(root uint64) (uint64, error) {
	pa, err := w.frames.AllocateFrame()
	if err == nil {
		return pa, nil
	}
	if w.swap == nil {
		return 0, ErrNoMemory
	}
	if err := w.reclaim(root); err != nil {
		w.log.Warnf("reclaim from root %#x failed: %v", root, err)
		return 0, ErrNoMemory
	}
	pa, err = w.frames.AllocateFrame()
	if err != nil {
		return 0, ErrNoMemory
	}
	return pa, nil
}

// MapPage makes sure va is backed by a frame in root, with the given leaf
// flags, and returns the frame.  An existing mapping is kept.
func (w *Walker) MapPage(root, va uint64, flags riscv.PTEFlag) (uint64, error) {
	if riscv.IsKernelAddress(va) || !canonical(va) {
		return 0, ErrKernelAddress
	}
	table := root
	for level := 2; level > 0; level-- {
		addr := pteAddr(table, va, level)
		pte := w.load(addr)
		if !pte.Valid() {
			next, err := w.newTable()
			if err != nil {
				return 0, err
			}
			w.store(addr, riscv.MakePTE(next, riscv.Present|riscv.User))
			table = next
			continue
		}
		if pte.IsLeaf() {
			return 0, ErrNotSwappable
		}
		table = pte.Frame()
	}
	addr := pteAddr(table, va, 0)
	pte := w.load(addr)
	if pte.Valid() {
		return pte.Frame(), nil
	}
	if pte.Has(riscv.Swapped) {
		pa, err := w.swapIn(root, va, pte)
		if err != nil {
			return 0, err
		}
		w.store(addr, riscv.MakePTE(pa, flags|riscv.Present|pte.Flags()&(riscv.RWX|riscv.User)))
		return pa, nil
	}
	pa, err := w.allocFrame(root)
	if err != nil {
		return 0, err
	}
	w.store(addr, riscv.MakePTE(pa, flags|riscv.Present))
	return pa, nil
}

// CopyRange gives dst a private copy of every mapped page of src in
// [start, end).
func (w *Walker) CopyRange(dst, src, start, end uint64) error {
	for va := riscv.PageBase(start); va < end; va += riscv.PageSize {
		srcKVA, err := w.KernelView(src, va)
		if err == ErrUnmapped {
			continue
		}
		if err != nil {
			return err
		}
		//allocating for dst only ever evicts pages of dst, srcKVA stays good
		pa, err := w.MapPage(dst, va, riscv.Read|riscv.Write|riscv.User)
		if err != nil {
			return err
		}
		copy(w.mem.Page(pa), w.mem.Page(riscv.PA(srcKVA)))
	}
	return nil
}

// FreeAll releases every frame, swap slot and table of the address space
// root, including root itself.  Global and Shared entries are left alone.
func (w *Walker) FreeAll(root uint64) error {
	for i2 := uint64(0); i2 < riscv.PTEsPerTable; i2++ {
		a2 := root + i2*riscv.PTESize
		p2 := w.load(a2)
		if p2.Has(riscv.Global) {
			continue
		}
		if err := w.freeEntry(p2, 2); err != nil {
			return err
		}
		w.store(a2, 0)
	}
	return w.frames.FreeFrame(root)
}

func (w *Walker) freeEntry(pte riscv.PTE, level int) error {
	switch {
	case pte.Has(riscv.Swapped) && !pte.Valid():
		if w.swap == nil {
			return ErrBadSwapRecord
		}
		return w.swap.releaseBlock(pte.PFN())
	case !pte.Valid():
		return nil
	case pte.IsLeaf():
		if pte.Any(riscv.Shared|riscv.Global) || level > 0 {
			return nil
		}
		return w.frames.FreeFrame(pte.Frame())
	}
	table := pte.Frame()
	for i := uint64(0); i < riscv.PTEsPerTable; i++ {
		child := w.load(table + i*riscv.PTESize)
		if err := w.freeEntry(child, level-1); err != nil {
			return err
		}
	}
	return w.frames.FreeFrame(table)
}
