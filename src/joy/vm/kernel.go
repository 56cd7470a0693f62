package vm

import (
	"serenity/src/hardware/riscv"
)

const kernelLeaf = riscv.Present | riscv.RWX | riscv.Global | riscv.Accessed | riscv.Dirty

// InitKernel builds the kernel root table.  All of RAM is mapped at its
// kernel window address with 2M leaves, and once more at its physical
// address for the boot path (see UnmapBootWindow).
func (w *Walker) InitKernel() error {
	root, err := w.newTable()
	if err != nil {
		return err
	}
	w.kernelRoot = root
	base := w.mem.Base() &^ (riscv.LargePageSize - 1)
	for pa := base; pa < w.mem.End(); pa += riscv.LargePageSize {
		if err := w.mapLarge(root, riscv.KVA(pa), pa, kernelLeaf); err != nil {
			return err
		}
		if err := w.mapLarge(root, pa, pa, kernelLeaf&^riscv.Global); err != nil {
			return err
		}
	}
	w.bootTable = w.load(pteAddr(root, base, 2)).Frame()
	return nil
}

func (w *Walker) mapLarge(root, va, pa uint64, flags riscv.PTEFlag) error {
	addr := pteAddr(root, va, 2)
	pte := w.load(addr)
	if !pte.Valid() {
		table, err := w.newTable()
		if err != nil {
			return err
		}
		pte = riscv.MakePTE(table, riscv.Present|flags&riscv.Global)
		w.store(addr, pte)
	}
	w.store(pteAddr(pte.Frame(), va, 1), riscv.MakePTE(pa, flags))
	return nil
}

// UnmapBootWindow scrubs the identity mapping used during boot.  After
// this only the kernel window reaches RAM.
func (w *Walker) UnmapBootWindow() error {
	if w.bootTable == 0 {
		return nil
	}
	w.ClearTable(w.bootTable)
	w.store(pteAddr(w.kernelRoot, w.mem.Base(), 2), 0)
	if err := w.frames.FreeFrame(w.bootTable); err != nil {
		return err
	}
	w.bootTable = 0
	if w.opts.Flush != nil {
		w.opts.Flush()
	}
	return nil
}
