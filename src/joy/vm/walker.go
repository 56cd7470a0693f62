package vm

import (
	"serenity/src/hardware/riscv"
	"serenity/src/lib/trust"
	"serenity/src/lib/upbeat"
)

// Options change how faults are resolved.
type Options struct {
	// LoadGrantsWrite makes a load fault install a writable page, so a
	// later store to the same page does not fault again.
	LoadGrantsWrite bool
	// Flush is called after an entry that may be cached is invalidated.
	Flush func()
}

type Stats struct {
	Faults      uint64
	DemandPages uint64
	SwapIns     uint64
	SwapOuts    uint64
	Tables      uint64
}

// Walker builds and walks Sv39 page tables that live in physical memory.
// It is not safe for concurrent use; the kernel calls it with preemption
// disabled.
type Walker struct {
	mem        *upbeat.PhysicalMemory
	frames     upbeat.FrameAllocator
	swap       *SwapArea
	opts       Options
	kernelRoot uint64
	bootTable  uint64
	stats      Stats
	log        *trust.Logger
}

// NewWalker returns a walker over mem.  swap may be nil, in which case
// pages are never evicted.
func NewWalker(mem *upbeat.PhysicalMemory, frames upbeat.FrameAllocator,
	swap *SwapArea, opts Options) *Walker {
	return &Walker{
		mem:    mem,
		frames: frames,
		swap:   swap,
		opts:   opts,
		log:    trust.For("vm"),
	}
}

func (w *Walker) Memory() *upbeat.PhysicalMemory {
	return w.mem
}

func (w *Walker) Swap() *SwapArea {
	return w.swap
}

func (w *Walker) Stats() Stats {
	return w.stats
}

func (w *Walker) KernelRoot() uint64 {
	return w.kernelRoot
}

func pteAddr(table uint64, va uint64, level int) uint64 {
	return table + riscv.VPN(va, level)*riscv.PTESize
}

func (w *Walker) load(addr uint64) riscv.PTE {
	return riscv.PTE(w.mem.Load64(addr))
}

func (w *Walker) store(addr uint64, pte riscv.PTE) {
	w.mem.Store64(addr, uint64(pte))
}

// ClearTable zeroes all 512 entries of the table at pa.
func (w *Walker) ClearTable(pa uint64) {
	w.mem.Zero(riscv.PageBase(pa), riscv.PageSize)
}

func (w *Walker) newTable() (uint64, error) {
	pa, err := w.frames.AllocateFrame()
	if err != nil {
		return 0, ErrNoMemory
	}
	w.ClearTable(pa)
	w.stats.Tables++
	return pa, nil
}

// NewRoot allocates an empty address space that shares the kernel window.
func (w *Walker) NewRoot() (uint64, error) {
	root, err := w.newTable()
	if err != nil {
		return 0, err
	}
	w.ShareKernel(root)
	return root, nil
}

// ShareKernel copies the kernel's top level entries into root.
func (w *Walker) ShareKernel(root uint64) {
	if w.kernelRoot == 0 {
		return
	}
	for i := uint64(0); i < riscv.PTEsPerTable; i++ {
		pte := w.load(w.kernelRoot + i*riscv.PTESize)
		if pte.Valid() && pte.Has(riscv.Global) {
			w.store(root+i*riscv.PTESize, pte)
		}
	}
}

func canonical(va uint64) bool {
	top := va >> 38
	return top == 0 || top == (^uint64(0))>>38
}

// leafSlot walks to the entry that maps va: the level 0 slot, or a large
// leaf found higher up.  Missing intermediate tables are ErrUnmapped.
func (w *Walker) leafSlot(root, va uint64) (uint64, int, error) {
	if !canonical(va) {
		return 0, 0, ErrUnmapped
	}
	table := root
	for level := 2; level > 0; level-- {
		addr := pteAddr(table, va, level)
		pte := w.load(addr)
		if !pte.Valid() {
			return 0, 0, ErrUnmapped
		}
		if pte.IsLeaf() {
			return addr, level, nil
		}
		table = pte.Frame()
	}
	return pteAddr(table, va, 0), 0, nil
}

// Lookup returns the entry that maps va even if it is not present.
func (w *Walker) Lookup(root, va uint64) (riscv.PTE, error) {
	addr, _, err := w.leafSlot(root, va)
	if err != nil {
		return 0, err
	}
	return w.load(addr), nil
}

func offsetMask(level int) uint64 {
	return uint64(1)<<(riscv.PageShift+9*uint(level)) - 1
}

// Resolve translates va without changing anything.  It fails if any level
// is absent.
func (w *Walker) Resolve(root, va uint64) (uint64, error) {
	addr, level, err := w.leafSlot(root, va)
	if err != nil {
		return 0, err
	}
	pte := w.load(addr)
	if !pte.Valid() || !pte.IsLeaf() {
		return 0, ErrUnmapped
	}
	m := offsetMask(level)
	return pte.Frame()&^m | va&m, nil
}

// KernelView turns a user pointer into the kernel window address of the
// same byte.  A swapped out page is brought back first.
func (w *Walker) KernelView(root, va uint64) (uint64, error) {
	if riscv.IsKernelAddress(va) {
		return va, nil
	}
	pa, err := w.Resolve(root, va)
	if err == nil {
		return riscv.KVA(pa), nil
	}
	pte, lerr := w.Lookup(root, va)
	if lerr != nil || !pte.Has(riscv.Swapped) {
		return 0, err
	}
	if err := w.HandleFault(root, va, AccessLoad); err != nil {
		return 0, err
	}
	pa, err = w.Resolve(root, va)
	if err != nil {
		return 0, err
	}
	return riscv.KVA(pa), nil
}

// ReadUser copies len(buf) bytes at user address va into buf.
func (w *Walker) ReadUser(root, va uint64, buf []byte) error {
	return w.userCopy(root, va, buf, false)
}

// WriteUser copies buf to user address va.
func (w *Walker) WriteUser(root, va uint64, buf []byte) error {
	return w.userCopy(root, va, buf, true)
}

func (w *Walker) userCopy(root, va uint64, buf []byte, toUser bool) error {
	for len(buf) > 0 {
		n := riscv.PageSize - va&(riscv.PageSize-1)
		if n > uint64(len(buf)) {
			n = uint64(len(buf))
		}
		kva, err := w.KernelView(root, va)
		if err != nil {
			return err
		}
		mem := w.mem.Bytes(riscv.PA(kva), n)
		if toUser {
			copy(mem, buf[:n])
		} else {
			copy(buf[:n], mem)
		}
		buf = buf[n:]
		va += n
	}
	return nil
}

// ReadString reads a NUL terminated string of at most max bytes.
func (w *Walker) ReadString(root, va uint64, max int) (string, error) {
	var out []byte
	b := make([]byte, 1)
	for len(out) < max {
		if err := w.ReadUser(root, va, b); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
		va++
	}
	return string(out), nil
}
