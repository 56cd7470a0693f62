package vm

import (
	"bytes"
	"errors"
	"testing"

	"serenity/src/drivers/blockdev"
	"serenity/src/hardware/riscv"
	"serenity/src/lib/upbeat"
)

const ramBase = 0x80000000

type fixture struct {
	mem    *upbeat.PhysicalMemory
	frames *upbeat.BitmapFrames
	swap   *SwapArea
	w      *Walker
}

func newFixture(t *testing.T, frames uint32, slots int, opts Options) *fixture {
	t.Helper()
	mem := upbeat.NewPhysicalMemory(ramBase, frames)
	fa, err := upbeat.NewBitmapFrames(mem, 0)
	if err != nil {
		t.Fatalf("NewBitmapFrames: %v", err)
	}
	dev := blockdev.NewMemDevice(uint64(slots * BlocksPerPage))
	swap, err := NewSwapArea(dev, 0, slots)
	if err != nil {
		t.Fatalf("NewSwapArea: %v", err)
	}
	w := NewWalker(mem, fa, swap, opts)
	if err := w.InitKernel(); err != nil {
		t.Fatalf("InitKernel: %v", err)
	}
	return &fixture{mem: mem, frames: fa, swap: swap, w: w}
}

func (f *fixture) root(t *testing.T) uint64 {
	t.Helper()
	root, err := f.w.NewRoot()
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}

func TestDemandPageIsZeroed(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	root := f.root(t)
	const va = 0x10000
	if _, ok := f.w.Translate(root, va, AccessStore, true); ok {
		t.Fatalf("unmapped page translated")
	}
	if err := f.w.HandleFault(root, va, AccessStore); err != nil {
		t.Fatalf("HandleFault: %v", err)
	}
	pa, err := f.w.Resolve(root, va+0x10)
	if err != nil {
		t.Fatalf("Resolve after fault: %v", err)
	}
	if pa&(riscv.PageSize-1) != 0x10 {
		t.Errorf("page offset lost: %#x", pa)
	}
	if !bytes.Equal(f.mem.Page(pa), make([]byte, riscv.PageSize)) {
		t.Errorf("demand paged frame is not zero filled")
	}
}

func TestGrantByCause(t *testing.T) {
	tests := []struct {
		name      string
		access    Access
		loadWrite bool
		want      riscv.PTEFlag
		not       riscv.PTEFlag
	}{
		{"fetch", AccessFetch, true, riscv.Exec, riscv.Read | riscv.Write},
		{"load", AccessLoad, true, riscv.Read | riscv.Write, riscv.Exec},
		{"load read only", AccessLoad, false, riscv.Read, riscv.Write | riscv.Exec},
		{"store", AccessStore, true, riscv.Read | riscv.Write, riscv.Exec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 64, 8, Options{LoadGrantsWrite: tt.loadWrite})
			root := f.root(t)
			if err := f.w.HandleFault(root, 0x4000, tt.access); err != nil {
				t.Fatalf("HandleFault: %v", err)
			}
			pte, err := f.w.Lookup(root, 0x4000)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if !pte.Has(tt.want|riscv.Present|riscv.User) || pte.Any(tt.not) {
				t.Errorf("installed %s", pte)
			}
		})
	}
}

func TestFaultIsIdempotent(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	root := f.root(t)
	for i, a := range []Access{AccessLoad, AccessStore, AccessFetch} {
		va := uint64(0x200000 + i*0x1000)
		if _, ok := f.w.Translate(root, va, a, true); ok {
			t.Fatalf("%s: translated before the fault", a)
		}
		if err := f.w.HandleFault(root, va, a); err != nil {
			t.Fatalf("%s: HandleFault: %v", a, err)
		}
		faults := f.w.Stats().Faults
		if _, ok := f.w.Translate(root, va, a, true); !ok {
			t.Errorf("%s: retried access faulted again", a)
		}
		if f.w.Stats().Faults != faults {
			t.Errorf("%s: fault count moved on retry", a)
		}
	}
	pte, _ := f.w.Lookup(root, 0x201000)
	if !pte.Has(riscv.Accessed | riscv.Dirty) {
		t.Errorf("hardware walk did not set A/D: %s", pte)
	}
}

func TestProtectionFault(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: false})
	root := f.root(t)
	if err := f.w.HandleFault(root, 0x8000, AccessLoad); err != nil {
		t.Fatalf("HandleFault: %v", err)
	}
	if _, ok := f.w.Translate(root, 0x8000, AccessStore, true); ok {
		t.Fatalf("store allowed on a read only page")
	}
	err := f.w.HandleFault(root, 0x8000, AccessStore)
	var pf *ProtectionFault
	if !errors.As(err, &pf) {
		t.Fatalf("expected a protection fault, got %v", err)
	}
	if pf.VA != 0x8000 || pf.Access != AccessStore {
		t.Errorf("fault fields wrong: %+v", pf)
	}
	if err := f.w.HandleFault(root, riscv.KVA(ramBase), AccessLoad); err != ErrKernelAddress {
		t.Errorf("kernel address fault returned %v", err)
	}
}

func TestSwapRoundTrip(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	root := f.root(t)
	const va = 0x30000
	want := make([]byte, riscv.PageSize)
	for i := range want {
		want[i] = byte(i*13 + 1)
	}
	if err := f.w.HandleFault(root, va, AccessStore); err != nil {
		t.Fatalf("HandleFault: %v", err)
	}
	if err := f.w.WriteUser(root, va, want); err != nil {
		t.Fatalf("WriteUser: %v", err)
	}
	if err := f.w.SwapOut(root, va); err != nil {
		t.Fatalf("SwapOut: %v", err)
	}
	pte, _ := f.w.Lookup(root, va)
	if pte.Valid() || !pte.Has(riscv.Swapped) {
		t.Fatalf("entry after swap out: %s", pte)
	}
	if f.swap.SwappedPages() != 1 || f.swap.find(pte.PFN()) == nil {
		t.Errorf("no swap record for block %d", pte.PFN())
	}
	if _, ok := f.w.Translate(root, va, AccessLoad, true); ok {
		t.Fatalf("swapped page translated")
	}
	if err := f.w.HandleFault(root, va, AccessLoad); err != nil {
		t.Fatalf("swap in: %v", err)
	}
	got := make([]byte, riscv.PageSize)
	if err := f.w.ReadUser(root, va, got); err != nil {
		t.Fatalf("ReadUser: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("page contents changed across swap")
	}
	if f.swap.FreeSlots() != 8 || f.swap.SwappedPages() != 0 {
		t.Errorf("slot not returned: free %d swapped %d", f.swap.FreeSlots(), f.swap.SwappedPages())
	}
	if f.w.Stats().SwapIns != 1 || f.w.Stats().SwapOuts != 1 {
		t.Errorf("stats %+v", f.w.Stats())
	}
}

func TestReclaimWhenMemoryRunsOut(t *testing.T) {
	f := newFixture(t, 32, 64, Options{LoadGrantsWrite: true})
	root := f.root(t)
	const pages = 40
	for i := 0; i < pages; i++ {
		va := uint64(0x100000 + i*int(riscv.PageSize))
		if err := f.w.HandleFault(root, va, AccessStore); err != nil {
			t.Fatalf("fault %d: %v", i, err)
		}
		if err := f.w.WriteUser(root, va, []byte{byte(i), byte(i + 1)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if f.w.Stats().SwapOuts == 0 {
		t.Fatalf("nothing was evicted")
	}
	buf := make([]byte, 2)
	for i := 0; i < pages; i++ {
		va := uint64(0x100000 + i*int(riscv.PageSize))
		if err := f.w.ReadUser(root, va, buf); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if buf[0] != byte(i) || buf[1] != byte(i+1) {
			t.Errorf("page %d holds %v", i, buf)
		}
	}
}

func TestFreeAllReturnsEverything(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	before := f.frames.FreeCount()
	root := f.root(t)
	for _, va := range []uint64{0x1000, 0x2000, 0x40000000, 0x3fffff000} {
		if err := f.w.HandleFault(root, va, AccessStore); err != nil {
			t.Fatalf("fault %#x: %v", va, err)
		}
	}
	if err := f.w.SwapOut(root, 0x2000); err != nil {
		t.Fatalf("SwapOut: %v", err)
	}
	if err := f.w.FreeAll(root); err != nil {
		t.Fatalf("FreeAll: %v", err)
	}
	if f.frames.FreeCount() != before {
		t.Errorf("leaked %d frames", before-f.frames.FreeCount())
	}
	if f.swap.FreeSlots() != 8 {
		t.Errorf("leaked swap slots")
	}
	if _, err := f.w.Resolve(f.w.KernelRoot(), riscv.KVA(ramBase)); err != nil {
		t.Errorf("kernel window damaged by FreeAll: %v", err)
	}
}

func TestKernelWindow(t *testing.T) {
	f := newFixture(t, 64, 8, Options{})
	k := f.w.KernelRoot()
	pa, err := f.w.Resolve(k, riscv.KVA(ramBase+0x1234))
	if err != nil || pa != ramBase+0x1234 {
		t.Fatalf("kernel window resolve = %#x, %v", pa, err)
	}
	if _, err := f.w.Resolve(k, ramBase); err != nil {
		t.Errorf("boot window missing before scrub: %v", err)
	}
	if err := f.w.UnmapBootWindow(); err != nil {
		t.Fatalf("UnmapBootWindow: %v", err)
	}
	if _, err := f.w.Resolve(k, ramBase); err != ErrUnmapped {
		t.Errorf("boot window still mapped: %v", err)
	}
	root := f.root(t)
	if pa, err := f.w.Resolve(root, riscv.KVA(ramBase)); err != nil || pa != ramBase {
		t.Errorf("new root does not share the kernel window: %#x %v", pa, err)
	}
	if _, ok := f.w.Translate(root, riscv.KVA(ramBase), AccessLoad, true); ok {
		t.Errorf("user access to the kernel window allowed")
	}
}

func TestCopyRange(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	src := f.root(t)
	dst := f.root(t)
	for _, va := range []uint64{0x7000, 0x9000} {
		f.w.HandleFault(src, va, AccessStore)
		f.w.WriteUser(src, va, []byte("stack"))
	}
	if err := f.w.CopyRange(dst, src, 0x7000, 0xa000); err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	if _, err := f.w.Resolve(dst, 0x8000); err != ErrUnmapped {
		t.Errorf("hole in the source was mapped in the copy")
	}
	f.w.WriteUser(src, 0x7000, []byte("STACK"))
	buf := make([]byte, 5)
	f.w.ReadUser(dst, 0x7000, buf)
	if string(buf) != "stack" {
		t.Errorf("copy shares storage with the source: %q", buf)
	}
}

func TestCopyRangeEvictsOnlyFromTheCopy(t *testing.T) {
	f := newFixture(t, 64, 64, Options{LoadGrantsWrite: true})
	src := f.root(t)
	const pages = 12
	for i := 0; i < pages; i++ {
		va := uint64(0x100000 + i*int(riscv.PageSize))
		if err := f.w.HandleFault(src, va, AccessStore); err != nil {
			t.Fatalf("fault %d: %v", i, err)
		}
		f.w.WriteUser(src, va, []byte{'p', byte(i)})
	}
	dst := f.root(t)
	var held []uint64
	for {
		pa, err := f.frames.AllocateFrame()
		if err != nil {
			break
		}
		held = append(held, pa)
	}
	//two tables and two pages for the copy, the rest comes from eviction
	for _, pa := range held[:4] {
		f.frames.FreeFrame(pa)
	}
	if err := f.w.CopyRange(dst, src, 0x100000, 0x100000+pages*riscv.PageSize); err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	if f.w.Stats().SwapOuts == 0 {
		t.Fatalf("the copy never ran out of frames")
	}
	buf := make([]byte, 2)
	for i := 0; i < pages; i++ {
		va := uint64(0x100000 + i*int(riscv.PageSize))
		pte, err := f.w.Lookup(src, va)
		if err != nil || !pte.Valid() {
			t.Errorf("source page %d was evicted: %v %v", i, pte, err)
		}
		if err := f.w.ReadUser(dst, va, buf); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if buf[0] != 'p' || buf[1] != byte(i) {
			t.Errorf("copied page %d holds %v", i, buf)
		}
	}
}

func TestReadString(t *testing.T) {
	f := newFixture(t, 64, 8, Options{LoadGrantsWrite: true})
	root := f.root(t)
	// straddle a page boundary
	va := uint64(0x5ffe)
	f.w.HandleFault(root, 0x5000, AccessStore)
	f.w.HandleFault(root, 0x6000, AccessStore)
	f.w.WriteUser(root, va, []byte("shell\x00"))
	s, err := f.w.ReadString(root, va, 64)
	if err != nil || s != "shell" {
		t.Errorf("ReadString = %q, %v", s, err)
	}
	if _, err := f.w.ReadString(root, 0x900000, 64); err != ErrUnmapped {
		t.Errorf("unmapped string returned %v", err)
	}
}

func TestClearTable(t *testing.T) {
	f := newFixture(t, 64, 8, Options{})
	root := f.root(t)
	f.mem.Store64(root+8, 0xffff)
	f.w.ClearTable(root)
	for i := uint64(0); i < riscv.PTEsPerTable; i++ {
		if f.mem.Load64(root+i*riscv.PTESize) != 0 {
			t.Fatalf("entry %d survived ClearTable", i)
		}
	}
}
