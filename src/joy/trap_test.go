package joy

import (
	"errors"
	"strings"
	"testing"

	"serenity/src/drivers/blockdev"
	"serenity/src/hardware/console"
	"serenity/src/hardware/riscv"
	"serenity/src/lib/loader"
)

// runChild starts a parent that spawns child and returns child's exit
// status.
func runChild(t *testing.T, k *Kernel, child *Program) int {
	t.Helper()
	status := -1
	register(t, k, child, &Program{Name: "parent", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		tid, err := p.Spawn(child.Name, 0)
		if err != nil {
			return
		}
		_, status, _ = p.Wait4(tid)
	}})
	start(t, k, "parent", 0)
	mustRun(t, k)
	return status
}

func TestSegfaultOnKernelAddress(t *testing.T) {
	k, screen := newTestKernel(t, nil)
	reached := false
	status := runChild(t, k, &Program{Name: "snoop", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		p.Load64(riscv.KVA(k.mem.Base()))
		reached = true
	}})
	if status != 128+SIGSEGV || reached {
		t.Errorf("status %d, load returned %v", status, reached)
	}
	if !strings.Contains(screen.String(), "Segmentation fault") {
		t.Errorf("no message on the console: %q", screen.String())
	}
}

func TestKernelTaskUsesKernelWindow(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	status := runChild(t, k, &Program{Name: "kernel", Type: KernelProcess, Priority: 1, Body: func(p *Proc) {
		//the idle task's saved context sits at the top of its stack
		va := riscv.KVA(k.contextAddr(k.idle))
		p.Store64(va, 0)
		p.Load64(va)
		p.Store64(loader.UserHeapBase, 1)
		p.Exit(int(p.Load64(loader.UserHeapBase)))
	}})
	if status != 1 {
		t.Errorf("kernel task exited with %d", status)
	}
}

func TestSupervisorFaultOnKernelAddressHalts(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	register(t, k, &Program{Name: "wild", Type: KernelProcess, Priority: 1, Body: func(p *Proc) {
		p.Load64(riscv.KVA(k.mem.End()) + 64*riscv.LargePageSize)
	}})
	start(t, k, "wild", 0)
	var h *HaltError
	if err := runKernel(t, k); !errors.As(err, &h) {
		t.Errorf("Run = %v, want a halt", err)
	}
}

func TestStoreAfterLoadWithoutGrant(t *testing.T) {
	cfg := testConfig()
	cfg.LoadGrantsWrite = false
	k, screen := newTestKernel(t, cfg)
	status := runChild(t, k, &Program{Name: "reader", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		p.Load64(loader.UserHeapBase)
		p.Store64(loader.UserHeapBase, 1)
	}})
	if status != 128+SIGSEGV {
		t.Errorf("status %d", status)
	}
	if !strings.Contains(screen.String(), "store") {
		t.Errorf("protection fault not reported: %q", screen.String())
	}
}

func TestExecuteDataPage(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	status := runChild(t, k, &Program{Name: "jit", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		p.Store64(loader.UserHeapBase, 0x13)
		p.Fetch(loader.UserHeapBase)
	}})
	if status != 128+SIGSEGV {
		t.Errorf("status %d", status)
	}
}

func TestDemandPagedText(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	var word uint32 = 1
	status := runChild(t, k, &Program{Name: "text", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		word = p.Fetch(loader.UserTextBase)
	}})
	if status != 0 || word != 0 {
		t.Errorf("status %d, fetched %#x", status, word)
	}
}

func TestSwapUnderPressure(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryFrames = 64
	cfg.SwapSlots = 32
	k, _ := newTestKernel(t, cfg)
	free := k.MemoryStats()
	const pages = 60
	status := runChild(t, k, &Program{Name: "hog", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		for i := uint64(0); i < pages; i++ {
			p.Store64(loader.UserHeapBase+i*loader.PageSize, i*7)
		}
		bad := 0
		for i := uint64(0); i < pages; i++ {
			if p.Load64(loader.UserHeapBase+i*loader.PageSize) != i*7 {
				bad++
			}
		}
		p.Exit(bad)
	}})
	if status != 0 {
		t.Fatalf("%d pages came back wrong", status)
	}
	st := k.MemoryStats()
	if st.Paging.SwapOuts == 0 || st.Paging.SwapIns == 0 {
		t.Errorf("no swapping: %+v", st.Paging)
	}
	if st.FreeFrames != free.FreeFrames || st.SwapFree != cfg.SwapSlots || st.SwappedOut != 0 {
		t.Errorf("after run %+v, before %+v", st, free)
	}
}

func TestOutOfMemoryKills(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryFrames = 48
	screen := &console.Buffer{}
	k, err := New(cfg, screen, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status := runChild(t, k, &Program{Name: "hog", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		for i := uint64(0); i < 100; i++ {
			p.Store64(loader.UserHeapBase+i*loader.PageSize, i)
		}
	}})
	if status != 128+SIGKILL {
		t.Errorf("status %d", status)
	}
}

func TestSwapDeviceTooSmall(t *testing.T) {
	cfg := testConfig()
	if _, err := New(cfg, nil, blockdev.NewMemDevice(8)); err == nil {
		t.Errorf("swap area larger than its device accepted")
	}
}

func TestSetTrapHandler(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	hits := 0
	var cause uint64
	k.SetTrapHandler(riscv.Exception(riscv.ExcBreakpoint), func(frame *riscv.RegsContext, tval, code uint64) {
		hits++
		cause = code
		frame.Sepc += 2
	})
	var before, after uint64
	register(t, k, &Program{Name: "ebreak", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		before = k.hart.regs.Sepc
		k.trap(riscv.Exception(riscv.ExcBreakpoint), 0)
		after = k.hart.regs.Sepc
	}})
	start(t, k, "ebreak", 0)
	mustRun(t, k)
	if hits != 1 || cause != riscv.ExcBreakpoint || after != before+2 {
		t.Errorf("hits %d cause %d sepc %#x -> %#x", hits, cause, before, after)
	}
}

func TestTrapRestoresInterruptEnable(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	var during, afterTrap uint64
	k.SetTrapHandler(riscv.Exception(riscv.ExcBreakpoint), func(frame *riscv.RegsContext, tval, code uint64) {
		during = k.hart.regs.Sstatus
	})
	register(t, k, &Program{Name: "kernel", Type: KernelProcess, Priority: 1, Body: func(p *Proc) {
		k.trap(riscv.Exception(riscv.ExcBreakpoint), 0)
		afterTrap = k.hart.regs.Sstatus
	}})
	start(t, k, "kernel", 0)
	mustRun(t, k)
	if during&riscv.SstatusSIE != 0 || during&riscv.SstatusSPIE == 0 {
		t.Errorf("sstatus in handler %#x", during)
	}
	if afterTrap&riscv.SstatusSIE == 0 {
		t.Errorf("SIE not restored: %#x", afterTrap)
	}
}
