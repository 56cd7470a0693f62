package joy

import (
	"runtime"

	"serenity/src/hardware/riscv"
)

// Firmware is the platform layer the kernel programs the timer and
// flushes translations through.
type Firmware interface {
	Ticks() uint64
	SetTimer(deadline uint64)
	FlushTLB()
	RemoteFenceI()
}

// hart is the simulated processor: the live register file, the time
// counter and the programmed timer deadline.
type hart struct {
	regs     riscv.RegsContext
	ticks    uint64
	deadline uint64
	flushes  uint64
}

func (h *hart) Ticks() uint64 {
	return h.ticks
}

func (h *hart) SetTimer(deadline uint64) {
	h.deadline = deadline
}

func (h *hart) FlushTLB() {
	h.flushes++
}

// single hart: nothing to fence against
func (h *hart) RemoteFenceI() {}

// interruptsEnabled: U mode always takes supervisor interrupts, S mode only
// with SIE.
func (h *hart) interruptsEnabled() bool {
	return h.regs.UserMode() || h.regs.Sstatus&riscv.SstatusSIE != 0
}

// strand is the goroutine that executes a task's code.  Exactly one strand
// is not parked at any time; handing over the CPU is a send on the next
// strand's resume channel followed by a receive on our own.
type strand struct {
	resume chan struct{}
}

func newStrandChan() *strand {
	return &strand{resume: make(chan struct{})}
}

// park waits for the CPU.  If the kernel shuts down first the strand ends.
func (k *Kernel) park(s *strand) {
	select {
	case <-s.resume:
	case <-k.done:
		runtime.Goexit()
	}
}

// newStrand gives t a fresh goroutine that starts at the top of t.body the
// first time t is switched to.
func (k *Kernel) newStrand(t *Task) {
	s := newStrandChan()
	t.strand = s
	//like a forked task, the new strand starts inside the scheduler
	t.preemptCount = 1
	go k.strandMain(t, s, t.body)
}

func (k *Kernel) strandMain(t *Task, s *strand, body func(*Proc)) {
	defer k.strandRecover()
	k.park(s)
	k.permitPreemption()
	p := newProc(k, t)
	k.deliverSignals(t)
	body(p)
	p.Exit(0)
}

// strandRecover turns a panic on a task strand into a halt and gives the
// CPU back to the idle strand so Run can return.
func (k *Kernel) strandRecover() {
	r := recover()
	if r == nil {
		return
	}
	k.recordHalt(r)
	k.current = k.idle
	select {
	case k.idle.strand.resume <- struct{}{}:
	case <-k.done:
	}
}

const savedContextSize = (riscv.ContextWords*8 + 15) &^ 15

func (k *Kernel) contextAddr(t *Task) uint64 {
	return t.kernelStack + riscv.PageSize - savedContextSize
}

// saveContext stores t's trap frame at the top of its kernel stack.
func (k *Kernel) saveContext(t *Task) {
	addr := k.contextAddr(t)
	for i, w := range t.frame.Words() {
		k.mem.Store64(addr+uint64(i)*8, *w)
	}
}

// restoreContext reloads t's trap frame from its kernel stack.
func (k *Kernel) restoreContext(t *Task) {
	addr := k.contextAddr(t)
	for i, w := range t.frame.Words() {
		*w = k.mem.Load64(addr + uint64(i)*8)
	}
}

// switchTo hands the CPU from prev to next.  It returns when prev is next
// scheduled, or never if prev exited or replaced its image.
func (k *Kernel) switchTo(prev, next *Task) {
	retire := prev.status == StatusExited || prev.exec
	from := prev.strand
	if prev.exec {
		prev.exec = false
		k.newStrand(prev)
	}
	if prev == next && !retire {
		return
	}
	if !retire {
		k.saveContext(prev)
	}
	k.current = next
	k.restoreContext(next)
	k.hart.regs = next.frame
	k.hart.regs.Satp = riscv.MakeSatp(uint16(next.slot+1), next.pgdir)
	k.firmware.FlushTLB()
	k.log.Debugf("switch %d -> %d", prev.tid, next.tid)
	next.strand.resume <- struct{}{}
	if retire {
		runtime.Goexit()
	}
	k.park(from)
}
