package joy

import (
	"errors"

	"serenity/src/hardware/riscv"
	"serenity/src/joy/vm"
)

// TrapHandler is called with the trapped register context, the faulting
// value (stval) and the cause code without the interrupt bit.
type TrapHandler func(frame *riscv.RegsContext, tval uint64, code uint64)

// Exit statuses of tasks the kernel terminates.
const (
	SIGKILL = 9
	SIGSEGV = 11
)

func signalStatus(sig int) int {
	return 128 + sig
}

func (k *Kernel) initTraps() {
	for i := range k.interrupts {
		k.interrupts[i] = k.handleOther
		k.exceptions[i] = k.handleOther
	}
	k.interrupts[riscv.IRQUserSoft] = k.handleSoftware
	k.interrupts[riscv.IRQSupervisorSoft] = k.handleSoftware
	k.interrupts[riscv.IRQSupervisorTimer] = k.handleTimer
	k.exceptions[riscv.ExcUserEcall] = k.handleSyscall
	//kernel tasks make the same calls from S mode
	k.exceptions[riscv.ExcSupervisorEcall] = k.handleSyscall
	k.exceptions[riscv.ExcInstPageFault] = k.handlePageFault
	k.exceptions[riscv.ExcLoadPageFault] = k.handlePageFault
	k.exceptions[riscv.ExcStorePageFault] = k.handlePageFault
}

// SetTrapHandler replaces the handler for one cause.
func (k *Kernel) SetTrapHandler(cause riscv.Cause, h TrapHandler) {
	code := cause.Code()
	if code >= riscv.CauseTableSize {
		k.log.Errorf("no table slot for %s", cause)
		return
	}
	if cause.IsInterrupt() {
		k.interrupts[code] = h
	} else {
		k.exceptions[code] = h
	}
}

// trap is the hardware trap entry and return for the current task.  The
// live registers are saved into the task's frame, the handler runs on the
// frame, and the (possibly rescheduled) task's frame goes back into the
// hart.
func (k *Kernel) trap(cause riscv.Cause, tval uint64) {
	t := k.current
	regs := &k.hart.regs
	regs.Scause = uint64(cause)
	regs.Sbadaddr = tval
	if regs.Sstatus&riscv.SstatusSIE != 0 {
		regs.Sstatus |= riscv.SstatusSPIE
	} else {
		regs.Sstatus &^= riscv.SstatusSPIE
	}
	regs.Sstatus &^= riscv.SstatusSIE
	t.frame = *regs

	k.prohibitPreemption()
	k.dispatch(&t.frame, tval, cause)
	k.permitPreemption()
	k.trapReturn(t)
}

func (k *Kernel) dispatch(frame *riscv.RegsContext, tval uint64, cause riscv.Cause) {
	code := cause.Code()
	if code >= riscv.CauseTableSize {
		k.handleOther(frame, tval, code)
		return
	}
	if cause.IsInterrupt() {
		k.interrupts[code](frame, tval, code)
		return
	}
	k.exceptions[code](frame, tval, code)
}

// trapReturn acts on a pending kill, then restores the hart from t's frame
// as sret would.
func (k *Kernel) trapReturn(t *Task) {
	k.deliverSignals(t)
	if t.frame.Sstatus&riscv.SstatusSPIE != 0 {
		t.frame.Sstatus |= riscv.SstatusSIE
	} else {
		t.frame.Sstatus &^= riscv.SstatusSIE
	}
	k.hart.regs = t.frame
}

func (k *Kernel) deliverSignals(t *Task) {
	if t == k.idle || t.signals&(1<<SIGKILL) == 0 {
		return
	}
	k.log.Infof("task %d killed", t.tid)
	k.prohibitPreemption()
	k.exit(signalStatus(SIGKILL))
}

func (k *Kernel) handleSoftware(frame *riscv.RegsContext, tval uint64, code uint64) {
	k.halt("software interrupt %d", code)
}

// handleOther is the path for every cause nobody claimed: dump and halt.
func (k *Kernel) handleOther(frame *riscv.RegsContext, tval uint64, code uint64) {
	cause := riscv.Cause(frame.Scause)
	k.console.DumpRegisters(frame)
	k.halt("unhandled %s (stval %#x)", cause, tval)
}

func (k *Kernel) handlePageFault(frame *riscv.RegsContext, tval uint64, code uint64) {
	t := k.current
	access, _ := vm.AccessForCause(code)
	if t == k.idle {
		k.halt("page fault in the idle task at %#x", tval)
	}
	err := k.walker.HandleFault(t.pgdir, tval, access)
	if err == nil {
		return
	}
	var pf *vm.ProtectionFault
	switch {
	case errors.As(err, &pf):
		k.console.Logf("%s\n", pf)
		k.log.Warnf("task %d: %v", t.tid, pf)
		k.exit(signalStatus(SIGSEGV))
	case errors.Is(err, vm.ErrKernelAddress):
		if !frame.UserMode() {
			k.halt("supervisor fault on kernel address %#x", tval)
		}
		k.console.Logf("Segmentation fault: %s at %#x\n", access, tval)
		k.exit(signalStatus(SIGSEGV))
	case errors.Is(err, vm.ErrNoMemory), errors.Is(err, vm.ErrSwapFull):
		k.log.Errorf("task %d out of memory at %#x: %v", t.tid, tval, err)
		k.exit(signalStatus(SIGKILL))
	default:
		k.halt("page fault at %#x: %v", tval, err)
	}
}
