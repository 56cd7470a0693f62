package riscv

// ***************************************
// sstatus, Supervisor Status Register, Section 4.1.1 of the Privileged Spec.
// ***************************************

const SstatusSIE = uint64(1 << 1)
const SstatusSPIE = uint64(1 << 5)
const SstatusSPP = uint64(1 << 8) //previous mode was supervisor
const SstatusSUM = uint64(1 << 18)

// ***************************************
// satp, Supervisor Address Translation and Protection, Section 4.1.11.
// ***************************************

const SatpModeSv39 = uint64(8 << 60)
const satpASIDShift = 44
const satpPPNMask = uint64(1<<44) - 1

// MakeSatp builds the satp value that selects the root table at physical
// address root.
func MakeSatp(asid uint16, root uint64) uint64 {
	return SatpModeSv39 | uint64(asid)<<satpASIDShift | (root>>PageShift)&satpPPNMask
}

// SatpRoot returns the physical address of the root table named by satp.
func SatpRoot(satp uint64) uint64 {
	return (satp & satpPPNMask) << PageShift
}

// ***************************************
// General purpose registers, ABI names.
// ***************************************

const (
	Zero = 0
	RA   = 1
	SP   = 2
	GP   = 3
	TP   = 4
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A4   = 14
	A5   = 15
	A6   = 16
	A7   = 17
)

var RegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegsContext is the register file saved on a trap: the 32 integer
// registers followed by the supervisor CSRs that describe the trap.
type RegsContext struct {
	Regs     [32]uint64
	Sstatus  uint64
	Sepc     uint64
	Sbadaddr uint64
	Scause   uint64
	Satp     uint64
}

// Arg returns the nth syscall argument (a0..a5).
func (r *RegsContext) Arg(n int) uint64 {
	return r.Regs[A0+n]
}

// SetReturn places a syscall result in a0.
func (r *RegsContext) SetReturn(v int64) {
	r.Regs[A0] = uint64(v)
}

// UserMode is true when the trap came from U mode.
func (r *RegsContext) UserMode() bool {
	return r.Sstatus&SstatusSPP == 0
}

// Words lists the context in the order it is laid out when saved to
// memory: the 32 registers, then sstatus, sepc, sbadaddr, scause, satp.
func (r *RegsContext) Words() []*uint64 {
	w := make([]*uint64, 0, ContextWords)
	for i := range r.Regs {
		w = append(w, &r.Regs[i])
	}
	return append(w, &r.Sstatus, &r.Sepc, &r.Sbadaddr, &r.Scause, &r.Satp)
}

// ContextWords is the number of 64 bit words in a saved RegsContext.
const ContextWords = 32 + 5
