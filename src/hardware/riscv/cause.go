package riscv

import "fmt"

// Cause is the value of the scause register.  The top bit separates
// asynchronous interrupts from synchronous exceptions.
type Cause uint64

const InterruptBit = uint64(1) << 63

// CauseTableSize is the number of slots in each trap handler table.
const CauseTableSize = 16

// interrupt codes
const (
	IRQUserSoft        = 0
	IRQSupervisorSoft  = 1
	IRQMachineSoft     = 3
	IRQUserTimer       = 4
	IRQSupervisorTimer = 5
	IRQMachineTimer    = 7
	IRQUserExt         = 8
	IRQSupervisorExt   = 9
	IRQMachineExt      = 11
)

// exception codes
const (
	ExcInstMisaligned  = 0
	ExcInstAccess      = 1
	ExcIllegalInst     = 2
	ExcBreakpoint      = 3
	ExcLoadMisaligned  = 4
	ExcLoadAccess      = 5
	ExcStoreMisaligned = 6
	ExcStoreAccess     = 7
	ExcUserEcall       = 8
	ExcSupervisorEcall = 9
	ExcInstPageFault   = 12
	ExcLoadPageFault   = 13
	ExcStorePageFault  = 15
)

func Interrupt(code uint64) Cause {
	return Cause(InterruptBit | code)
}

func Exception(code uint64) Cause {
	return Cause(code)
}

func (c Cause) IsInterrupt() bool {
	return uint64(c)&InterruptBit != 0
}

func (c Cause) Code() uint64 {
	return uint64(c) &^ InterruptBit
}

var interruptNames = map[uint64]string{
	IRQUserSoft:        "user software interrupt",
	IRQSupervisorSoft:  "supervisor software interrupt",
	IRQMachineSoft:     "machine software interrupt",
	IRQUserTimer:       "user timer interrupt",
	IRQSupervisorTimer: "supervisor timer interrupt",
	IRQMachineTimer:    "machine timer interrupt",
	IRQUserExt:         "user external interrupt",
	IRQSupervisorExt:   "supervisor external interrupt",
	IRQMachineExt:      "machine external interrupt",
}

var exceptionNames = map[uint64]string{
	ExcInstMisaligned:  "instruction address misaligned",
	ExcInstAccess:      "instruction access fault",
	ExcIllegalInst:     "illegal instruction",
	ExcBreakpoint:      "breakpoint",
	ExcLoadMisaligned:  "load address misaligned",
	ExcLoadAccess:      "load access fault",
	ExcStoreMisaligned: "store address misaligned",
	ExcStoreAccess:     "store access fault",
	ExcUserEcall:       "environment call from U-mode",
	ExcSupervisorEcall: "environment call from S-mode",
	ExcInstPageFault:   "instruction page fault",
	ExcLoadPageFault:   "load page fault",
	ExcStorePageFault:  "store page fault",
}

func (c Cause) String() string {
	names := exceptionNames
	if c.IsInterrupt() {
		names = interruptNames
	}
	if s, ok := names[c.Code()]; ok {
		return s
	}
	if c.IsInterrupt() {
		return fmt.Sprintf("interrupt %d", c.Code())
	}
	return fmt.Sprintf("exception %d", c.Code())
}
