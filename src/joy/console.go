package joy

import (
	"fmt"
	"strings"

	"serenity/src/hardware/console"
	"serenity/src/hardware/riscv"
)

// ConsoleInterface is the kernel's printf.
type ConsoleInterface interface {
	Logf(string, ...interface{})
	Sprintf(string, ...interface{}) string
}

// Console formats kernel messages onto the screen.  Output shows up at the
// next timer tick, when the screen is refreshed.
type Console struct {
	screen console.Screen
}

var _ ConsoleInterface = (*Console)(nil)

func (c *Console) Logf(format string, values ...interface{}) {
	if format == "" {
		return
	}
	c.screen.Write([]byte(c.Sprintf(format, values...)))
}

func (c *Console) Sprintf(format string, values ...interface{}) string {
	return fmt.Sprintf(format, values...)
}

// DumpRegisters prints a trap frame, three registers to a line.
func (c *Console) DumpRegisters(frame *riscv.RegsContext) {
	var b strings.Builder
	for i, name := range riscv.RegNames {
		fmt.Fprintf(&b, "%4s: %016x", name, frame.Regs[i])
		if i%3 == 2 || i == len(riscv.RegNames)-1 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}
	fmt.Fprintf(&b, "sstatus: %016x  sbadaddr: %016x  scause: %016x\n",
		frame.Sstatus, frame.Sbadaddr, frame.Scause)
	fmt.Fprintf(&b, "sepc: %016x  (%s)\n", frame.Sepc, riscv.Cause(frame.Scause))
	c.screen.Write([]byte(b.String()))
}

// ProcessShow prints one line per task.
func (c *Console) ProcessShow(tasks []TaskInfo) {
	var b strings.Builder
	b.WriteString("[PROCESS TABLE]\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "[%d] PID : %d TID : %d PARENT : %d STATUS : %-7s %-13s PRIO : %d MASK : %#x %s\n",
			t.Slot, t.Pid, t.Tid, t.Parent, t.Status, t.Type, t.Priority, t.Mask, t.Name)
	}
	c.screen.Write([]byte(b.String()))
}
