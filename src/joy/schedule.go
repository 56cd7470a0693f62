package joy

import (
	"serenity/src/hardware/riscv"
)

// cpuID is the only cpu tasks are scheduled on.
const cpuID = 0

// selectNext requeues prev if it is still running, then takes the ready
// task with the strictly greatest temporary priority that may run on this
// cpu.  Ties go to the task nearer the head.  Everything left behind ages
// by one.  With nothing eligible the idle task is chosen.
func (k *Kernel) selectNext(prev *Task) *Task {
	k.assertLocked("schedule")
	if prev.status == StatusRunning && prev != k.idle {
		prev.status = StatusReady
		prev.tempPriority = prev.priority
		k.move(prev, k.ready)
	}

	var next *Task
	max := -1
	for n := k.ready.list.First(); n != nil; n = n.Next() {
		t := n.Value()
		if (t.mask>>cpuID)&1 != 0 && t.tempPriority > max {
			max = t.tempPriority
			next = t
		}
	}
	if next != nil {
		next.status = StatusRunning
		k.move(next, nil)
	}
	for n := k.ready.list.First(); n != nil; n = n.Next() {
		n.Value().tempPriority++
	}
	if next == nil {
		next = k.idle
	}
	return next
}

// schedule picks the next task and switches to it.  The caller must have
// preemption prohibited.  It returns when the current task runs again.
func (k *Kernel) schedule() {
	prev := k.current
	next := k.selectNext(prev)
	k.log.Statsf("sched", "%d -> %d (temp %d)", prev.tid, next.tid, next.tempPriority)
	k.switchTo(prev, next)
}

// Yield gives up the CPU; the current task goes to the back of the ready
// queue with its priority reset.
func (k *Kernel) Yield() {
	k.prohibitPreemption()
	k.schedule()
	k.permitPreemption()
}

// Reschedule is Yield for code that already holds preemption off.
func (k *Kernel) Reschedule() {
	k.schedule()
}

// handleTimer is the supervisor timer interrupt: refresh the screen, fire
// due timers, program the next quantum and preempt.
func (k *Kernel) handleTimer(frame *riscv.RegsContext, tval uint64, code uint64) {
	if err := k.screen.Refresh(); err != nil {
		k.log.Warnf("screen refresh: %v", err)
	}
	k.timerCheck()
	k.firmware.SetTimer(k.firmware.Ticks() + k.quantum)
	if k.ctx.Err() != nil && k.current != k.idle {
		//shutting down: hand the cpu to Run so it can return
		prev := k.current
		prev.status = StatusReady
		k.move(prev, k.ready)
		k.switchTo(prev, k.idle)
		return
	}
	k.schedule()
}
