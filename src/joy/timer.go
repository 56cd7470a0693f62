package joy

//go:generate genny -in=../gen/doubly_linked.go -out=timer_dl.go -pkg=joy gen "Generic=Timer"
//go:generate genny -in=../gen/fixed_pool.go -out=timer_fixed_pool.go -pkg=joy gen "Generic=Timer"
//go:generate genny -in=../gen/fixed_dl.go -out=timer_fixed_dl.go -pkg=joy gen "Generic=Timer"

import "math"

// TimerFunc is called from the timer interrupt once the deadline passes.
// A handle whose task is gone must be ignored.
type TimerFunc func(k *Kernel, param TaskHandle)

// Timer is one node of the deadline ordered timer list.
type Timer struct {
	Deadline uint64
	Callback TimerFunc
	Param    TaskHandle
}

// Ticks is the monotonic tick counter.
func (k *Kernel) Ticks() uint64 {
	return k.firmware.Ticks()
}

// TimerCreate arms a timer that calls cb with param ticks from now.
// Timers with equal deadlines fire in the order they were created.
func (k *Kernel) TimerCreate(cb TimerFunc, param TaskHandle, ticks uint64) error {
	k.assertLocked("timer create")
	n := k.timers.Alloc()
	if n == nil {
		return MakeError(ErrorTimerNoMoreTimers, k.current.tid)
	}
	deadline := k.Ticks() + ticks
	if deadline < ticks {
		deadline = math.MaxUint64
	}
	*n.Value() = Timer{Deadline: deadline, Callback: cb, Param: param}
	var at *TimerNodeDL
	for c := k.timers.First(); c != nil; c = c.Next() {
		if c.Value().Deadline > deadline {
			at = c
			break
		}
	}
	k.timers.InsertBefore(at, n)
	return nil
}

// timerCheck fires, in deadline order, every timer that is due.
func (k *Kernel) timerCheck() {
	now := k.Ticks()
	for n := k.timers.First(); n != nil && n.Value().Deadline <= now; n = k.timers.First() {
		t := *n.Value()
		k.timers.RemoveAndRelease(n)
		t.Callback(k, t.Param)
	}
}

// nextDeadline is the deadline of the earliest timer.
func (k *Kernel) nextDeadline() (uint64, bool) {
	n := k.timers.First()
	if n == nil {
		return 0, false
	}
	return n.Value().Deadline, true
}

// PendingTimers is the number of armed timers.
func (k *Kernel) PendingTimers() int {
	return k.timers.Length()
}

// wakeSleeper is the callback of nanosleep.
func wakeSleeper(k *Kernel, h TaskHandle) {
	t := k.resolve(h)
	if t == nil || !t.sleeping || t.status != StatusBlocked {
		return
	}
	t.sleeping = false
	k.Unblock(t)
}

// sleep blocks the current task for ticks.
func (k *Kernel) sleep(ticks uint64) error {
	t := k.current
	if err := k.TimerCreate(wakeSleeper, t.Handle(), ticks); err != nil {
		return err
	}
	t.sleeping = true
	k.SuspendOn(k.blocked)
	return nil
}
