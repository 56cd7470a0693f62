package joy

import (
	"testing"
)

// fakeTask puts a task with no code on the ready queue.  Preemption must
// be prohibited.
func fakeTask(t *testing.T, k *Kernel, priority int) *Task {
	t.Helper()
	task := k.findFreeSlot()
	if task == nil {
		t.Fatalf("no free slot")
	}
	k.claim(task, UserProcess, "fake", priority)
	task.status = StatusReady
	k.move(task, k.ready)
	return task
}

func TestSelectNext(t *testing.T) {
	tests := []struct {
		name  string
		temps []int
		masks []uint64 //0 means all cpus
		want  int      //index into temps, -1 for idle
	}{
		{"empty", nil, nil, -1},
		{"single", []int{0}, nil, 0},
		{"greatest wins", []int{1, 3, 2}, nil, 1},
		{"first of equals", []int{2, 5, 5}, nil, 1},
		{"affinity excludes", []int{9, 1}, []uint64{0x2, 0}, 1},
		{"nobody eligible", []int{4}, []uint64{0x4}, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, _ := newTestKernel(t, nil)
			k.prohibitPreemption()
			var tasks []*Task
			for i, temp := range tc.temps {
				task := fakeTask(t, k, temp)
				if tc.masks != nil && tc.masks[i] != 0 {
					task.mask = tc.masks[i]
				}
				tasks = append(tasks, task)
			}
			next := k.selectNext(k.idle)
			if tc.want < 0 {
				if next != k.idle {
					t.Fatalf("picked task %d, want idle", next.Tid())
				}
			} else if next != tasks[tc.want] {
				t.Fatalf("picked task %d, want %d", next.Tid(), tasks[tc.want].Tid())
			}
			if next != k.idle && (next.Status() != StatusRunning || next.queue != QueueNone) {
				t.Errorf("picked task is %s on %s", next.Status(), next.queue)
			}
			for i, task := range tasks {
				if task == next {
					continue
				}
				if task.tempPriority != tc.temps[i]+1 {
					t.Errorf("task %d temp %d, want %d", task.Tid(), task.tempPriority, tc.temps[i]+1)
				}
			}
		})
	}
}

func TestAgingPreventsStarvation(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	k.prohibitPreemption()
	high := fakeTask(t, k, 3)
	low := fakeTask(t, k, 1)

	var picks []*Task
	prev := k.idle
	for i := 0; i < 3; i++ {
		next := k.selectNext(prev)
		picks = append(picks, next)
		prev = next
	}
	want := []*Task{high, high, low}
	for i := range want {
		if picks[i] != want[i] {
			t.Fatalf("pick %d was task %d, want %d", i, picks[i].Tid(), want[i].Tid())
		}
	}
	if high.Status() != StatusReady || high.tempPriority != 3+1 {
		t.Errorf("preempted task should be requeued with its priority and then aged: %s temp %d",
			high.Status(), high.tempPriority)
	}
}

func TestRequeueResetsPriority(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	k.prohibitPreemption()
	a := fakeTask(t, k, 2)
	k.selectNext(k.idle)
	a.tempPriority = 40
	k.selectNext(a)
	if a.tempPriority != 2 || a.Status() != StatusRunning {
		t.Errorf("requeued task temp %d status %s", a.tempPriority, a.Status())
	}
	if !k.ready.Empty() {
		t.Errorf("ready queue should be empty")
	}
}

func TestQueueChangesNeedPreemptionOff(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	task := &k.tasks[0]
	if h := catchHalt(func() { k.move(task, k.ready) }); h == nil {
		t.Errorf("move with preemption enabled did not halt")
	}
	if h := catchHalt(func() { k.permitPreemption() }); h == nil {
		t.Errorf("unbalanced permit did not halt")
	}
}

func TestYieldAlternates(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	var trace []string
	body := func(name string) func(*Proc) {
		return func(p *Proc) {
			for i := 0; i < 3; i++ {
				trace = append(trace, name)
				p.Yield()
			}
		}
	}
	register(t, k,
		&Program{Name: "a", Type: UserProcess, Priority: 1, Body: body("a")},
		&Program{Name: "b", Type: UserProcess, Priority: 1, Body: body("b")})
	start(t, k, "a", 0)
	start(t, k, "b", 0)
	mustRun(t, k)
	want := "ababab"
	got := ""
	for _, s := range trace {
		got += s
	}
	if got != want {
		t.Errorf("trace %s, want %s", got, want)
	}
}
