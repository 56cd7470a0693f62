package main

import (
	"time"

	"serenity/src/joy"
	"serenity/src/lib/loader"
)

var programs = []*joy.Program{
	{Name: "init", Type: joy.UserProcess, Priority: 1, Body: initBody},
	{Name: "counter", Type: joy.UserProcess, Priority: 2, Body: counterBody},
	{Name: "pager", Type: joy.UserProcess, Priority: 1, Body: pagerBody},
	{Name: "threads", Type: joy.UserProcess, Priority: 1, Body: threadsBody},
	{Name: "sleeper", Type: joy.KernelProcess, Priority: 3, Body: sleeperBody},
}

// init starts one of everything and reaps them all.
func initBody(p *joy.Proc) {
	p.Printf("init: pid %d\n", p.Getpid())
	for _, name := range []string{"counter", "counter", "pager", "threads", "sleeper"} {
		tid, err := p.Spawn(name, uint64(p.GetTick()%7))
		if err != nil {
			p.Printf("init: spawn %s: %v\n", name, err)
			continue
		}
		p.Printf("init: %s is %d\n", name, tid)
	}
	p.ProcessShow()
	for {
		tid, status, err := p.Wait4(-1)
		if err != nil {
			break
		}
		p.Printf("init: %d exited with %d\n", tid, status)
	}
	utime, stime, ticks, _ := p.Times()
	p.Printf("init: done at %d (user %d, system %d)\n", ticks, utime, stime)
}

func counterBody(p *joy.Proc) {
	for i := 0; i < 5; i++ {
		p.Compute(250)
		p.Printf("[%d] count %d\n", p.Gettid(), i)
	}
	p.Exit(int(p.Arg()))
}

// pager touches more memory than the machine has, so pages go to swap and
// come back.
func pagerBody(p *joy.Proc) {
	const pages = 1000
	for i := uint64(0); i < pages; i++ {
		p.Store64(loader.UserHeapBase+i*loader.PageSize, i)
	}
	bad := 0
	for i := uint64(0); i < pages; i++ {
		if p.Load64(loader.UserHeapBase+i*loader.PageSize) != i {
			bad++
		}
	}
	p.Printf("pager: %d pages, %d wrong\n", pages, bad)
	p.Exit(bad)
}

func threadsBody(p *joy.Proc) {
	var tids []int
	for i := 0; i < 3; i++ {
		tid, err := p.Clone(worker, uint64(i))
		if err != nil {
			p.Printf("threads: clone: %v\n", err)
			break
		}
		tids = append(tids, tid)
	}
	for _, tid := range tids {
		_, status, _ := p.Wait4(tid)
		p.Printf("threads: %d -> %d\n", tid, status)
	}
}

func worker(p *joy.Proc) {
	p.Compute(100 * (p.Arg() + 1))
	p.Exit(int(p.Arg()) + 10)
}

func sleeperBody(p *joy.Proc) {
	for i := 0; i < 3; i++ {
		p.Sleep(2 * time.Millisecond)
		p.Printf("sleeper: tick %d\n", p.GetTick())
	}
}
