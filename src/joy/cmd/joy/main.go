package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"serenity/src/drivers/blockdev"
	"serenity/src/hardware/console"
	"serenity/src/joy"
	"serenity/src/lib/trust"
)

var configFile = flag.String("c", "", "kernel configuration (json)")
var swapFile = flag.String("swap", "", "file to use as the swap device (default: in memory)")
var plain = flag.Bool("p", false, "write to stdout instead of the terminal")
var verbose = flag.Bool("v", false, "debug logging")

func main() {
	flag.Parse()
	cfg := joy.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = joy.LoadConfig(*configFile)
		if err != nil {
			trust.Fatalf(1, "%v", err)
		}
	}
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	mask, err := trust.ParseLevel(level)
	if err != nil {
		trust.Fatalf(1, "%v", err)
	}
	trust.SetLevel(mask)

	blocks := cfg.SwapBlocks()
	var swap blockdev.Device
	if *swapFile != "" {
		fd, err := blockdev.OpenFile(*swapFile, blocks)
		if err != nil {
			trust.Fatalf(1, "swap: %v", err)
		}
		defer fd.Close()
		swap = fd
	} else {
		swap = blockdev.NewMemDevice(blocks)
	}

	var screen console.Screen = &stdoutScreen{}
	if !*plain {
		term, err := console.OpenTTY(cfg.TTY, false)
		if err != nil {
			trust.Warnf("no terminal (%v), using stdout", err)
		} else {
			defer term.Close()
			screen = term
		}
	}

	k, err := joy.New(cfg, screen, swap)
	if err != nil {
		trust.Fatalf(1, "boot: %v", err)
	}
	for _, prog := range programs {
		if err := k.Register(prog); err != nil {
			trust.Fatalf(1, "%v", err)
		}
	}
	if _, err := k.Start(cfg.Init, 0); err != nil {
		trust.Fatalf(1, "starting %s: %v", cfg.Init, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := k.Run(ctx); err != nil {
		trust.Errorf("%v", err)
		os.Exit(2)
	}
	st := k.MemoryStats()
	trust.Infof("done at tick %d: %d demand pages, %d swapped out, %d swapped in",
		k.Ticks(), st.Paging.DemandPages, st.Paging.SwapOuts, st.Paging.SwapIns)
}

type stdoutScreen struct{}

func (s *stdoutScreen) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (s *stdoutScreen) Refresh() error {
	return nil
}
