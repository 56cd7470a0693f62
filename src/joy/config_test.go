package joy

import (
	"os"
	"path/filepath"
	"testing"

	"serenity/src/joy/vm"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joy.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{"max_tasks": 4, "memory_frames": 512, "swap_slots": 8, "init": "shell"}`)
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.MaxTasks != 4 || c.MemoryFrames != 512 || c.SwapSlots != 8 || c.Init != "shell" {
		t.Errorf("overrides not applied: %+v", c)
	}
	def := DefaultConfig()
	if c.TimeBase != def.TimeBase || c.MaxTimers != def.MaxTimers || c.MemoryBase != def.MemoryBase {
		t.Errorf("defaults lost: %+v", c)
	}
	if !c.LoadGrantsWrite {
		t.Errorf("load_grants_write should default to true")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for name, body := range map[string]string{
		"unknown key": `{"max_taskz": 4}`,
		"bad json":    `{"max_tasks": }`,
		"invalid":     `{"max_tasks": 0}`,
	} {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: no error", name)
		}
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("missing file: no error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		change func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"no tasks", func(c *Config) { c.MaxTasks = 0 }, false},
		{"odd timer count", func(c *Config) { c.MaxTimers = 100 }, false},
		{"too many timers", func(c *Config) { c.MaxTimers = 4096 }, false},
		{"no timers", func(c *Config) { c.MaxTimers = 0 }, false},
		{"no preemption", func(c *Config) { c.PreemptFrequency = 0 }, false},
		{"preemption faster than clock", func(c *Config) { c.PreemptFrequency = c.TimeBase + 1 }, false},
		{"all frames reserved", func(c *Config) { c.ReservedFrames = c.MemoryFrames }, false},
		{"negative swap", func(c *Config) { c.SwapSlots = -1 }, false},
		{"no swap", func(c *Config) { c.SwapSlots = 0 }, true},
	}
	for _, tc := range tests {
		c := DefaultConfig()
		tc.change(c)
		if err := c.Validate(); (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v", tc.name, err)
		}
	}
}

func TestDerivedSizes(t *testing.T) {
	c := DefaultConfig()
	if q := c.Quantum(); q != 100 {
		t.Errorf("Quantum() = %d", q)
	}
	c.SwapStartBlock = 10
	c.SwapSlots = 3
	if b := c.SwapBlocks(); b != uint64(10+3*vm.BlocksPerPage) {
		t.Errorf("SwapBlocks() = %d", b)
	}
}
