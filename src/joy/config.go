package joy

import (
	"encoding/json"
	"fmt"
	"os"

	"serenity/src/joy/vm"
	"serenity/src/lib/upbeat"
)

// Config is the kernel's boot configuration, read from a JSON file.
type Config struct {
	upbeat.BootParams
	MaxTasks         int    `json:"max_tasks"`
	MaxTimers        uint32 `json:"max_timers"`        //multiple of 64
	PreemptFrequency uint64 `json:"preempt_frequency"` //timer interrupts per second
	SwapStartBlock   uint64 `json:"swap_start_block"`
	SwapSlots        int    `json:"swap_slots"` //0 disables swap
	LoadGrantsWrite  bool   `json:"load_grants_write"`
	LogLevel         string `json:"log_level"`
	TTY              string `json:"tty"`
	Init             string `json:"init"` //program started as the first task
}

func DefaultConfig() *Config {
	return &Config{
		BootParams:       upbeat.DefaultBootParams,
		MaxTasks:         16,
		MaxTimers:        64,
		PreemptFrequency: 10000,
		SwapSlots:        64,
		LoadGrantsWrite:  true,
		LogLevel:         "info",
		Init:             "init",
	}
}

// LoadConfig reads path over the defaults.  Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	dec := json.NewDecoder(fp)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.MaxTasks <= 0:
		return fmt.Errorf("max_tasks must be positive, not %d", c.MaxTasks)
	case c.MaxTimers == 0 || c.MaxTimers%64 != 0 || c.MaxTimers > 2048:
		return fmt.Errorf("max_timers must be a multiple of 64 up to 2048, not %d", c.MaxTimers)
	case c.PreemptFrequency == 0 || c.TimeBase < c.PreemptFrequency:
		return fmt.Errorf("preempt_frequency %d does not fit time_base %d",
			c.PreemptFrequency, c.TimeBase)
	case c.MemoryFrames <= c.ReservedFrames:
		return fmt.Errorf("memory_frames %d leaves nothing after %d reserved",
			c.MemoryFrames, c.ReservedFrames)
	case c.SwapSlots < 0:
		return fmt.Errorf("swap_slots is negative")
	}
	return nil
}

// Quantum is the number of ticks between preemption interrupts.
func (c *Config) Quantum() uint64 {
	return c.TimeBase / c.PreemptFrequency
}

// SwapBlocks is the size, in device blocks, a swap device needs for this
// configuration.
func (c *Config) SwapBlocks() uint64 {
	return c.SwapStartBlock + uint64(c.SwapSlots*vm.BlocksPerPage)
}
