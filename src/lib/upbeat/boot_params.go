package upbeat

// BootParams describes the machine the kernel is started on.
type BootParams struct {
	MemoryBase     uint64 `json:"memory_base"`
	MemoryFrames   uint32 `json:"memory_frames"`
	ReservedFrames uint32 `json:"reserved_frames"` //kernel image and boot stacks
	TimeBase       uint64 `json:"time_base"`       //ticks per second
}

var DefaultBootParams = BootParams{
	MemoryBase:     0x80000000,
	MemoryFrames:   1024,
	ReservedFrames: 16,
	TimeBase:       1000000,
}
