package vm

import (
	"errors"
	"fmt"

	"serenity/src/hardware/riscv"
)

// Access is the kind of memory reference that faulted.
type Access int

const (
	AccessFetch Access = iota
	AccessLoad
	AccessStore
)

// AccessForCause maps a page fault exception code to the access kind.
func AccessForCause(code uint64) (Access, bool) {
	switch code {
	case riscv.ExcInstPageFault:
		return AccessFetch, true
	case riscv.ExcLoadPageFault:
		return AccessLoad, true
	case riscv.ExcStorePageFault:
		return AccessStore, true
	}
	return 0, false
}

// Cause is the page fault exception raised for a failed access.
func (a Access) Cause() uint64 {
	switch a {
	case AccessFetch:
		return riscv.ExcInstPageFault
	case AccessLoad:
		return riscv.ExcLoadPageFault
	}
	return riscv.ExcStorePageFault
}

func (a Access) String() string {
	switch a {
	case AccessFetch:
		return "fetch"
	case AccessLoad:
		return "load"
	}
	return "store"
}

// permits is the hardware permission check for a present leaf.
func permits(pte riscv.PTE, a Access) bool {
	switch a {
	case AccessFetch:
		return pte.Has(riscv.Exec)
	case AccessLoad:
		return pte.Has(riscv.Read)
	}
	return pte.Has(riscv.Write)
}

var ErrUnmapped = errors.New("address is not mapped")
var ErrNoMemory = errors.New("out of physical memory")
var ErrSwapFull = errors.New("no free swap slots")
var ErrNotSwappable = errors.New("page cannot be swapped")
var ErrKernelAddress = errors.New("kernel address in user translation")

// ErrBadSwapRecord means a swapped entry names a record that does not
// exist.  The page tables are corrupt.
var ErrBadSwapRecord = errors.New("swapped entry has no swap record")

// ProtectionFault is a present page accessed in a way its permission
// bits do not allow.
type ProtectionFault struct {
	VA     uint64
	Access Access
	PTE    riscv.PTE
}

func (p *ProtectionFault) Error() string {
	return fmt.Sprintf("Segmentation fault: %s at %#x (%s)", p.Access, p.VA, p.PTE)
}
