package riscv

import (
	"fmt"
	"strings"
)

// ***************************************
// Sv39 paging.  Three levels of 512 entries, 4K leaves, 2M and 1G
// large leaves.
// ***************************************

const PageShift = 12
const PageSize = uint64(1) << PageShift
const PTEsPerTable = 512
const PTESize = 8
const LargePageShift = PageShift + 9
const LargePageSize = uint64(1) << LargePageShift
const Levels = 3

// VAMask keeps the 39 bits that take part in translation.
const VAMask = uint64(1)<<39 - 1

const ppnShift = 10
const flagMask = uint64(1)<<ppnShift - 1

// KernelOffset is the distance between a physical address and its alias
// in the kernel's high window.
const KernelOffset = uint64(0xffffffff00000000)

// KVA returns the kernel window address of physical address pa.
func KVA(pa uint64) uint64 {
	return pa + KernelOffset
}

// PA is the inverse of KVA.
func PA(kva uint64) uint64 {
	return kva - KernelOffset
}

// IsKernelAddress reports whether va falls in the kernel window.
func IsKernelAddress(va uint64) bool {
	return va >= KernelOffset
}

// VPN returns the 9 bit table index of va at the given level (2 is the root).
func VPN(va uint64, level int) uint64 {
	return ((va & VAMask) >> (PageShift + 9*uint(level))) & (PTEsPerTable - 1)
}

// PageBase rounds va down to its page.
func PageBase(va uint64) uint64 {
	return va &^ (PageSize - 1)
}

// PTEFlag is one of the low ten bits of a PTE.
type PTEFlag uint64

const (
	Present  PTEFlag = 1 << 0
	Read     PTEFlag = 1 << 1
	Write    PTEFlag = 1 << 2
	Exec     PTEFlag = 1 << 3
	User     PTEFlag = 1 << 4
	Global   PTEFlag = 1 << 5
	Accessed PTEFlag = 1 << 6
	Dirty    PTEFlag = 1 << 7
	Swapped  PTEFlag = 1 << 8
	Shared   PTEFlag = 1 << 9
)

// Leaf permission bits.
const RWX = Read | Write | Exec

// PTE is a page table entry.  The frame field is the physical page number
// for present entries and the swap block for Swapped ones.
type PTE uint64

func MakePTE(pa uint64, flags PTEFlag) PTE {
	return PTE((pa>>PageShift)<<ppnShift | uint64(flags)&flagMask)
}

// Has is true when every bit of f is set.
func (p PTE) Has(f PTEFlag) bool {
	return uint64(p)&uint64(f) == uint64(f)
}

// Any is true when at least one bit of f is set.
func (p PTE) Any(f PTEFlag) bool {
	return uint64(p)&uint64(f) != 0
}

func (p PTE) Set(f PTEFlag) PTE {
	return PTE(uint64(p) | uint64(f)&flagMask)
}

func (p PTE) Clear(f PTEFlag) PTE {
	return PTE(uint64(p) &^ (uint64(f) & flagMask))
}

func (p PTE) Flags() PTEFlag {
	return PTEFlag(uint64(p) & flagMask)
}

func (p PTE) PFN() uint64 {
	return uint64(p) >> ppnShift
}

func (p PTE) WithPFN(pfn uint64) PTE {
	return PTE(pfn<<ppnShift | uint64(p)&flagMask)
}

// Frame is the physical address named by a present entry.
func (p PTE) Frame() uint64 {
	return p.PFN() << PageShift
}

// IsLeaf is true when at least one of R, W, X is set.  Other entries
// point at the next level table.
func (p PTE) IsLeaf() bool {
	return p.Any(RWX)
}

func (p PTE) Valid() bool {
	return p.Has(Present)
}

var flagLetters = []struct {
	f PTEFlag
	c string
}{
	{Shared, "S"}, {Swapped, "w"}, {Dirty, "D"}, {Accessed, "A"}, {Global, "G"},
	{User, "U"}, {Exec, "X"}, {Write, "W"}, {Read, "R"}, {Present, "V"},
}

func (p PTE) String() string {
	var b strings.Builder
	for _, fl := range flagLetters {
		if p.Has(fl.f) {
			b.WriteString(fl.c)
		} else {
			b.WriteString("-")
		}
	}
	return fmt.Sprintf("pfn=%#x %s", p.PFN(), b.String())
}
