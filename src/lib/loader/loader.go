package loader

import (
	"debug/elf"
	"io"

	"serenity/src/lib/trust"
)

// PageInstaller maps the page at va into the address space being built and
// returns it for the loader to fill.  The page is zeroed on first install.
type PageInstaller interface {
	InstallPage(va uint64, prot elf.ProgFlag) ([]byte, error)
}

// StartupInfo describes an image placed in an address space.
type StartupInfo struct {
	EntryPoint     uint64
	TotalCodePages uint64 //every page touched by a PT_LOAD segment
	ROLowestVirt   uint64
	RWLowestVirt   uint64
	Brk            uint64 // first page past the image, start of heap
}

type LoaderError int

const LoaderNoError LoaderError = 0
const LoaderCannotAttachElf LoaderError = -1
const LoaderWrongMachine LoaderError = -2
const LoaderCannotReadSegment LoaderError = -3
const LoaderBadSegment LoaderError = -4
const LoaderCannotInstallPage LoaderError = -5

func (e LoaderError) Error() string {
	return e.String()
}

func (e LoaderError) String() string {
	switch e {
	case 0:
		return "LoaderNoError"
	case -1:
		return "LoaderCannotAttachElf"
	case -2:
		return "LoaderWrongMachine"
	case -3:
		return "LoaderCannotReadSegment"
	case -4:
		return "LoaderBadSegment"
	case -5:
		return "LoaderCannotInstallPage"
	default:
		return "unknown loader error code"
	}
}

// Load places every PT_LOAD segment of the RISC-V ELF image in r through
// install.  Bytes past a segment's file size are left as installed (zero).
func Load(r io.ReaderAt, install PageInstaller, logger *trust.Logger) (*StartupInfo, error) {
	elfFile, err := elf.NewFile(r)
	if err != nil {
		logger.Debugf("error attaching elf reader: %v", err)
		return nil, LoaderCannotAttachElf
	}
	if elfFile.Class != elf.ELFCLASS64 || elfFile.Machine != elf.EM_RISCV {
		logger.Debugf("image is %v/%v", elfFile.Class, elfFile.Machine)
		return nil, LoaderWrongMachine
	}
	info := &StartupInfo{EntryPoint: elfFile.Entry}
	seen := make(map[uint64]bool)
	for _, prog := range elfFile.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		end := prog.Vaddr + prog.Memsz
		if prog.Filesz > prog.Memsz || end < prog.Vaddr || end > UserLimit {
			logger.Errorf("segment at %#x of %#x bytes does not fit user space",
				prog.Vaddr, prog.Memsz)
			return nil, LoaderBadSegment
		}
		if prog.Flags&elf.PF_W != 0 {
			info.RWLowestVirt = lowest(info.RWLowestVirt, prog.Vaddr)
		} else {
			info.ROLowestVirt = lowest(info.ROLowestVirt, prog.Vaddr)
		}
		logger.Debugf("loading segment %#x-%#x %v", prog.Vaddr, end, prog.Flags)
		for page := prog.Vaddr &^ (PageSize - 1); page < end; page += PageSize {
			buf, err := install.InstallPage(page, prog.Flags)
			if err != nil {
				logger.Errorf("unable to install page %#x: %v", page, err)
				return nil, LoaderCannotInstallPage
			}
			if !seen[page] {
				seen[page] = true
				info.TotalCodePages++
			}
			if err := copySegment(buf, page, prog); err != nil {
				logger.Errorf("unable to read segment at %#x: %v", prog.Vaddr, err)
				return nil, LoaderCannotReadSegment
			}
		}
		if brk := (end + PageSize - 1) &^ (PageSize - 1); brk > info.Brk {
			info.Brk = brk
		}
	}
	return info, nil
}

// copySegment fills the part of page that holds file bytes of prog.
func copySegment(buf []byte, page uint64, prog *elf.Prog) error {
	fileEnd := prog.Vaddr + prog.Filesz
	start, stop := page, page+PageSize
	if start < prog.Vaddr {
		start = prog.Vaddr
	}
	if stop > fileEnd {
		stop = fileEnd
	}
	if start >= stop {
		return nil
	}
	_, err := prog.ReadAt(buf[start-page:stop-page], int64(start-prog.Vaddr))
	if err == io.EOF {
		err = nil
	}
	return err
}

func lowest(current, candidate uint64) uint64 {
	if current == 0 || candidate < current {
		return candidate
	}
	return current
}
