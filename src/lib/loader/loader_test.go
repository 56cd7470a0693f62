package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"serenity/src/lib/trust"
)

type segment struct {
	flags elf.ProgFlag
	vaddr uint64
	data  []byte
	memsz uint64
}

// buildImage assembles a minimal ELF64 executable with one PT_LOAD per
// segment and no sections.
func buildImage(t *testing.T, machine elf.Machine, entry uint64, segs []segment) []byte {
	t.Helper()
	const ehsize, phsize = 64, 56
	off := uint64(ehsize + phsize*len(segs))
	var hdr elf.Header64
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Type = uint16(elf.ET_EXEC)
	hdr.Machine = uint16(machine)
	hdr.Version = uint32(elf.EV_CURRENT)
	hdr.Entry = entry
	hdr.Phoff = ehsize
	hdr.Ehsize = ehsize
	hdr.Phentsize = phsize
	hdr.Phnum = uint16(len(segs))
	hdr.Shentsize = 64

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("header: %v", err)
	}
	for _, s := range segs {
		ph := elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.flags),
			Off:    off,
			Vaddr:  s.vaddr,
			Paddr:  s.vaddr,
			Filesz: uint64(len(s.data)),
			Memsz:  s.memsz,
			Align:  PageSize,
		}
		off += uint64(len(s.data))
		if err := binary.Write(&out, binary.LittleEndian, &ph); err != nil {
			t.Fatalf("program header: %v", err)
		}
	}
	for _, s := range segs {
		out.Write(s.data)
	}
	return out.Bytes()
}

type mapInstaller struct {
	pages map[uint64][]byte
	prot  map[uint64]elf.ProgFlag
}

func newMapInstaller() *mapInstaller {
	return &mapInstaller{pages: map[uint64][]byte{}, prot: map[uint64]elf.ProgFlag{}}
}

func (m *mapInstaller) InstallPage(va uint64, prot elf.ProgFlag) ([]byte, error) {
	if _, ok := m.pages[va]; !ok {
		m.pages[va] = make([]byte, PageSize)
	}
	m.prot[va] |= prot
	return m.pages[va], nil
}

func fill(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func TestLoadPlacesSegments(t *testing.T) {
	text := fill(0x1800, 1)
	data := fill(0x10, 100)
	img := buildImage(t, elf.EM_RISCV, 0x10040, []segment{
		{elf.PF_R | elf.PF_X, 0x10000, text, uint64(len(text))},
		{elf.PF_R | elf.PF_W, 0x13000, data, 0x2000},
	})
	inst := newMapInstaller()
	info, err := Load(bytes.NewReader(img), inst, trust.For("loader"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.EntryPoint != 0x10040 {
		t.Errorf("entry %#x", info.EntryPoint)
	}
	if info.TotalCodePages != 4 || len(inst.pages) != 4 {
		t.Errorf("expected 4 pages, got %d (%d installed)", info.TotalCodePages, len(inst.pages))
	}
	if info.ROLowestVirt != 0x10000 || info.RWLowestVirt != 0x13000 || info.Brk != 0x15000 {
		t.Errorf("layout %+v", info)
	}
	if !bytes.Equal(inst.pages[0x10000], text[:PageSize]) ||
		!bytes.Equal(inst.pages[0x11000][:0x800], text[PageSize:]) {
		t.Errorf("text not copied")
	}
	if !bytes.Equal(inst.pages[0x13000][:0x10], data) {
		t.Errorf("data not copied")
	}
	if !bytes.Equal(inst.pages[0x14000], make([]byte, PageSize)) {
		t.Errorf("bss is not zero")
	}
	if inst.prot[0x10000] != elf.PF_R|elf.PF_X || inst.prot[0x13000] != elf.PF_R|elf.PF_W {
		t.Errorf("protections %v", inst.prot)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		img  func(t *testing.T) []byte
		want LoaderError
	}{
		{"garbage", func(t *testing.T) []byte { return []byte("not an elf file at all") }, LoaderCannotAttachElf},
		{"wrong machine", func(t *testing.T) []byte {
			return buildImage(t, elf.EM_AARCH64, 0, []segment{{elf.PF_R, 0x10000, []byte{1}, 1}})
		}, LoaderWrongMachine},
		{"kernel address", func(t *testing.T) []byte {
			return buildImage(t, elf.EM_RISCV, 0, []segment{{elf.PF_R, 0xffffffff80000000, []byte{1}, 1}})
		}, LoaderBadSegment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tt.img(t)), newMapInstaller(), trust.For("loader"))
			if err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
