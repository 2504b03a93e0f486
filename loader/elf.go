// Package loader reads Thumb machine code from 32-bit ARM ELF executables
// and raw binary images.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoCode is returned by Image when a program has nothing to disassemble.
var ErrNoCode = errors.New("no loadable code")

// SegmentFlags holds the access permissions of a segment.
type SegmentFlags uint32

// Segment permissions, mirroring PF_X, PF_W and PF_R.
const (
	SegmentFlagExecute SegmentFlags = 1 << iota
	SegmentFlagWrite
	SegmentFlagRead
)

// Segment is one PT_LOAD segment, or the whole of a raw image.
type Segment struct {
	VirtAddr uint32 // load address of Data[0]
	Data     []byte // file contents
	MemSize  uint32 // at least len(Data); the rest is zero-initialised
	Flags    SegmentFlags
}

// Program is a loaded image together with its symbols.
type Program struct {
	// EntryPoint is the address of the first instruction, Thumb bit clear.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
	// Symbols maps code and data addresses to symbol names.
	Symbols map[uint32]string
}

// Image returns the first executable segment, or the first segment with
// data when none is marked executable.
func (p *Program) Image() (base uint32, code []byte, err error) {
	for _, seg := range p.Segments {
		if seg.Flags&SegmentFlagExecute != 0 && len(seg.Data) > 0 {
			return seg.VirtAddr, seg.Data, nil
		}
	}
	for _, seg := range p.Segments {
		if len(seg.Data) > 0 {
			return seg.VirtAddr, seg.Data, nil
		}
	}
	return 0, nil, ErrNoCode
}

// LoadFile loads path as an ELF file when it starts with the ELF magic and
// as a raw image at base otherwise.
func LoadFile(path string, base uint32) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	magic := make([]byte, len(elf.ELFMAG))
	n, _ := io.ReadFull(f, magic)
	_ = f.Close()

	if n == len(magic) && bytes.Equal(magic, []byte(elf.ELFMAG)) {
		return Load(path)
	}
	return LoadBinary(path, base)
}

// LoadBinary loads a raw image whose first byte sits at base.
func LoadBinary(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}

	return &Program{
		EntryPoint: base,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagExecute,
		}},
		Symbols: map[uint32]string{},
	}, nil
}

// Load parses a 32-bit little-endian ARM ELF file.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry) &^ 1,
		Symbols:    make(map[uint32]string),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	if err := prog.readSymbols(f); err != nil {
		return nil, err
	}

	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if _, err := io.ReadFull(phdr.Open(), data); err != nil {
		return Segment{}, fmt.Errorf("failed to read segment at 0x%x (%d bytes): %w",
			phdr.Vaddr, phdr.Filesz, err)
	}

	return Segment{
		VirtAddr: uint32(phdr.Vaddr),
		Data:     data,
		MemSize:  uint32(phdr.Memsz),
		Flags:    segmentFlags(phdr.Flags),
	}, nil
}

var progFlags = []struct {
	prog elf.ProgFlag
	seg  SegmentFlags
}{
	{elf.PF_X, SegmentFlagExecute},
	{elf.PF_W, SegmentFlagWrite},
	{elf.PF_R, SegmentFlagRead},
}

func segmentFlags(pf elf.ProgFlag) SegmentFlags {
	var flags SegmentFlags
	for _, m := range progFlags {
		if pf&m.prog != 0 {
			flags |= m.seg
		}
	}
	return flags
}

// readSymbols fills the name table from the symbol table. Files without
// one simply have no names.
func (p *Program) readSymbols(f *elf.File) error {
	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read symbols: %w", err)
	}

	for _, s := range syms {
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		if strings.HasPrefix(s.Name, "$") {
			continue // ARM mapping symbols
		}

		addr := uint32(s.Value)
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC:
			addr &^= 1
		case elf.STT_OBJECT, elf.STT_NOTYPE:
		default:
			continue
		}

		if _, taken := p.Symbols[addr]; !taken {
			p.Symbols[addr] = s.Name
		}
	}

	return nil
}
