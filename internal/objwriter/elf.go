package objwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"asmforge/internal/bytecode"
	"asmforge/internal/object"
	"asmforge/internal/symbol"
)

// ELF64 constants, named (not iota'd) to match the format's own numbering
// exactly, grounded on the section/symbol layout
// original_source/modules/objfmts/elf/Elf_x86_amd64.cpp builds.
const (
	elfClass64   = 2
	elfData2LSB  = 1
	elfVersion   = 1
	elfOSABINone = 0
	etREL        = 1
	emX86_64     = 62

	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtNobits   = 8

	shfWrite = 1 << 0
	shfAlloc = 1 << 1
	shfExec  = 1 << 2

	stbLocal  = 0
	stbGlobal = 1
	sttNotype = 0
	sttObject = 1
	sttFunc   = 2

	rX8664PC32 = 2
	rX8664_32  = 10
	rX8664_64  = 1
)

type elf64Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

type elf64SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type elf64Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type elf64Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

// strtab accumulates null-terminated names, returning each one's offset;
// index 0 is always the empty string, per the format's convention.
type strtab struct {
	buf []byte
}

func newStrtab() *strtab { return &strtab{buf: []byte{0}} }

func (s *strtab) add(name string) uint32 {
	off := uint32(len(s.buf))
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	return off
}

// sectionFlags maps a section's conventional name to its ELF flags/type,
// the same name-sniffing original_source's object format module does
// (".bss" is NOBITS, ".text" is executable, everything else is writable
// data) absent an explicit section-attribute directive.
func sectionFlags(name string) (shType uint32, flags uint64) {
	switch name {
	case ".text":
		return shtProgbits, shfAlloc | shfExec
	case ".bss":
		return shtNobits, shfAlloc | shfWrite
	case ".rodata":
		return shtProgbits, shfAlloc
	default:
		return shtProgbits, shfAlloc | shfWrite
	}
}

// WriteELF64 serializes obj (already Build-run) as a minimal ET_REL x86-64
// object: one PROGBITS/NOBITS section per Section, a symtab with one entry
// per defined/extern/global symbol, and one RELA section per code/data
// section that needed a relocation.
func WriteELF64(obj *object.Object, baseOffset int64) ([]byte, error) {
	sink, d := Write(obj, baseOffset)
	if d != nil {
		return nil, fmt.Errorf("output: %s", d.Message)
	}

	sections := obj.Sections()
	shstrtab := newStrtab()
	symstrtab := newStrtab()

	type secOut struct {
		name    string
		typ     uint32
		flags   uint64
		data    []byte
		nameOff uint32
		rela    []elf64Rela
	}

	// Slice sink.Buf back into per-section spans using each section's
	// Base/End, since Write emitted them back to back in switch order.
	var outs []*secOut
	secIndex := make(map[string]int) // name -> index into outs (1-based, 0 reserved for SHN_UNDEF)
	for i, sec := range sections {
		typ, flags := sectionFlags(sec.Name)
		var data []byte
		if typ != shtNobits {
			lo := sec.Base - baseOffset
			hi := sec.End - baseOffset
			if lo >= 0 && hi <= int64(len(sink.Buf)) && lo <= hi {
				data = sink.Buf[lo:hi]
			}
		}
		outs = append(outs, &secOut{name: sec.Name, typ: typ, flags: flags, data: data, nameOff: shstrtab.add(sec.Name)})
		secIndex[sec.Name] = i + 1
	}

	// Symbol table: index 0 is the mandatory null entry; section-local
	// symbols are not individually emitted (only section symbols would be
	// in a fuller writer) — every label/extern/global assembler symbol
	// gets one entry here, keeping the writer's scope to what this
	// assembler's symbol table already tracks.
	var syms []elf64Sym
	syms = append(syms, elf64Sym{})
	symIndexOf := make(map[*symbol.Symbol]int)
	for _, s := range obj.Symbols.Symbols() {
		bind := uint8(stbLocal)
		if s.Vis&(symbol.VisGlobal|symbol.VisExtern) != 0 {
			bind = stbGlobal
		}
		shndx := uint16(0) // SHN_UNDEF
		var value uint64
		if s.Type == symbol.TypeLabel {
			if bc, ok := s.Loc.BC.(*bytecode.Bytecode); ok {
				if sec, ok := bc.Container.(*object.Section); ok {
					shndx = uint16(secIndex[sec.Name])
				}
			}
			value = uint64(resolvedOffset(s, baseOffset))
		}
		nameOff := symstrtab.add(s.Name())
		symIndexOf[s] = len(syms)
		syms = append(syms, elf64Sym{
			Name:  nameOff,
			Info:  bind<<4 | sttNotype,
			Shndx: shndx,
			Value: value,
		})
	}

	// Relocations, bucketed by which section's byte range each offset
	// falls in.
	for _, r := range sink.Relo {
		for i, sec := range sections {
			lo, hi := sec.Base, sec.End
			if r.Offset < lo || r.Offset >= hi {
				continue
			}
			out := outs[i]
			rtype := uint32(rX8664_32)
			if r.PCRel {
				rtype = rX8664PC32
			} else if r.Size == 64 {
				rtype = rX8664_64
			}
			symIdx := uint32(0)
			if r.Symbol != nil {
				symIdx = uint32(symIndexOf[r.Symbol])
			}
			out.rela = append(out.rela, elf64Rela{
				Offset: uint64(r.Offset - lo),
				Info:   uint64(symIdx)<<32 | uint64(rtype),
				Addend: r.Addend,
			})
			break
		}
	}

	var buf bytes.Buffer

	// Layout: header, then each section's raw bytes (progbits only),
	// then symtab, strtab, rela sections, then shstrtab, then the section
	// header table. Offsets are computed in two passes since the header
	// table must name every section including itself.
	hdr := elf64Header{
		Type:      etREL,
		Machine:   emX86_64,
		Version:   elfVersion,
		EhSize:    64,
		ShEntSize: 64,
	}
	hdr.Ident[0], hdr.Ident[1], hdr.Ident[2], hdr.Ident[3] = 0x7f, 'E', 'L', 'F'
	hdr.Ident[4] = elfClass64
	hdr.Ident[5] = elfData2LSB
	hdr.Ident[6] = elfVersion

	off := uint64(64)
	var shdrs []elf64SectionHeader
	shdrs = append(shdrs, elf64SectionHeader{}) // SHN_UNDEF

	dataOffsets := make([]uint64, len(outs))
	for i, o := range outs {
		if o.typ != shtNobits {
			dataOffsets[i] = off
			off += uint64(len(o.data))
		}
	}

	symtabOff := off
	off += uint64(len(syms)) * 24
	symstrOff := off
	off += uint64(len(symstrtab.buf))

	relaOffsets := make([]uint64, len(outs))
	for i, o := range outs {
		if len(o.rela) > 0 {
			relaOffsets[i] = off
			off += uint64(len(o.rela)) * 24
		}
	}

	// Every shstrtab name must be registered before shstrOff/off are
	// fixed below, including the per-section ".rela<name>" strings — the
	// header table's own layout depends on shstrtab's FINAL length, not
	// its length partway through registration.
	shstrNameOff := shstrtab.add(".shstrtab")
	symtabNameOff := shstrtab.add(".symtab")
	strtabNameOff := shstrtab.add(".strtab")
	relaNameOffs := make([]uint32, len(outs))
	for i, o := range outs {
		if len(o.rela) > 0 {
			relaNameOffs[i] = shstrtab.add(".rela" + o.name)
		}
	}

	shstrOff := off
	off += uint64(len(shstrtab.buf))

	for i, o := range outs {
		sz := uint64(0)
		if o.typ == shtNobits {
			var sec *object.Section
			for _, s := range sections {
				if s.Name == o.name {
					sec = s
				}
			}
			if sec != nil {
				sz = uint64(sec.End - sec.Base)
			}
		} else {
			sz = uint64(len(o.data))
		}
		shdrs = append(shdrs, elf64SectionHeader{
			Name: o.nameOff, Type: o.typ, Flags: o.flags,
			Off: dataOffsets[i], Size: sz, AddrAlign: 1,
		})
		if len(o.rela) > 0 {
			shdrs = append(shdrs, elf64SectionHeader{
				Name: relaNameOffs[i], Type: shtRela,
				Off: relaOffsets[i], Size: uint64(len(o.rela)) * 24,
				Link: uint32(len(outs) + 1), Info: uint32(i + 1),
				EntSize: 24, AddrAlign: 8,
			})
		}
	}
	symtabIdx := len(shdrs)
	shdrs = append(shdrs, elf64SectionHeader{
		Name: symtabNameOff, Type: shtSymtab, Off: symtabOff,
		Size: uint64(len(syms)) * 24, Link: uint32(symtabIdx + 1),
		Info: 1, EntSize: 24, AddrAlign: 8,
	})
	shdrs = append(shdrs, elf64SectionHeader{
		Name: strtabNameOff, Type: shtStrtab, Off: symstrOff,
		Size: uint64(len(symstrtab.buf)), AddrAlign: 1,
	})
	shstrIdx := len(shdrs)
	shdrs = append(shdrs, elf64SectionHeader{
		Name: shstrNameOff, Type: shtStrtab, Off: shstrOff,
		Size: uint64(len(shstrtab.buf)), AddrAlign: 1,
	})

	hdr.ShOff = off
	hdr.ShNum = uint16(len(shdrs))
	hdr.ShStrNdx = uint16(shstrIdx)

	binary.Write(&buf, binary.LittleEndian, &hdr)
	for _, o := range outs {
		if o.typ != shtNobits {
			buf.Write(o.data)
		}
	}
	for _, s := range syms {
		binary.Write(&buf, binary.LittleEndian, &s)
	}
	buf.Write(symstrtab.buf)
	for _, o := range outs {
		for _, r := range o.rela {
			binary.Write(&buf, binary.LittleEndian, &r)
		}
	}
	buf.Write(shstrtab.buf)
	for _, sh := range shdrs {
		binary.Write(&buf, binary.LittleEndian, &sh)
	}

	return buf.Bytes(), nil
}

func resolvedOffset(s *symbol.Symbol, baseOffset int64) int64 {
	r := resolverAdapter{}
	off, ok := r.ResolveLocation(s.Loc)
	if !ok {
		return 0
	}
	return off - baseOffset
}
