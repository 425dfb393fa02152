package fragments

import (
	"errors"
	"fmt"
)

// ErrBadContainer is returned when the pack container structure itself is
// malformed (bad TOC offsets, type table out of range).
var ErrBadContainer = errors.New("malformed pack container")

// typeRecord describes one record type in the container's type table. The
// version tag drives per-record decoding decisions.
type typeRecord struct {
	class   string
	name    string
	version uint64
}

// packFile is a parsed pack container: a type-tagged header, a trailing
// table of entry offsets, and a type table shared by all entries.
//
// Layout: varint-length type string, int32 container version, then record
// payloads. The final 8 bytes hold two uint32 offsets pointing at the entry
// offset table and the type table.
type packFile struct {
	r       *reader
	typ     string
	version int32
	entries []uint32
	types   []typeRecord
}

func parsePack(buf []byte) (*packFile, error) {
	r := &reader{buf: buf}
	p := &packFile{r: r}

	p.typ = r.str(int(r.varint()))
	p.version = r.int32()
	if r.err != nil {
		return nil, fmt.Errorf("pack header: %w", r.err)
	}

	if len(buf) < 8 {
		return nil, fmt.Errorf("pack too small for table offsets: %w", ErrBadContainer)
	}
	r.seek(len(buf) - 8)
	entriesOff := r.uint32()
	typesOff := r.uint32()

	r.seek(int(entriesOff))
	n := r.varint()
	p.entries = make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		p.entries = append(p.entries, r.uint32())
	}

	r.seek(int(typesOff))
	n = r.varint()
	p.types = make([]typeRecord, 0, n)
	for i := uint64(0); i < n; i++ {
		p.types = append(p.types, typeRecord{
			class:   r.str(int(r.varint())),
			name:    r.str(int(r.varint())),
			version: r.varint(),
		})
	}

	if r.err != nil {
		return nil, fmt.Errorf("pack tables: %w", r.err)
	}
	return p, nil
}

func (p *packFile) numEntries() int { return len(p.entries) }

// seekEntry positions the reader at entry i and returns its type record, or
// nil when the entry references an unknown type.
func (p *packFile) seekEntry(i int) *typeRecord {
	p.r.seek(int(p.entries[i]))
	typeIndex := p.r.uint32()
	if p.r.err != nil || typeIndex >= uint32(len(p.types)) {
		return nil
	}
	return &p.types[typeIndex]
}
