package classfile

import "encoding/binary"

// Multi-byte values in an image are big-endian, as in the class file
// format.
var order = binary.BigEndian

// noString marks an absent optional string (e.g. the superclass of
// java/lang/Object).
const noString uint32 = 0xFFFFFFFF

// stringTable interns every string an image refers to. Indices are
// assigned in first-use order, so collecting classes in a fixed order
// yields a fixed table.
type stringTable struct {
	index map[string]uint32
	list  []string
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]uint32)}
}

func (t *stringTable) intern(s string) uint32 {
	if idx, ok := t.index[s]; ok {
		return idx
	}
	idx := uint32(len(t.list))
	t.index[s] = idx
	t.list = append(t.list, s)
	return idx
}

// lookup returns the index of s, which must have been interned.
func (t *stringTable) lookup(s string) uint32 {
	idx, ok := t.index[s]
	if !ok {
		panic("classfile: string not collected: " + s)
	}
	return idx
}

// Tags for field initial values and ldc operands.
const (
	valueTagNil     byte = 0
	valueTagString  byte = 1
	valueTagInt32   byte = 2
	valueTagInt64   byte = 3
	valueTagFloat32 byte = 4
	valueTagFloat64 byte = 5
	valueTagType    byte = 6
)
