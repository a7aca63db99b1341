package classfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ---------------------------------------------------------------------------
// Image Error Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic       = errors.New("invalid magic number: expected CPIM")
	ErrVersionMismatch    = errors.New("image version mismatch")
	ErrCorruptHeader      = errors.New("corrupt image header")
	ErrCorruptData        = errors.New("corrupt image data")
	ErrUnexpectedEOF      = errors.New("unexpected end of image data")
	ErrInvalidStringIndex = errors.New("invalid string index")
	ErrInvalidLabelIndex  = errors.New("invalid label index")
)

// ---------------------------------------------------------------------------
// ImageHeader: Parsed header information
// ---------------------------------------------------------------------------

// ImageHeader contains the parsed header information from an image file.
type ImageHeader struct {
	Magic             string // Should be "CPIM"
	Version           uint32
	Flags             uint32
	ClassCount        uint32
	StringTableOffset uint64
	ClassTableOffset  uint64
}

// IsLibrary reports whether the image holds library classes.
func (h *ImageHeader) IsLibrary() bool {
	return h.Flags&ImageFlagLibrary != 0
}

// ---------------------------------------------------------------------------
// ImageReader: Reads classes from a binary image
// ---------------------------------------------------------------------------

// ImageReader reads an image produced by ImageWriter.
type ImageReader struct {
	data   []byte
	offset int

	header  ImageHeader
	strings []string
}

// NewImageReader creates a new ImageReader from an io.Reader.
func NewImageReader(r io.Reader) (*ImageReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return NewImageReaderFromBytes(data)
}

// NewImageReaderFromBytes creates a new ImageReader from a byte slice.
func NewImageReaderFromBytes(data []byte) (*ImageReader, error) {
	if len(data) < ImageHeaderSize {
		return nil, ErrCorruptHeader
	}
	return &ImageReader{data: data}, nil
}

// ---------------------------------------------------------------------------
// Header Reading
// ---------------------------------------------------------------------------

// ReadHeader reads and validates the image header.
func (ir *ImageReader) ReadHeader() (*ImageHeader, error) {
	if len(ir.data) < ImageHeaderSize {
		return nil, ErrCorruptHeader
	}
	ir.offset = 0

	magic := string(ir.data[0:4])
	if magic != string(ImageMagic[:]) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}
	version := order.Uint32(ir.data[4:])
	if version != ImageVersion {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, ImageVersion, version)
	}

	ir.header = ImageHeader{
		Magic:             magic,
		Version:           version,
		Flags:             order.Uint32(ir.data[8:]),
		ClassCount:        order.Uint32(ir.data[12:]),
		StringTableOffset: order.Uint64(ir.data[16:]),
		ClassTableOffset:  order.Uint64(ir.data[24:]),
	}
	ir.offset = ImageHeaderSize

	size := uint64(len(ir.data))
	if ir.header.StringTableOffset < ImageHeaderSize || ir.header.StringTableOffset > size ||
		ir.header.ClassTableOffset < ir.header.StringTableOffset || ir.header.ClassTableOffset > size {
		return nil, fmt.Errorf("%w: section offsets out of range", ErrCorruptHeader)
	}
	return &ir.header, nil
}

// Header returns the parsed header (must call ReadHeader first).
func (ir *ImageReader) Header() *ImageHeader {
	return &ir.header
}

// ---------------------------------------------------------------------------
// Primitive reads
// ---------------------------------------------------------------------------

func (ir *ImageReader) readByte() (byte, error) {
	if ir.offset+1 > len(ir.data) {
		return 0, ErrUnexpectedEOF
	}
	b := ir.data[ir.offset]
	ir.offset++
	return b, nil
}

func (ir *ImageReader) readUint16() (uint16, error) {
	if ir.offset+2 > len(ir.data) {
		return 0, ErrUnexpectedEOF
	}
	v := order.Uint16(ir.data[ir.offset:])
	ir.offset += 2
	return v, nil
}

func (ir *ImageReader) readUint32() (uint32, error) {
	if ir.offset+4 > len(ir.data) {
		return 0, ErrUnexpectedEOF
	}
	v := order.Uint32(ir.data[ir.offset:])
	ir.offset += 4
	return v, nil
}

func (ir *ImageReader) readUint64() (uint64, error) {
	if ir.offset+8 > len(ir.data) {
		return 0, ErrUnexpectedEOF
	}
	v := order.Uint64(ir.data[ir.offset:])
	ir.offset += 8
	return v, nil
}

// readCount reads a uint32 element count and rejects counts that could
// not possibly fit in the remaining data.
func (ir *ImageReader) readCount() (int, error) {
	n, err := ir.readUint32()
	if err != nil {
		return 0, err
	}
	if int(n) > len(ir.data)-ir.offset {
		return 0, fmt.Errorf("%w: count %d exceeds remaining data", ErrCorruptData, n)
	}
	return int(n), nil
}

// readStringRef reads a string table index and resolves it.
func (ir *ImageReader) readStringRef() (string, error) {
	idx, err := ir.readUint32()
	if err != nil {
		return "", err
	}
	return ir.GetString(idx)
}

// ---------------------------------------------------------------------------
// Table Reading
// ---------------------------------------------------------------------------

// ReadStringTable reads the string table from the image.
func (ir *ImageReader) ReadStringTable() ([]string, error) {
	ir.offset = int(ir.header.StringTableOffset)
	count, err := ir.readCount()
	if err != nil {
		return nil, fmt.Errorf("string table: %w", err)
	}
	ir.strings = make([]string, 0, count)
	for i := 0; i < count; i++ {
		length, err := ir.readUint32()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		if ir.offset+int(length) > len(ir.data) {
			return nil, fmt.Errorf("string %d: %w", i, ErrUnexpectedEOF)
		}
		ir.strings = append(ir.strings, string(ir.data[ir.offset:ir.offset+int(length)]))
		ir.offset += int(length)
	}
	return ir.strings, nil
}

// GetString returns the string at idx in the string table.
func (ir *ImageReader) GetString(idx uint32) (string, error) {
	if int(idx) >= len(ir.strings) {
		return "", fmt.Errorf("%w: %d", ErrInvalidStringIndex, idx)
	}
	return ir.strings[idx], nil
}

// ReadClasses reads the class table. ReadStringTable must have been called.
func (ir *ImageReader) ReadClasses() ([]*ClassNode, error) {
	ir.offset = int(ir.header.ClassTableOffset)
	count, err := ir.readCount()
	if err != nil {
		return nil, fmt.Errorf("class table: %w", err)
	}
	if uint32(count) != ir.header.ClassCount {
		return nil, fmt.Errorf("%w: class table holds %d classes, header says %d",
			ErrCorruptData, count, ir.header.ClassCount)
	}
	classes := make([]*ClassNode, 0, count)
	for i := 0; i < count; i++ {
		c, err := ir.readClass()
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func (ir *ImageReader) readClass() (*ClassNode, error) {
	c := &ClassNode{}
	var err error
	if c.Version, err = ir.readUint32(); err != nil {
		return nil, err
	}
	access, err := ir.readUint16()
	if err != nil {
		return nil, err
	}
	c.Access = Access(access)
	if c.Name, err = ir.readStringRef(); err != nil {
		return nil, err
	}
	superIdx, err := ir.readUint32()
	if err != nil {
		return nil, err
	}
	if superIdx != noString {
		if c.SuperName, err = ir.GetString(superIdx); err != nil {
			return nil, err
		}
	}

	n, err := ir.readCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		in, err := ir.readStringRef()
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, in)
	}

	if n, err = ir.readCount(); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		f, err := ir.readField()
		if err != nil {
			return nil, fmt.Errorf("%s field %d: %w", c.Name, i, err)
		}
		c.Fields = append(c.Fields, f)
	}

	if n, err = ir.readCount(); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m, err := ir.readMethod()
		if err != nil {
			return nil, fmt.Errorf("%s method %d: %w", c.Name, i, err)
		}
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func (ir *ImageReader) readField() (*FieldNode, error) {
	access, err := ir.readUint16()
	if err != nil {
		return nil, err
	}
	f := &FieldNode{Access: Access(access)}
	if f.Name, err = ir.readStringRef(); err != nil {
		return nil, err
	}
	if f.Desc, err = ir.readStringRef(); err != nil {
		return nil, err
	}
	if f.Value, err = ir.readValue(); err != nil {
		return nil, err
	}
	return f, nil
}

func (ir *ImageReader) readMethod() (*MethodNode, error) {
	access, err := ir.readUint16()
	if err != nil {
		return nil, err
	}
	m := &MethodNode{Access: Access(access)}
	if m.Name, err = ir.readStringRef(); err != nil {
		return nil, err
	}
	if m.Desc, err = ir.readStringRef(); err != nil {
		return nil, err
	}
	maxStack, err := ir.readUint32()
	if err != nil {
		return nil, err
	}
	maxLocals, err := ir.readUint32()
	if err != nil {
		return nil, err
	}
	m.MaxStack, m.MaxLocals = int(maxStack), int(maxLocals)

	labelCount, err := ir.readCount()
	if err != nil {
		return nil, err
	}
	labels := make([]*LabelNode, labelCount)
	for i := range labels {
		labels[i] = NewLabel()
	}
	label := func() (*LabelNode, error) {
		idx, err := ir.readUint32()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(labels) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLabelIndex, idx)
		}
		return labels[idx], nil
	}

	insnCount, err := ir.readCount()
	if err != nil {
		return nil, err
	}
	m.Instructions = make([]Insn, 0, insnCount)
	for i := 0; i < insnCount; i++ {
		insn, err := ir.readInsn(label)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		m.Instructions = append(m.Instructions, insn)
	}
	return m, nil
}

func (ir *ImageReader) readInsn(label func() (*LabelNode, error)) (Insn, error) {
	kindByte, err := ir.readByte()
	if err != nil {
		return nil, err
	}
	opByte, err := ir.readByte()
	if err != nil {
		return nil, err
	}
	kind, op := InsnKind(kindByte), Opcode(opByte)
	if info, ok := GetOpcodeInfo(op); !ok || info.Kind != kind {
		return nil, fmt.Errorf("%w: opcode 0x%02X with kind %s", ErrCorruptData, opByte, kind)
	}

	switch kind {
	case KindSimple:
		return &SimpleInsn{Op: op}, nil
	case KindInt:
		v, err := ir.readUint32()
		if err != nil {
			return nil, err
		}
		return &IntInsn{Op: op, Operand: int32(v)}, nil
	case KindVar:
		v, err := ir.readUint32()
		if err != nil {
			return nil, err
		}
		return &VarInsn{Op: op, Var: int(v)}, nil
	case KindType:
		desc, err := ir.readStringRef()
		if err != nil {
			return nil, err
		}
		return &TypeInsn{Op: op, Desc: desc}, nil
	case KindField:
		in := &FieldInsn{Op: op}
		if in.Owner, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		if in.Name, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		if in.Desc, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		return in, nil
	case KindMethod:
		in := &MethodInsn{Op: op}
		if in.Owner, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		if in.Name, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		if in.Desc, err = ir.readStringRef(); err != nil {
			return nil, err
		}
		iface, err := ir.readByte()
		if err != nil {
			return nil, err
		}
		in.Interface = iface != 0
		return in, nil
	case KindJump:
		l, err := label()
		if err != nil {
			return nil, err
		}
		return &JumpInsn{Op: op, Label: l}, nil
	case KindLabel:
		l, err := label()
		if err != nil {
			return nil, err
		}
		return l, nil
	case KindLdc:
		v, err := ir.readValue()
		if err != nil {
			return nil, err
		}
		return &LdcInsn{Value: v}, nil
	case KindIinc:
		v, err := ir.readUint32()
		if err != nil {
			return nil, err
		}
		incr, err := ir.readUint32()
		if err != nil {
			return nil, err
		}
		return &IincInsn{Var: int(v), Incr: int32(incr)}, nil
	}
	return nil, fmt.Errorf("%w: instruction kind %d", ErrCorruptData, kindByte)
}

func (ir *ImageReader) readValue() (any, error) {
	tag, err := ir.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valueTagNil:
		return nil, nil
	case valueTagString:
		return ir.readStringRef()
	case valueTagInt32:
		v, err := ir.readUint32()
		return int32(v), err
	case valueTagInt64:
		v, err := ir.readUint64()
		return int64(v), err
	case valueTagFloat32:
		v, err := ir.readUint32()
		return math.Float32frombits(v), err
	case valueTagFloat64:
		v, err := ir.readUint64()
		return math.Float64frombits(v), err
	case valueTagType:
		desc, err := ir.readStringRef()
		if err != nil {
			return nil, err
		}
		t, err := ParseType(desc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: value tag %d", ErrCorruptData, tag)
}

// ReadAll reads the header, string table and class table.
func (ir *ImageReader) ReadAll() ([]*ClassNode, error) {
	if _, err := ir.ReadHeader(); err != nil {
		return nil, err
	}
	if _, err := ir.ReadStringTable(); err != nil {
		return nil, err
	}
	return ir.ReadClasses()
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// DecodeImage decodes an image and returns its header and classes.
func DecodeImage(data []byte) (*ImageHeader, []*ClassNode, error) {
	ir, err := NewImageReaderFromBytes(data)
	if err != nil {
		return nil, nil, err
	}
	classes, err := ir.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return ir.Header(), classes, nil
}

// ReadImage decodes an image from r.
func ReadImage(r io.Reader) (*ImageHeader, []*ClassNode, error) {
	ir, err := NewImageReader(r)
	if err != nil {
		return nil, nil, err
	}
	classes, err := ir.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return ir.Header(), classes, nil
}

// LoadImage reads an image file.
func LoadImage(path string) (*ImageHeader, []*ClassNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image: %w", err)
	}
	return DecodeImage(data)
}
