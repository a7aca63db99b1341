package classfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// ---------------------------------------------------------------------------
// Image Format Constants
// ---------------------------------------------------------------------------

// ImageMagic is the magic number identifying a class image file.
var ImageMagic = [4]byte{'C', 'P', 'I', 'M'}

// ImageVersion is the current image format version.
const ImageVersion uint32 = 1

// ImageHeaderSize is the header size in bytes:
// magic(4) + version(4) + flags(4) + classCount(4) + stringTableOffset(8) + classTableOffset(8) = 32
const ImageHeaderSize = 32

// Image flags
const (
	ImageFlagNone    uint32 = 0
	ImageFlagLibrary uint32 = 1 << 0 // Classes resolve hierarchy only and are never patched
)

// ErrUnsupportedValue is returned when a constant cannot be encoded.
var ErrUnsupportedValue = errors.New("unsupported constant value")

// ---------------------------------------------------------------------------
// ImageWriter: Serializes classes to a binary image
// ---------------------------------------------------------------------------

// ImageWriter serializes a set of classes to the binary image format.
//
// An image is a header, a string table and a class table. Every name and
// descriptor is stored once in the string table and referenced by index.
// Labels are stored as per-method indices.
type ImageWriter struct {
	buf     *bytes.Buffer
	strings *stringTable

	// Section offsets (for header back-patching)
	stringTableOffset uint64
	classTableOffset  uint64

	classes []*ClassNode
	flags   uint32
}

// NewImageWriter creates a new image writer.
func NewImageWriter() *ImageWriter {
	return &ImageWriter{
		buf:     bytes.NewBuffer(nil),
		strings: newStringTable(),
		flags:   ImageFlagNone,
	}
}

// SetFlags sets the image flags.
func (w *ImageWriter) SetFlags(flags uint32) {
	w.flags = flags
}

// ---------------------------------------------------------------------------
// Pre-registration phase
// ---------------------------------------------------------------------------

// collect registers every string referenced by the classes. Classes are
// written in name order so equal class sets produce identical images.
func (w *ImageWriter) collect(classes []*ClassNode) error {
	w.classes = append([]*ClassNode(nil), classes...)
	sort.SliceStable(w.classes, func(i, j int) bool {
		return w.classes[i].Name < w.classes[j].Name
	})

	for _, c := range w.classes {
		w.strings.intern(c.Name)
		if c.SuperName != "" {
			w.strings.intern(c.SuperName)
		}
		for _, in := range c.Interfaces {
			w.strings.intern(in)
		}
		for _, f := range c.Fields {
			w.strings.intern(f.Name)
			w.strings.intern(f.Desc)
			if err := w.collectValue(f.Value); err != nil {
				return fmt.Errorf("field %s.%s: %w", c.Name, f.Name, err)
			}
		}
		for _, m := range c.Methods {
			w.strings.intern(m.Name)
			w.strings.intern(m.Desc)
			if err := w.collectMethod(m); err != nil {
				return fmt.Errorf("method %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
			}
		}
	}
	return nil
}

func (w *ImageWriter) collectMethod(m *MethodNode) error {
	for _, insn := range m.Instructions {
		switch in := insn.(type) {
		case *TypeInsn:
			w.strings.intern(in.Desc)
		case *FieldInsn:
			w.strings.intern(in.Owner)
			w.strings.intern(in.Name)
			w.strings.intern(in.Desc)
		case *MethodInsn:
			w.strings.intern(in.Owner)
			w.strings.intern(in.Name)
			w.strings.intern(in.Desc)
		case *LdcInsn:
			if err := w.collectValue(in.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *ImageWriter) collectValue(v any) error {
	switch val := v.(type) {
	case nil, int32, int64, float32, float64:
	case string:
		w.strings.intern(val)
	case Type:
		w.strings.intern(val.Descriptor())
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Header writing
// ---------------------------------------------------------------------------

// writeHeader writes the image header with placeholder offsets.
// The offsets are back-patched after all sections are written.
func (w *ImageWriter) writeHeader() {
	w.buf.Write(ImageMagic[:])
	w.writeUint32(ImageVersion)
	w.writeUint32(w.flags)
	w.writeUint32(uint32(len(w.classes)))
	w.writeUint64(0) // string table offset
	w.writeUint64(0) // class table offset
}

// patchHeader updates the header with final section offsets.
func (w *ImageWriter) patchHeader() {
	data := w.buf.Bytes()
	order.PutUint64(data[16:], w.stringTableOffset)
	order.PutUint64(data[24:], w.classTableOffset)
}

// ---------------------------------------------------------------------------
// Section writing
// ---------------------------------------------------------------------------

// writeStringTable writes [count:32 | (length:32 | utf8 bytes)...].
func (w *ImageWriter) writeStringTable() {
	w.stringTableOffset = uint64(w.buf.Len())
	w.writeUint32(uint32(len(w.strings.list)))
	for _, s := range w.strings.list {
		w.writeUint32(uint32(len(s)))
		w.buf.WriteString(s)
	}
}

func (w *ImageWriter) writeClasses() {
	w.classTableOffset = uint64(w.buf.Len())
	w.writeUint32(uint32(len(w.classes)))
	for _, c := range w.classes {
		w.writeClass(c)
	}
}

func (w *ImageWriter) writeClass(c *ClassNode) {
	w.writeUint32(c.Version)
	w.writeUint16(uint16(c.Access))
	w.writeStringRef(c.Name)
	if c.SuperName == "" {
		w.writeUint32(noString)
	} else {
		w.writeStringRef(c.SuperName)
	}

	w.writeUint32(uint32(len(c.Interfaces)))
	for _, in := range c.Interfaces {
		w.writeStringRef(in)
	}

	w.writeUint32(uint32(len(c.Fields)))
	for _, f := range c.Fields {
		w.writeUint16(uint16(f.Access))
		w.writeStringRef(f.Name)
		w.writeStringRef(f.Desc)
		w.writeValue(f.Value)
	}

	w.writeUint32(uint32(len(c.Methods)))
	for _, m := range c.Methods {
		w.writeMethod(m)
	}
}

// writeMethod writes a method header followed by its instructions.
// Labels are numbered in order of first appearance, whether as a jump
// target or as a position in the body.
func (w *ImageWriter) writeMethod(m *MethodNode) {
	w.writeUint16(uint16(m.Access))
	w.writeStringRef(m.Name)
	w.writeStringRef(m.Desc)
	w.writeUint32(uint32(m.MaxStack))
	w.writeUint32(uint32(m.MaxLocals))

	labels := make(map[*LabelNode]uint32)
	index := func(l *LabelNode) uint32 {
		if idx, ok := labels[l]; ok {
			return idx
		}
		idx := uint32(len(labels))
		labels[l] = idx
		return idx
	}
	for _, insn := range m.Instructions {
		switch in := insn.(type) {
		case *LabelNode:
			index(in)
		case *JumpInsn:
			index(in.Label)
		}
	}

	w.writeUint32(uint32(len(labels)))
	w.writeUint32(uint32(len(m.Instructions)))
	for _, insn := range m.Instructions {
		w.buf.WriteByte(byte(insn.Kind()))
		w.buf.WriteByte(byte(insn.Opcode()))
		switch in := insn.(type) {
		case *SimpleInsn:
		case *IntInsn:
			w.writeUint32(uint32(in.Operand))
		case *VarInsn:
			w.writeUint32(uint32(in.Var))
		case *TypeInsn:
			w.writeStringRef(in.Desc)
		case *FieldInsn:
			w.writeStringRef(in.Owner)
			w.writeStringRef(in.Name)
			w.writeStringRef(in.Desc)
		case *MethodInsn:
			w.writeStringRef(in.Owner)
			w.writeStringRef(in.Name)
			w.writeStringRef(in.Desc)
			if in.Interface {
				w.buf.WriteByte(1)
			} else {
				w.buf.WriteByte(0)
			}
		case *JumpInsn:
			w.writeUint32(labels[in.Label])
		case *LabelNode:
			w.writeUint32(labels[in])
		case *LdcInsn:
			w.writeValue(in.Value)
		case *IincInsn:
			w.writeUint32(uint32(in.Var))
			w.writeUint32(uint32(in.Incr))
		}
	}
}

// writeValue writes a tagged constant. Unsupported values were rejected
// during collection.
func (w *ImageWriter) writeValue(v any) {
	switch val := v.(type) {
	case nil:
		w.buf.WriteByte(valueTagNil)
	case string:
		w.buf.WriteByte(valueTagString)
		w.writeStringRef(val)
	case int32:
		w.buf.WriteByte(valueTagInt32)
		w.writeUint32(uint32(val))
	case int64:
		w.buf.WriteByte(valueTagInt64)
		w.writeUint64(uint64(val))
	case float32:
		w.buf.WriteByte(valueTagFloat32)
		w.writeUint32(math.Float32bits(val))
	case float64:
		w.buf.WriteByte(valueTagFloat64)
		w.writeUint64(math.Float64bits(val))
	case Type:
		w.buf.WriteByte(valueTagType)
		w.writeStringRef(val.Descriptor())
	}
}

func (w *ImageWriter) writeStringRef(s string) {
	w.writeUint32(w.strings.lookup(s))
}

func (w *ImageWriter) writeUint16(v uint16) {
	w.buf.Write(order.AppendUint16(nil, v))
}

func (w *ImageWriter) writeUint32(v uint32) {
	w.buf.Write(order.AppendUint32(nil, v))
}

func (w *ImageWriter) writeUint64(v uint64) {
	w.buf.Write(order.AppendUint64(nil, v))
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// Encode serializes the classes into the writer's buffer.
func (w *ImageWriter) Encode(classes []*ClassNode) error {
	w.buf.Reset()
	if err := w.collect(classes); err != nil {
		return err
	}
	w.writeHeader()
	w.writeStringTable()
	w.writeClasses()
	w.patchHeader()
	return nil
}

// WriteTo writes the encoded image to out.
func (w *ImageWriter) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.buf.Bytes())
	return int64(n), err
}

// Bytes returns the encoded image.
func (w *ImageWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// EncodeImage serializes classes to an image.
func EncodeImage(classes []*ClassNode, flags uint32) ([]byte, error) {
	w := NewImageWriter()
	w.SetFlags(flags)
	if err := w.Encode(classes); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// SaveImage writes classes to an image file.
func SaveImage(path string, classes []*ClassNode, flags uint32) error {
	data, err := EncodeImage(classes, flags)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
