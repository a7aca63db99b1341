package classfile

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type: field and method descriptors
// ---------------------------------------------------------------------------

// ErrInvalidDescriptor is returned for malformed descriptors.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Sort is the kind of a Type.
type Sort uint8

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
	SortMethod
)

var sortNames = [...]string{
	SortVoid:    "void",
	SortBoolean: "boolean",
	SortChar:    "char",
	SortByte:    "byte",
	SortShort:   "short",
	SortInt:     "int",
	SortFloat:   "float",
	SortLong:    "long",
	SortDouble:  "double",
	SortArray:   "array",
	SortObject:  "object",
	SortMethod:  "method",
}

func (s Sort) String() string {
	if int(s) < len(sortNames) {
		return sortNames[s]
	}
	return "unknown"
}

// Type is a parsed descriptor. The zero value is the void type.
type Type struct {
	sort Sort
	desc string
	args []Type // SortMethod only
	ret  *Type  // SortMethod only
}

var primitiveSorts = map[byte]Sort{
	'V': SortVoid,
	'Z': SortBoolean,
	'C': SortChar,
	'B': SortByte,
	'S': SortShort,
	'I': SortInt,
	'F': SortFloat,
	'J': SortLong,
	'D': SortDouble,
}

// Common primitive types.
var (
	VoidType    = Type{sort: SortVoid, desc: "V"}
	IntType     = Type{sort: SortInt, desc: "I"}
	LongType    = Type{sort: SortLong, desc: "J"}
	BooleanType = Type{sort: SortBoolean, desc: "Z"}
)

// ParseType parses a field descriptor (or "V").
func ParseType(desc string) (Type, error) {
	t, n, err := parseOne(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("%w: trailing characters in %q", ErrInvalidDescriptor, desc)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(desc string) Type {
	t, err := ParseType(desc)
	if err != nil {
		panic(err)
	}
	return t
}

// ObjectType returns the type of a class internal name. Array descriptors
// are accepted too, as they appear in TypeInsn operands.
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		if t, err := ParseType(internalName); err == nil {
			return t
		}
	}
	return Type{sort: SortObject, desc: "L" + internalName + ";"}
}

// ParseMethodType parses a method descriptor such as "(ILjava/lang/String;)V".
func ParseMethodType(desc string) (Type, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return Type{}, fmt.Errorf("%w: method descriptor %q must start with '('", ErrInvalidDescriptor, desc)
	}
	var args []Type
	i := 1
	for {
		if i >= len(desc) {
			return Type{}, fmt.Errorf("%w: unterminated argument list in %q", ErrInvalidDescriptor, desc)
		}
		if desc[i] == ')' {
			i++
			break
		}
		t, n, err := parseOne(desc, i)
		if err != nil {
			return Type{}, err
		}
		if t.sort == SortVoid {
			return Type{}, fmt.Errorf("%w: void argument in %q", ErrInvalidDescriptor, desc)
		}
		args = append(args, t)
		i = n
	}
	ret, n, err := parseOne(desc, i)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("%w: trailing characters in %q", ErrInvalidDescriptor, desc)
	}
	return Type{sort: SortMethod, desc: desc, args: args, ret: &ret}, nil
}

// MethodDescriptor builds a method descriptor from its parts.
func MethodDescriptor(ret Type, args ...Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range args {
		sb.WriteString(a.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(ret.Descriptor())
	return sb.String()
}

// parseOne parses the type starting at desc[i] and returns it with the
// offset just past it.
func parseOne(desc string, i int) (Type, int, error) {
	if i >= len(desc) {
		return Type{}, i, fmt.Errorf("%w: unexpected end of %q", ErrInvalidDescriptor, desc)
	}
	c := desc[i]
	if s, ok := primitiveSorts[c]; ok {
		return Type{sort: s, desc: desc[i : i+1]}, i + 1, nil
	}
	switch c {
	case '[':
		elem, n, err := parseOne(desc, i+1)
		if err != nil {
			return Type{}, n, err
		}
		if elem.sort == SortVoid {
			return Type{}, n, fmt.Errorf("%w: void array element in %q", ErrInvalidDescriptor, desc)
		}
		return Type{sort: SortArray, desc: desc[i:n]}, n, nil
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return Type{}, len(desc), fmt.Errorf("%w: unterminated class name in %q", ErrInvalidDescriptor, desc)
		}
		if end == 1 {
			return Type{}, i + 2, fmt.Errorf("%w: empty class name in %q", ErrInvalidDescriptor, desc)
		}
		return Type{sort: SortObject, desc: desc[i : i+end+1]}, i + end + 1, nil
	}
	return Type{}, i, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidDescriptor, c, desc)
}

// Sort returns the kind of the type.
func (t Type) Sort() Sort { return t.sort }

// Descriptor returns the descriptor text.
func (t Type) Descriptor() string {
	if t.desc == "" && t.sort == SortVoid {
		return "V"
	}
	return t.desc
}

// String returns the descriptor text.
func (t Type) String() string { return t.Descriptor() }

// InternalName returns the class name of an object type, or the descriptor
// for every other sort.
func (t Type) InternalName() string {
	if t.sort == SortObject {
		return t.desc[1 : len(t.desc)-1]
	}
	return t.desc
}

// ElementType returns the component type of an array, one dimension down.
func (t Type) ElementType() Type {
	if t.sort != SortArray {
		return t
	}
	elem, _, err := parseOne(t.desc, 1)
	if err != nil {
		return Type{}
	}
	return elem
}

// RootType strips every array dimension.
func (t Type) RootType() Type {
	for t.sort == SortArray {
		t = t.ElementType()
	}
	return t
}

// Dimensions returns the number of array dimensions.
func (t Type) Dimensions() int {
	n := 0
	for n < len(t.desc) && t.desc[n] == '[' {
		n++
	}
	return n
}

// Arguments returns the argument types of a method type.
func (t Type) Arguments() []Type {
	return t.args
}

// Return returns the return type of a method type.
func (t Type) Return() Type {
	if t.ret == nil {
		return VoidType
	}
	return *t.ret
}

// Equal reports whether two types have the same descriptor.
func (t Type) Equal(o Type) bool {
	return t.sort == o.sort && t.Descriptor() == o.Descriptor()
}

// ReturnOpcode returns the return instruction for a value of this type.
func (t Type) ReturnOpcode() Opcode {
	switch t.sort {
	case SortVoid:
		return OpReturn
	case SortBoolean, SortChar, SortByte, SortShort, SortInt:
		return OpIreturn
	case SortFloat:
		return OpFreturn
	case SortLong:
		return OpLreturn
	case SortDouble:
		return OpDreturn
	}
	return OpAreturn
}
