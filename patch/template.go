package patch

import (
	"github.com/chazu/classpatch/classfile"
)

// ClassKind is the declared kind of a template class.
type ClassKind uint8

const (
	KindClass ClassKind = iota
	KindInterface
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	}
	return "class"
}

// Classes is a parsed template: class templates in declaration order.
type Classes struct {
	Classes []*Class
}

// Class is a class template.
type Class struct {
	Kind       ClassKind
	Ident      Ident
	Mode       Mode
	Extends    []*Modifier
	Interfaces []*Modifier
	Fields     []*Field
	Methods    []*Method
	Line       int
}

// Modifier adds, removes or matches a supertype.
type Modifier struct {
	Ident Ident
	Mode  Mode
	Line  int
}

// Field is a field template.
type Field struct {
	Ident   Ident
	Desc    string
	Mode    Mode
	Static  bool
	Private bool
	Value   any // nil, string, int32, int64, float32 or float64
	Line    int
}

// Type parses the field descriptor.
func (f *Field) Type() (classfile.Type, error) {
	return classfile.ParseType(f.Desc)
}

// Method is a method template.
type Method struct {
	Ident        Ident
	Desc         string
	Mode         Mode
	Static       bool
	Private      bool
	Instructions []*Instruction
	Line         int
}

// Type parses the method descriptor.
func (m *Method) Type() (classfile.Type, error) {
	return classfile.ParseMethodType(m.Desc)
}

// Instruction is one line of a method body template.
type Instruction struct {
	Op     Op
	Opcode classfile.Opcode
	Mode   Mode
	Params []string
	Line   int
}

// Mnemonic returns the template name of the instruction.
func (in *Instruction) Mnemonic() string {
	return Mnemonic(in.Op, in.Opcode)
}

// Param returns the i'th parameter, or "" when absent.
func (in *Instruction) Param(i int) string {
	if i < len(in.Params) {
		return in.Params[i]
	}
	return ""
}

// Access returns the access flags the template declares for new members.
func access(static, private bool) classfile.Access {
	a := classfile.AccPublic
	if private {
		a = classfile.AccPrivate
	}
	if static {
		a |= classfile.AccStatic
	}
	return a
}

// Access returns the access flags given to the field when it is added.
func (f *Field) Access() classfile.Access { return access(f.Static, f.Private) }

// Access returns the access flags given to the method when it is added.
func (m *Method) Access() classfile.Access { return access(m.Static, m.Private) }

// ClassAccess returns the access flags given to the class when it is added.
func (c *Class) ClassAccess() classfile.Access {
	a := classfile.AccPublic | classfile.AccSuper
	switch c.Kind {
	case KindInterface:
		a = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	case KindEnum:
		a |= classfile.AccEnum | classfile.AccFinal
	}
	return a
}
