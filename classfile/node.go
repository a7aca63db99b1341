package classfile

// DefaultVersion is the class file version given to classes created by
// patches (Java 7).
const DefaultVersion uint32 = 51

// ObjectClass is the implicit superclass of every class.
const ObjectClass = "java/lang/Object"

// ClassNode is a compiled class.
type ClassNode struct {
	Version    uint32
	Access     Access
	Name       string // internal name, e.g. "java/lang/String"
	SuperName  string // empty only for java/lang/Object
	Interfaces []string
	Fields     []*FieldNode
	Methods    []*MethodNode
}

// FieldNode is a field declaration.
type FieldNode struct {
	Access Access
	Name   string
	Desc   string
	Value  any // nil, string, int32, int64, float32 or float64
}

// MethodNode is a method declaration and its body.
type MethodNode struct {
	Access       Access
	Name         string
	Desc         string
	MaxStack     int
	MaxLocals    int
	Instructions []Insn
}

// NewClassNode creates a public class extending java/lang/Object.
func NewClassNode(name string) *ClassNode {
	return &ClassNode{
		Version:   DefaultVersion,
		Access:    AccPublic | AccSuper,
		Name:      name,
		SuperName: ObjectClass,
	}
}

// Field returns the declared field with the given name and descriptor, or nil.
func (c *ClassNode) Field(name, desc string) *FieldNode {
	for _, f := range c.Fields {
		if f.Name == name && f.Desc == desc {
			return f
		}
	}
	return nil
}

// Method returns the declared method with the given name and descriptor, or nil.
func (c *ClassNode) Method(name, desc string) *MethodNode {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// RemoveField detaches f from the class. It reports whether f was present.
func (c *ClassNode) RemoveField(f *FieldNode) bool {
	for i, cur := range c.Fields {
		if cur == f {
			c.Fields = append(c.Fields[:i], c.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveMethod detaches m from the class. It reports whether m was present.
func (c *ClassNode) RemoveMethod(m *MethodNode) bool {
	for i, cur := range c.Methods {
		if cur == m {
			c.Methods = append(c.Methods[:i], c.Methods[i+1:]...)
			return true
		}
	}
	return false
}

// HasInterface reports whether the class directly implements name.
func (c *ClassNode) HasInterface(name string) bool {
	for _, in := range c.Interfaces {
		if in == name {
			return true
		}
	}
	return false
}

// IsStatic reports whether the method is static.
func (m *MethodNode) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// ReturnType returns the parsed return type of the method. A malformed
// descriptor yields the void type.
func (m *MethodNode) ReturnType() Type {
	t, err := ParseMethodType(m.Desc)
	if err != nil {
		return VoidType
	}
	return t.Return()
}

// Clone returns a deep copy of the class. Labels are copied so that jumps in
// the copy target the copied labels.
func (c *ClassNode) Clone() *ClassNode {
	cp := *c
	cp.Interfaces = append([]string(nil), c.Interfaces...)
	cp.Fields = make([]*FieldNode, len(c.Fields))
	for i, f := range c.Fields {
		fc := *f
		cp.Fields[i] = &fc
	}
	cp.Methods = make([]*MethodNode, len(c.Methods))
	for i, m := range c.Methods {
		cp.Methods[i] = m.Clone()
	}
	return &cp
}

// Clone returns a deep copy of the method.
func (m *MethodNode) Clone() *MethodNode {
	cp := *m
	if m.Instructions == nil {
		return &cp
	}
	labels := make(map[*LabelNode]*LabelNode)
	label := func(l *LabelNode) *LabelNode {
		if nl, ok := labels[l]; ok {
			return nl
		}
		nl := &LabelNode{Name: l.Name}
		labels[l] = nl
		return nl
	}
	cp.Instructions = make([]Insn, len(m.Instructions))
	for i, insn := range m.Instructions {
		switch in := insn.(type) {
		case *LabelNode:
			cp.Instructions[i] = label(in)
		case *JumpInsn:
			cp.Instructions[i] = &JumpInsn{Op: in.Op, Label: label(in.Label)}
		case *SimpleInsn:
			c := *in
			cp.Instructions[i] = &c
		case *IntInsn:
			c := *in
			cp.Instructions[i] = &c
		case *VarInsn:
			c := *in
			cp.Instructions[i] = &c
		case *TypeInsn:
			c := *in
			cp.Instructions[i] = &c
		case *FieldInsn:
			c := *in
			cp.Instructions[i] = &c
		case *MethodInsn:
			c := *in
			cp.Instructions[i] = &c
		case *LdcInsn:
			c := *in
			cp.Instructions[i] = &c
		case *IincInsn:
			c := *in
			cp.Instructions[i] = &c
		}
	}
	return &cp
}

// CloneClasses deep copies a class list.
func CloneClasses(classes []*ClassNode) []*ClassNode {
	out := make([]*ClassNode, len(classes))
	for i, c := range classes {
		out[i] = c.Clone()
	}
	return out
}
