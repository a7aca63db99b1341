package classfile

// ---------------------------------------------------------------------------
// Instruction variants
// ---------------------------------------------------------------------------

// InsnKind discriminates the instruction variants.
type InsnKind uint8

const (
	KindSimple InsnKind = iota // no operand
	KindInt                    // bipush, sipush, newarray
	KindVar                    // local variable load/store
	KindType                   // new, anewarray, checkcast, instanceof
	KindField                  // field access
	KindMethod                 // invocation
	KindJump                   // branch to a label
	KindLabel                  // branch target
	KindLdc                    // constant pool load
	KindIinc                   // local increment
)

var kindNames = [...]string{
	KindSimple: "simple",
	KindInt:    "int",
	KindVar:    "var",
	KindType:   "type",
	KindField:  "field",
	KindMethod: "method",
	KindJump:   "jump",
	KindLabel:  "label",
	KindLdc:    "ldc",
	KindIinc:   "iinc",
}

func (k InsnKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Insn is a single instruction of a method body. The set of
// implementations is closed: every value is one of the variants below and
// Kind reports which.
type Insn interface {
	Opcode() Opcode
	Kind() InsnKind
}

// SimpleInsn is an instruction without operands.
type SimpleInsn struct {
	Op Opcode
}

// IntInsn carries a single integer operand.
type IntInsn struct {
	Op      Opcode
	Operand int32
}

// VarInsn loads or stores a local variable.
type VarInsn struct {
	Op  Opcode
	Var int
}

// TypeInsn carries a class internal name or array descriptor.
type TypeInsn struct {
	Op   Opcode
	Desc string
}

// FieldInsn accesses a field.
type FieldInsn struct {
	Op    Opcode
	Owner string
	Name  string
	Desc  string
}

// MethodInsn invokes a method.
type MethodInsn struct {
	Op        Opcode
	Owner     string
	Name      string
	Desc      string
	Interface bool
}

// JumpInsn branches to Label.
type JumpInsn struct {
	Op    Opcode
	Label *LabelNode
}

// LabelNode marks a branch target. Labels are compared by identity; Name is
// a diagnostic hint only and is not written to images.
type LabelNode struct {
	Name string
}

// LdcInsn pushes a constant: string, int32, int64, float32, float64 or Type.
type LdcInsn struct {
	Value any
}

// IincInsn increments a local variable.
type IincInsn struct {
	Var  int
	Incr int32
}

func (i *SimpleInsn) Opcode() Opcode { return i.Op }
func (i *IntInsn) Opcode() Opcode    { return i.Op }
func (i *VarInsn) Opcode() Opcode    { return i.Op }
func (i *TypeInsn) Opcode() Opcode   { return i.Op }
func (i *FieldInsn) Opcode() Opcode  { return i.Op }
func (i *MethodInsn) Opcode() Opcode { return i.Op }
func (i *JumpInsn) Opcode() Opcode   { return i.Op }
func (l *LabelNode) Opcode() Opcode  { return OpLabel }
func (i *LdcInsn) Opcode() Opcode    { return OpLdc }
func (i *IincInsn) Opcode() Opcode   { return OpIinc }

func (i *SimpleInsn) Kind() InsnKind { return KindSimple }
func (i *IntInsn) Kind() InsnKind    { return KindInt }
func (i *VarInsn) Kind() InsnKind    { return KindVar }
func (i *TypeInsn) Kind() InsnKind   { return KindType }
func (i *FieldInsn) Kind() InsnKind  { return KindField }
func (i *MethodInsn) Kind() InsnKind { return KindMethod }
func (i *JumpInsn) Kind() InsnKind   { return KindJump }
func (l *LabelNode) Kind() InsnKind  { return KindLabel }
func (i *LdcInsn) Kind() InsnKind    { return KindLdc }
func (i *IincInsn) Kind() InsnKind   { return KindIinc }

// NewLabel returns a fresh label.
func NewLabel() *LabelNode {
	return &LabelNode{}
}
