package insn

import (
	"errors"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

var (
	// ErrUnbound is returned by Create when a weak name has no binding.
	ErrUnbound = errors.New("insn: unbound weak name")

	// ErrNotCreatable is returned by Create for instructions that only
	// match, such as wildcards.
	ErrNotCreatable = errors.New("insn: instruction cannot be created")
)

// Context is what a handler sees of the match in progress.
type Context struct {
	Classes *universe.ClassSet
	Scope   *scope.Scope          // nil while pre-filtering candidates
	Method  *classfile.MethodNode // concrete method whose body is checked or built

	// Tick is called once per matcher step. Returning false aborts the
	// match.
	Tick func() bool
}

// withScope returns a copy of ctx bound to sc.
func (ctx *Context) withScope(sc *scope.Scope) *Context {
	c := *ctx
	c.Scope = sc
	return &c
}

// FieldRef is a field named by a template instruction.
type FieldRef struct {
	Owner patch.Ident
	Name  patch.Ident
	Desc  string
}

// Handler implements one instruction family.
type Handler interface {
	// Check reports whether concrete matches t, binding weak names in
	// ctx.Scope.
	Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool

	// Create builds the concrete instruction for t, resolving weak names
	// through ctx.Scope.
	Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error)

	// Print renders concrete as a template instruction.
	Print(p *Printer, concrete classfile.Insn) *patch.Instruction

	// Validate records malformed operands of t.
	Validate(v *patch.Validator, t *patch.Instruction)

	// ReferencedClasses returns the class names t mentions.
	ReferencedClasses(t *patch.Instruction) []patch.Ident

	// ReferencedFields returns the fields t accesses.
	ReferencedFields(t *patch.Instruction) []FieldRef
}

var handlers [patch.NumOps]Handler

func init() {
	handlers[patch.OpField] = fieldHandler{}
	handlers[patch.OpInvoke] = invokeHandler{}
	handlers[patch.OpReturn] = returnHandler{}
	handlers[patch.OpPushInt] = pushIntHandler{}
	handlers[patch.OpPushLong] = pushLongHandler{}
	handlers[patch.OpPushFloat] = pushFloatHandler{}
	handlers[patch.OpPushDouble] = pushDoubleHandler{}
	handlers[patch.OpPushString] = pushStringHandler{}
	handlers[patch.OpPushClass] = pushClassHandler{}
	handlers[patch.OpLabel] = labelHandler{}
	handlers[patch.OpJump] = jumpHandler{}
	handlers[patch.OpVar] = varHandler{}
	handlers[patch.OpType] = typeHandler{}
	handlers[patch.OpIinc] = iincHandler{}
	handlers[patch.OpSimple] = simpleHandler{}
	handlers[patch.OpAny] = anyHandler{}
}

// HandlerFor returns the handler of an instruction family.
func HandlerFor(op patch.Op) Handler {
	return handlers[op]
}

// OpFor returns the family a concrete instruction prints as.
func OpFor(in classfile.Insn) patch.Op {
	switch in := in.(type) {
	case *classfile.SimpleInsn:
		switch {
		case in.Op.IsReturn():
			return patch.OpReturn
		case patch.IsIntConst(in.Op):
			return patch.OpPushInt
		}
		return patch.OpSimple
	case *classfile.IntInsn:
		if in.Op == classfile.OpNewarray {
			return patch.OpType
		}
		return patch.OpPushInt
	case *classfile.VarInsn:
		return patch.OpVar
	case *classfile.TypeInsn:
		return patch.OpType
	case *classfile.FieldInsn:
		return patch.OpField
	case *classfile.MethodInsn:
		return patch.OpInvoke
	case *classfile.JumpInsn:
		return patch.OpJump
	case *classfile.LabelNode:
		return patch.OpLabel
	case *classfile.IincInsn:
		return patch.OpIinc
	case *classfile.LdcInsn:
		switch in.Value.(type) {
		case int32:
			return patch.OpPushInt
		case int64:
			return patch.OpPushLong
		case float32:
			return patch.OpPushFloat
		case float64:
			return patch.OpPushDouble
		case classfile.Type:
			return patch.OpPushClass
		}
		return patch.OpPushString
	}
	return patch.OpSimple
}

// Print renders a concrete instruction as a template instruction.
func Print(p *Printer, in classfile.Insn) *patch.Instruction {
	return HandlerFor(OpFor(in)).Print(p, in)
}

// Create builds the concrete instruction for t.
func Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	return HandlerFor(t.Op).Create(ctx, t)
}

// Check reports whether concrete matches t.
func Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	return HandlerFor(t.Op).Check(ctx, t, concrete)
}

func newInsn(op patch.Op, opcode classfile.Opcode, params ...string) *patch.Instruction {
	return &patch.Instruction{Op: op, Opcode: opcode, Mode: patch.Match, Params: params}
}
