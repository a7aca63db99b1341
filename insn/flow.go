package insn

import (
	"fmt"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// ---------------------------------------------------------------------------
// return
// ---------------------------------------------------------------------------

// returnHandler matches every return opcode; the concrete opcode is derived
// from the return type of the method being built.
type returnHandler struct{ noRefs }

func (returnHandler) Check(_ *Context, _ *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.SimpleInsn)
	return ok && in.Op.IsReturn()
}

func (returnHandler) Create(ctx *Context, _ *patch.Instruction) (classfile.Insn, error) {
	if ctx.Method == nil {
		return nil, fmt.Errorf("%w: return outside a method", ErrNotCreatable)
	}
	return &classfile.SimpleInsn{Op: ctx.Method.ReturnType().ReturnOpcode()}, nil
}

func (returnHandler) Print(*Printer, classfile.Insn) *patch.Instruction {
	return newInsn(patch.OpReturn, classfile.OpReturn)
}

func (returnHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	arity(v, t, 0)
}

// ---------------------------------------------------------------------------
// label
// ---------------------------------------------------------------------------

type labelHandler struct{ noRefs }

func (labelHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	l, ok := concrete.(*classfile.LabelNode)
	return ok && CheckOrSetLabel(ctx, patch.ParseIdent(t.Param(0)), l)
}

func (labelHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	return Label(ctx, patch.ParseIdent(t.Param(0)))
}

func (labelHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	return newInsn(patch.OpLabel, classfile.OpLabel, p.Label(concrete.(*classfile.LabelNode)))
}

func (labelHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validLabel(v, t, t.Param(0))
	}
}

// ---------------------------------------------------------------------------
// goto, if-*
// ---------------------------------------------------------------------------

type jumpHandler struct{ noRefs }

func (jumpHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.JumpInsn)
	return ok && in.Op == t.Opcode && CheckOrSetLabel(ctx, patch.ParseIdent(t.Param(0)), in.Label)
}

func (jumpHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	l, err := Label(ctx, patch.ParseIdent(t.Param(0)))
	if err != nil {
		return nil, err
	}
	return &classfile.JumpInsn{Op: t.Opcode, Label: l}, nil
}

func (jumpHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	in := concrete.(*classfile.JumpInsn)
	return newInsn(patch.OpJump, in.Op, p.Label(in.Label))
}

func (jumpHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validLabel(v, t, t.Param(0))
	}
}
