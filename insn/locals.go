package insn

import (
	"fmt"
	"strconv"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// checkInt matches an integer operand; "*" matches any value.
func checkInt(param string, v int64) bool {
	if param == patch.Wildcard {
		return true
	}
	want, err := strconv.ParseInt(param, 0, 64)
	return err == nil && want == v
}

// ---------------------------------------------------------------------------
// load-*, store-*
// ---------------------------------------------------------------------------

type varHandler struct{ noRefs }

func (varHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.VarInsn)
	return ok && in.Op == t.Opcode && checkInt(t.Param(0), int64(in.Var))
}

func (varHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	n, err := strconv.ParseUint(t.Param(0), 0, 16)
	if err != nil {
		return nil, err
	}
	return &classfile.VarInsn{Op: t.Opcode, Var: int(n)}, nil
}

func (varHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	in := concrete.(*classfile.VarInsn)
	return newInsn(patch.OpVar, in.Op, strconv.Itoa(in.Var))
}

func (varHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validLocal(v, t, t.Param(0))
	}
}

// ---------------------------------------------------------------------------
// iinc
// ---------------------------------------------------------------------------

type iincHandler struct{ noRefs }

func (iincHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.IincInsn)
	return ok && checkInt(t.Param(0), int64(in.Var)) && checkInt(t.Param(1), int64(in.Incr))
}

func (iincHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	n, err := strconv.ParseUint(t.Param(0), 0, 16)
	if err != nil {
		return nil, err
	}
	incr, err := strconv.ParseInt(t.Param(1), 0, 16)
	if err != nil {
		return nil, err
	}
	return &classfile.IincInsn{Var: int(n), Incr: int32(incr)}, nil
}

func (iincHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	in := concrete.(*classfile.IincInsn)
	return newInsn(patch.OpIinc, classfile.OpIinc, strconv.Itoa(in.Var), strconv.Itoa(int(in.Incr)))
}

func (iincHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 2) {
		validLocal(v, t, t.Param(0))
		validInt(v, t, t.Param(1), 16)
	}
}

// ---------------------------------------------------------------------------
// new, check-cast, instance-of, new-array
// ---------------------------------------------------------------------------

type typeHandler struct{}

// Primitive array type codes of newarray.
var arrayTypeCodes = map[classfile.Sort]int32{
	classfile.SortBoolean: 4,
	classfile.SortChar:    5,
	classfile.SortFloat:   6,
	classfile.SortDouble:  7,
	classfile.SortByte:    8,
	classfile.SortShort:   9,
	classfile.SortInt:     10,
	classfile.SortLong:    11,
}

var arrayTypeDescs = map[int32]string{
	4: "Z", 5: "C", 6: "F", 7: "D", 8: "B", 9: "S", 10: "I", 11: "J",
}

// elementType parses the operand of new-array: a primitive descriptor,
// a class name or an array descriptor.
func elementType(param string) classfile.Type {
	if len(param) == 1 {
		if t, err := classfile.ParseType(param); err == nil {
			return t
		}
	}
	return classfile.ObjectType(param)
}

// operandType returns the type named by a concrete type instruction.
func operandType(in classfile.Insn) (classfile.Type, bool) {
	switch in := in.(type) {
	case *classfile.TypeInsn:
		return classfile.ObjectType(in.Desc), true
	case *classfile.IntInsn:
		if in.Op != classfile.OpNewarray {
			return classfile.Type{}, false
		}
		desc, ok := arrayTypeDescs[in.Operand]
		if !ok {
			return classfile.Type{}, false
		}
		return classfile.MustParseType(desc), true
	}
	return classfile.Type{}, false
}

func (typeHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	op := concrete.Opcode()
	if op != t.Opcode && !(t.Opcode == classfile.OpAnewarray && op == classfile.OpNewarray) {
		return false
	}
	ct, ok := operandType(concrete)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	pattern := classfile.ObjectType(t.Param(0))
	if t.Opcode == classfile.OpAnewarray {
		pattern = elementType(t.Param(0))
	}
	return CheckTypes(ctx.Classes, ctx.Scope, pattern, ct)
}

func (typeHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	if t.Opcode == classfile.OpAnewarray {
		elem, err := MapType(ctx.Scope, elementType(t.Param(0)))
		if err != nil {
			return nil, err
		}
		if code, ok := arrayTypeCodes[elem.Sort()]; ok {
			return &classfile.IntInsn{Op: classfile.OpNewarray, Operand: code}, nil
		}
		return &classfile.TypeInsn{Op: classfile.OpAnewarray, Desc: elem.InternalName()}, nil
	}
	name, err := mapInternalName(ctx.Scope, t.Param(0))
	if err != nil {
		return nil, err
	}
	return &classfile.TypeInsn{Op: t.Opcode, Desc: name}, nil
}

func (typeHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	if in, ok := concrete.(*classfile.IntInsn); ok {
		return newInsn(patch.OpType, classfile.OpAnewarray, arrayTypeDescs[in.Operand])
	}
	in := concrete.(*classfile.TypeInsn)
	return newInsn(patch.OpType, in.Op, p.InternalName(in.Desc))
}

func (typeHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validTypeOperand(v, t, t.Param(0))
	}
}

func (typeHandler) ReferencedClasses(t *patch.Instruction) []patch.Ident {
	if t.Opcode == classfile.OpAnewarray && len(t.Param(0)) == 1 {
		if _, primitive := arrayTypeCodes[elementType(t.Param(0)).Sort()]; primitive {
			return nil
		}
	}
	return typeIdents(t.Param(0))
}

func (typeHandler) ReferencedFields(*patch.Instruction) []FieldRef { return nil }

// ---------------------------------------------------------------------------
// operand-less instructions
// ---------------------------------------------------------------------------

type simpleHandler struct{ noRefs }

func (simpleHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.SimpleInsn)
	return ok && in.Op == t.Opcode
}

func (simpleHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	return &classfile.SimpleInsn{Op: t.Opcode}, nil
}

func (simpleHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	op := concrete.Opcode()
	return newInsn(patch.OpSimple, op)
}

func (simpleHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	arity(v, t, 0)
}

// ---------------------------------------------------------------------------
// any
// ---------------------------------------------------------------------------

// anyHandler stands for zero or more instructions. The body matcher
// handles it directly; the handler only rejects single-instruction use.
type anyHandler struct{ noRefs }

func (anyHandler) Check(*Context, *patch.Instruction, classfile.Insn) bool { return true }

func (anyHandler) Create(*Context, *patch.Instruction) (classfile.Insn, error) {
	return nil, fmt.Errorf("%w: any", ErrNotCreatable)
}

func (anyHandler) Print(*Printer, classfile.Insn) *patch.Instruction {
	return newInsn(patch.OpAny, classfile.OpNop)
}

func (anyHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	arity(v, t, 0)
}
