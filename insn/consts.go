package insn

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// noRefs provides empty reference extraction for families without names.
type noRefs struct{}

func (noRefs) ReferencedClasses(*patch.Instruction) []patch.Ident { return nil }
func (noRefs) ReferencedFields(*patch.Instruction) []FieldRef     { return nil }

// ---------------------------------------------------------------------------
// push-int
// ---------------------------------------------------------------------------

type pushIntHandler struct{ noRefs }

// intValue returns the int constant pushed by in.
func intValue(in classfile.Insn) (int32, bool) {
	switch in := in.(type) {
	case *classfile.SimpleInsn:
		if patch.IsIntConst(in.Op) {
			return int32(in.Op) - int32(classfile.OpIconst0), true
		}
	case *classfile.IntInsn:
		if in.Op == classfile.OpBipush || in.Op == classfile.OpSipush {
			return in.Operand, true
		}
	case *classfile.LdcInsn:
		v, ok := in.Value.(int32)
		return v, ok
	}
	return 0, false
}

func (pushIntHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	v, ok := intValue(concrete)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	want, err := strconv.ParseInt(t.Param(0), 0, 32)
	return err == nil && int32(want) == v
}

// Create picks the shortest encoding of the constant.
func (pushIntHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	n, err := strconv.ParseInt(t.Param(0), 0, 32)
	if err != nil {
		return nil, err
	}
	return PushInt(int32(n)), nil
}

// PushInt returns the shortest instruction pushing v.
func PushInt(v int32) classfile.Insn {
	switch {
	case v >= -1 && v <= 5:
		return &classfile.SimpleInsn{Op: classfile.Opcode(int32(classfile.OpIconst0) + v)}
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return &classfile.IntInsn{Op: classfile.OpBipush, Operand: v}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return &classfile.IntInsn{Op: classfile.OpSipush, Operand: v}
	}
	return &classfile.LdcInsn{Value: v}
}

func (pushIntHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	v, _ := intValue(concrete)
	return newInsn(patch.OpPushInt, classfile.OpLdc, strconv.FormatInt(int64(v), 10))
}

func (pushIntHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validInt(v, t, t.Param(0), 32)
	}
}

// ---------------------------------------------------------------------------
// push-long
// ---------------------------------------------------------------------------

type pushLongHandler struct{ noRefs }

func longValue(in classfile.Insn) (int64, bool) {
	switch in := in.(type) {
	case *classfile.SimpleInsn:
		switch in.Op {
		case classfile.OpLconst0:
			return 0, true
		case classfile.OpLconst1:
			return 1, true
		}
	case *classfile.LdcInsn:
		v, ok := in.Value.(int64)
		return v, ok
	}
	return 0, false
}

func parseLong(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimRight(s, "lL"), 0, 64)
}

func (pushLongHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	v, ok := longValue(concrete)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	want, err := parseLong(t.Param(0))
	return err == nil && want == v
}

func (pushLongHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	v, err := parseLong(t.Param(0))
	if err != nil {
		return nil, err
	}
	switch v {
	case 0:
		return &classfile.SimpleInsn{Op: classfile.OpLconst0}, nil
	case 1:
		return &classfile.SimpleInsn{Op: classfile.OpLconst1}, nil
	}
	return &classfile.LdcInsn{Value: v}, nil
}

func (pushLongHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	v, _ := longValue(concrete)
	return newInsn(patch.OpPushLong, classfile.OpLdc, strconv.FormatInt(v, 10))
}

func (pushLongHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 1) || wildcardOK(v, t, t.Param(0)) {
		return
	}
	if _, err := parseLong(t.Param(0)); err != nil {
		v.Errorf(t.Line, "%s: bad long %q", t.Mnemonic(), t.Param(0))
	}
}

// ---------------------------------------------------------------------------
// push-float, push-double
// ---------------------------------------------------------------------------

type pushFloatHandler struct{ noRefs }

func floatValue(in classfile.Insn) (float32, bool) {
	switch in := in.(type) {
	case *classfile.SimpleInsn:
		if in.Op >= classfile.OpFconst0 && in.Op <= classfile.OpFconst2 {
			return float32(in.Op - classfile.OpFconst0), true
		}
	case *classfile.LdcInsn:
		v, ok := in.Value.(float32)
		return v, ok
	}
	return 0, false
}

func parseFloat(s string, bits int) (float64, error) {
	if !strings.HasSuffix(s, "Inf") {
		s = strings.TrimRight(s, "fFdD")
	}
	return strconv.ParseFloat(s, bits)
}

func (pushFloatHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	v, ok := floatValue(concrete)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	want, err := parseFloat(t.Param(0), 32)
	return err == nil && math.Float32bits(float32(want)) == math.Float32bits(v)
}

func (pushFloatHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	f, err := parseFloat(t.Param(0), 32)
	if err != nil {
		return nil, err
	}
	v := float32(f)
	if (v == 0 || v == 1 || v == 2) && !math.Signbit(f) {
		return &classfile.SimpleInsn{Op: classfile.OpFconst0 + classfile.Opcode(v)}, nil
	}
	return &classfile.LdcInsn{Value: v}, nil
}

func (pushFloatHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	v, _ := floatValue(concrete)
	return newInsn(patch.OpPushFloat, classfile.OpLdc, strconv.FormatFloat(float64(v), 'g', -1, 32))
}

func (pushFloatHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 1) || wildcardOK(v, t, t.Param(0)) {
		return
	}
	if _, err := parseFloat(t.Param(0), 32); err != nil {
		v.Errorf(t.Line, "%s: bad float %q", t.Mnemonic(), t.Param(0))
	}
}

type pushDoubleHandler struct{ noRefs }

func doubleValue(in classfile.Insn) (float64, bool) {
	switch in := in.(type) {
	case *classfile.SimpleInsn:
		switch in.Op {
		case classfile.OpDconst0:
			return 0, true
		case classfile.OpDconst1:
			return 1, true
		}
	case *classfile.LdcInsn:
		v, ok := in.Value.(float64)
		return v, ok
	}
	return 0, false
}

func (pushDoubleHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	v, ok := doubleValue(concrete)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	want, err := parseFloat(t.Param(0), 64)
	return err == nil && math.Float64bits(want) == math.Float64bits(v)
}

func (pushDoubleHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	v, err := parseFloat(t.Param(0), 64)
	if err != nil {
		return nil, err
	}
	if !math.Signbit(v) {
		switch v {
		case 0:
			return &classfile.SimpleInsn{Op: classfile.OpDconst0}, nil
		case 1:
			return &classfile.SimpleInsn{Op: classfile.OpDconst1}, nil
		}
	}
	return &classfile.LdcInsn{Value: v}, nil
}

func (pushDoubleHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	v, _ := doubleValue(concrete)
	return newInsn(patch.OpPushDouble, classfile.OpLdc, strconv.FormatFloat(v, 'g', -1, 64))
}

func (pushDoubleHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 1) || wildcardOK(v, t, t.Param(0)) {
		return
	}
	if _, err := parseFloat(t.Param(0), 64); err != nil {
		v.Errorf(t.Line, "%s: bad double %q", t.Mnemonic(), t.Param(0))
	}
}

// ---------------------------------------------------------------------------
// push-string
// ---------------------------------------------------------------------------

type pushStringHandler struct{ noRefs }

func (pushStringHandler) Check(_ *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.LdcInsn)
	if !ok {
		return false
	}
	v, ok := in.Value.(string)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	want, err := strconv.Unquote(t.Param(0))
	return err == nil && want == v
}

func (pushStringHandler) Create(_ *Context, t *patch.Instruction) (classfile.Insn, error) {
	s, err := strconv.Unquote(t.Param(0))
	if err != nil {
		return nil, err
	}
	return &classfile.LdcInsn{Value: s}, nil
}

func (pushStringHandler) Print(_ *Printer, concrete classfile.Insn) *patch.Instruction {
	return newInsn(patch.OpPushString, classfile.OpLdc, strconv.Quote(concrete.(*classfile.LdcInsn).Value.(string)))
}

func (pushStringHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 1) || wildcardOK(v, t, t.Param(0)) {
		return
	}
	if _, err := strconv.Unquote(t.Param(0)); err != nil {
		v.Errorf(t.Line, "push-string: %s is not a quoted string", t.Param(0))
	}
}

// ---------------------------------------------------------------------------
// push-class
// ---------------------------------------------------------------------------

type pushClassHandler struct{}

func (pushClassHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.LdcInsn)
	if !ok {
		return false
	}
	v, ok := in.Value.(classfile.Type)
	if !ok {
		return false
	}
	if t.Param(0) == patch.Wildcard {
		return true
	}
	return CheckTypes(ctx.Classes, ctx.Scope, classfile.ObjectType(t.Param(0)), v)
}

func (pushClassHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	v, err := MapType(ctx.Scope, classfile.ObjectType(t.Param(0)))
	if err != nil {
		return nil, err
	}
	return &classfile.LdcInsn{Value: v}, nil
}

func (pushClassHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	v := concrete.(*classfile.LdcInsn).Value.(classfile.Type)
	return newInsn(patch.OpPushClass, classfile.OpLdc, p.InternalName(v.InternalName()))
}

func (pushClassHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if arity(v, t, 1) {
		validTypeOperand(v, t, t.Param(0))
	}
}

func (pushClassHandler) ReferencedClasses(t *patch.Instruction) []patch.Ident {
	return typeIdents(t.Param(0))
}

func (pushClassHandler) ReferencedFields(*patch.Instruction) []FieldRef { return nil }
