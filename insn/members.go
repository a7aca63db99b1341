package insn

import (
	"fmt"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// checkOwner matches the owner operand of a field or method instruction.
func checkOwner(ctx *Context, pattern, owner string) bool {
	if pattern == patch.Wildcard {
		return true
	}
	return CheckTypes(ctx.Classes, ctx.Scope, classfile.ObjectType(pattern), classfile.ObjectType(owner))
}

// ---------------------------------------------------------------------------
// get-field, get-static, put-field, put-static
// ---------------------------------------------------------------------------

type fieldHandler struct{}

func (fieldHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.FieldInsn)
	if !ok || in.Op != t.Opcode {
		return false
	}
	if !checkOwner(ctx, t.Param(0), in.Owner) || !CheckDesc(ctx.Classes, ctx.Scope, t.Param(2), in.Desc) {
		return false
	}
	id := patch.ParseIdent(t.Param(1))
	cw := ctx.Classes.ClassWrapper(in.Owner)
	if cw == nil || cw.Field(in.Name, in.Desc) == nil {
		return id.IsWildcard() || (id.IsLiteral() && id.Name == in.Name)
	}
	return ctx.Scope.ResolveField(cw, id, t.Param(2), cw.Field(in.Name, in.Desc))
}

func (fieldHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	owner, err := MapClassName(ctx.Scope, patch.ParseIdent(t.Param(0)))
	if err != nil {
		return nil, err
	}
	desc, err := MapDesc(ctx.Scope, t.Param(2))
	if err != nil {
		return nil, err
	}
	id := patch.ParseIdent(t.Param(1))
	name := id.Name
	if id.IsWeak() {
		cw := ctx.Classes.ClassWrapper(owner)
		if cw == nil {
			return nil, fmt.Errorf("%w: field %s of unknown class %s", ErrUnbound, id, owner)
		}
		fw := ctx.Scope.Field(cw, id.Name, t.Param(2))
		if fw == nil {
			return nil, fmt.Errorf("%w: field %s of %s", ErrUnbound, id, owner)
		}
		name = fw.Name()
	}
	return &classfile.FieldInsn{Op: t.Opcode, Owner: owner, Name: name, Desc: desc}, nil
}

func (fieldHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	in := concrete.(*classfile.FieldInsn)
	return newInsn(patch.OpField, in.Op, p.Class(in.Owner), p.Field(in.Owner, in.Name, in.Desc), p.Desc(in.Desc))
}

func (fieldHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 3) {
		return
	}
	validName(v, t, t.Param(0), "owner")
	validName(v, t, t.Param(1), "field name")
	validDesc(v, t, t.Param(2), false)
}

func (fieldHandler) ReferencedClasses(t *patch.Instruction) []patch.Ident {
	return append(typeIdents(t.Param(0)), descIdents(t.Param(2))...)
}

func (fieldHandler) ReferencedFields(t *patch.Instruction) []FieldRef {
	return []FieldRef{{
		Owner: patch.ParseIdent(t.Param(0)),
		Name:  patch.ParseIdent(t.Param(1)),
		Desc:  t.Param(2),
	}}
}

// ---------------------------------------------------------------------------
// invoke-virtual, invoke-special, invoke-static, invoke-interface
// ---------------------------------------------------------------------------

type invokeHandler struct{}

func (invokeHandler) Check(ctx *Context, t *patch.Instruction, concrete classfile.Insn) bool {
	in, ok := concrete.(*classfile.MethodInsn)
	if !ok || in.Op != t.Opcode {
		return false
	}
	if !checkOwner(ctx, t.Param(0), in.Owner) || !CheckDesc(ctx.Classes, ctx.Scope, t.Param(2), in.Desc) {
		return false
	}
	id := patch.ParseIdent(t.Param(1))
	cw := ctx.Classes.ClassWrapper(in.Owner)
	if cw == nil || cw.Method(in.Name, in.Desc) == nil {
		// Methods of array types and of classes outside the universe have
		// no wrapper to bind a weak name to.
		return id.IsWildcard() || (id.IsLiteral() && id.Name == in.Name)
	}
	return ctx.Scope.ResolveMethod(cw, id, t.Param(2), cw.Method(in.Name, in.Desc))
}

func (invokeHandler) Create(ctx *Context, t *patch.Instruction) (classfile.Insn, error) {
	owner, err := mapInternalName(ctx.Scope, t.Param(0))
	if err != nil {
		return nil, err
	}
	desc, err := MapMethodDesc(ctx.Scope, t.Param(2))
	if err != nil {
		return nil, err
	}
	cw := ctx.Classes.ClassWrapper(owner)
	id := patch.ParseIdent(t.Param(1))
	name := id.Name
	if id.IsWeak() {
		if cw == nil {
			return nil, fmt.Errorf("%w: method %s of unknown class %s", ErrUnbound, id, owner)
		}
		mw := ctx.Scope.Method(cw, id.Name, t.Param(2))
		if mw == nil {
			return nil, fmt.Errorf("%w: method %s of %s", ErrUnbound, id, owner)
		}
		name = mw.Name()
	}
	return &classfile.MethodInsn{
		Op:        t.Opcode,
		Owner:     owner,
		Name:      name,
		Desc:      desc,
		Interface: t.Opcode == classfile.OpInvokeinterface || (cw != nil && cw.IsInterface()),
	}, nil
}

func (invokeHandler) Print(p *Printer, concrete classfile.Insn) *patch.Instruction {
	in := concrete.(*classfile.MethodInsn)
	return newInsn(patch.OpInvoke, in.Op, p.InternalName(in.Owner), p.Method(in.Owner, in.Name, in.Desc), p.Desc(in.Desc))
}

func (invokeHandler) Validate(v *patch.Validator, t *patch.Instruction) {
	if !arity(v, t, 3) {
		return
	}
	validName(v, t, t.Param(0), "owner")
	validName(v, t, t.Param(1), "method name")
	validDesc(v, t, t.Param(2), true)
}

func (invokeHandler) ReferencedClasses(t *patch.Instruction) []patch.Ident {
	return append(typeIdents(t.Param(0)), descIdents(t.Param(2))...)
}

func (invokeHandler) ReferencedFields(*patch.Instruction) []FieldRef { return nil }
