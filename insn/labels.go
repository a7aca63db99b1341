package insn

import (
	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// CheckOrSetLabel reports whether id names the concrete label l inside
// ctx.Method, binding id when it is unbound. Labels have no concrete names,
// so only weak identifiers and the wildcard can match.
func CheckOrSetLabel(ctx *Context, id patch.Ident, l *classfile.LabelNode) bool {
	switch {
	case id.IsWildcard():
		return true
	case !id.IsWeak():
		return false
	case ctx.Scope == nil:
		return true
	}
	if bound := ctx.Scope.Label(ctx.Method, id.Raw); bound != nil {
		return bound == l
	}
	return ctx.Scope.PutLabel(ctx.Method, id.Raw, l) == nil
}

// Label returns the label bound to id inside ctx.Method, creating and
// binding a fresh label when id is unbound.
func Label(ctx *Context, id patch.Ident) (*classfile.LabelNode, error) {
	if !id.IsWeak() {
		return nil, ErrNotCreatable
	}
	if l := ctx.Scope.Label(ctx.Method, id.Raw); l != nil {
		return l, nil
	}
	l := &classfile.LabelNode{Name: id.Name}
	if err := ctx.Scope.PutLabel(ctx.Method, id.Raw, l); err != nil {
		return nil, err
	}
	return l, nil
}
