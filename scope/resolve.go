package scope

import (
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/universe"
)

// The Resolve methods decide whether a template identifier names a
// concrete entity:
//
//   - a wildcard names anything;
//   - a literal names the entity with that exact name;
//   - a weak identifier names whatever it is bound to. When it is unbound
//     the entity is accepted and the binding recorded.
//
// They may be called on a nil *Scope, in which case weak identifiers
// accept anything and nothing is recorded. The matcher uses this to
// pre-filter candidates before it has a scope.

// ResolveClass reports whether id names cw, binding id when it is weak and
// unbound. Reserved keys never bind to an existing class.
func (s *Scope) ResolveClass(id patch.Ident, cw *universe.ClassWrapper) bool {
	if id.IsWildcard() {
		return true
	}
	if cw == nil {
		return false
	}
	if id.IsLiteral() {
		return cw.Name() == id.Name
	}
	if s == nil {
		return true
	}
	if bound := s.Class(id.Name); bound != nil {
		return bound == cw
	}
	if s.IsReserved(id.Name) {
		return false
	}
	s.setClass(id.Name, cw)
	return true
}

// ResolveField reports whether id, declared with desc in the template,
// names fw as seen from owner.
func (s *Scope) ResolveField(owner *universe.ClassWrapper, id patch.Ident, desc string, fw *universe.FieldWrapper) bool {
	if id.IsWildcard() {
		return true
	}
	if fw == nil {
		return false
	}
	if id.IsLiteral() {
		return fw.Name() == id.Name
	}
	if s == nil {
		return true
	}
	if bound := s.Field(owner, id.Name, desc); bound != nil {
		return bound == fw
	}
	s.addField(memberKey{id.Name, desc}, fw)
	return true
}

// ResolveMethod reports whether id, declared with desc in the template,
// names mw as seen from owner.
func (s *Scope) ResolveMethod(owner *universe.ClassWrapper, id patch.Ident, desc string, mw *universe.MethodWrapper) bool {
	if id.IsWildcard() {
		return true
	}
	if mw == nil {
		return false
	}
	if id.IsLiteral() {
		return mw.Name() == id.Name
	}
	if s == nil {
		return true
	}
	if bound := s.Method(owner, id.Name, desc); bound != nil {
		return bound == mw
	}
	s.addMethod(memberKey{id.Name, desc}, mw)
	return true
}
