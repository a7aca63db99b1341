package insn

import (
	"fmt"
	"strings"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

// ResolveClassName reports whether id names the class called name. Names
// missing from cs match literals by spelling only.
func ResolveClassName(cs *universe.ClassSet, sc *scope.Scope, id patch.Ident, name string) bool {
	cw := cs.ClassWrapper(name)
	if cw == nil {
		return id.IsWildcard() || (id.IsLiteral() && id.Name == name)
	}
	return sc.ResolveClass(id, cw)
}

// CheckTypes reports whether the concrete type matches a template type.
// Class names inside the template type may be weak ("L~Foo;") or a
// wildcard ("L*;"); weak names are resolved through sc.
func CheckTypes(cs *universe.ClassSet, sc *scope.Scope, pattern, concrete classfile.Type) bool {
	if pattern.Sort() != concrete.Sort() {
		return false
	}
	switch pattern.Sort() {
	case classfile.SortObject:
		return ResolveClassName(cs, sc, patch.ParseIdent(pattern.InternalName()), concrete.InternalName())
	case classfile.SortArray:
		return CheckTypes(cs, sc, pattern.ElementType(), concrete.ElementType())
	case classfile.SortMethod:
		pa, ca := pattern.Arguments(), concrete.Arguments()
		if len(pa) != len(ca) {
			return false
		}
		for i := range pa {
			if !CheckTypes(cs, sc, pa[i], ca[i]) {
				return false
			}
		}
		return CheckTypes(cs, sc, pattern.Return(), concrete.Return())
	}
	return true
}

// CheckDesc is CheckTypes on descriptor text. The template descriptor "*"
// matches anything.
func CheckDesc(cs *universe.ClassSet, sc *scope.Scope, pattern, concrete string) bool {
	if pattern == patch.Wildcard {
		return true
	}
	pt, err := parseDesc(pattern)
	if err != nil {
		return false
	}
	ct, err := parseDesc(concrete)
	if err != nil {
		return false
	}
	return CheckTypes(cs, sc, pt, ct)
}

func parseDesc(desc string) (classfile.Type, error) {
	if strings.HasPrefix(desc, "(") {
		return classfile.ParseMethodType(desc)
	}
	return classfile.ParseType(desc)
}

// MapClassName returns the concrete name for a class identifier.
func MapClassName(sc *scope.Scope, id patch.Ident) (string, error) {
	switch {
	case id.IsLiteral():
		return id.Name, nil
	case id.IsWildcard():
		return "", fmt.Errorf("%w: wildcard class", ErrNotCreatable)
	}
	cw := sc.Class(id.Name)
	if cw == nil {
		return "", fmt.Errorf("%w: class %s", ErrUnbound, id)
	}
	return cw.Name(), nil
}

// MapType rewrites weak class names inside t to their bound names.
func MapType(sc *scope.Scope, t classfile.Type) (classfile.Type, error) {
	switch t.Sort() {
	case classfile.SortObject:
		name, err := MapClassName(sc, patch.ParseIdent(t.InternalName()))
		if err != nil {
			return classfile.Type{}, err
		}
		return classfile.ObjectType(name), nil
	case classfile.SortArray:
		elem, err := MapType(sc, t.ElementType())
		if err != nil {
			return classfile.Type{}, err
		}
		return classfile.ParseType("[" + elem.Descriptor())
	case classfile.SortMethod:
		desc, err := mapMethod(sc, t)
		if err != nil {
			return classfile.Type{}, err
		}
		return classfile.ParseMethodType(desc)
	}
	return t, nil
}

func mapMethod(sc *scope.Scope, t classfile.Type) (string, error) {
	args := make([]classfile.Type, len(t.Arguments()))
	for i, a := range t.Arguments() {
		m, err := MapType(sc, a)
		if err != nil {
			return "", err
		}
		args[i] = m
	}
	ret, err := MapType(sc, t.Return())
	if err != nil {
		return "", err
	}
	return classfile.MethodDescriptor(ret, args...), nil
}

// MapDesc rewrites a field descriptor.
func MapDesc(sc *scope.Scope, desc string) (string, error) {
	t, err := classfile.ParseType(desc)
	if err != nil {
		return "", err
	}
	m, err := MapType(sc, t)
	if err != nil {
		return "", err
	}
	return m.Descriptor(), nil
}

// MapMethodDesc rewrites a method descriptor.
func MapMethodDesc(sc *scope.Scope, desc string) (string, error) {
	t, err := classfile.ParseMethodType(desc)
	if err != nil {
		return "", err
	}
	return mapMethod(sc, t)
}

// mapInternalName rewrites a type operand: a class name or an array
// descriptor.
func mapInternalName(sc *scope.Scope, name string) (string, error) {
	t, err := MapType(sc, classfile.ObjectType(name))
	if err != nil {
		return "", err
	}
	return t.InternalName(), nil
}

// descIdents returns the class identifiers inside a descriptor.
func descIdents(desc string) []patch.Ident {
	if desc == patch.Wildcard {
		return nil
	}
	var out []patch.Ident
	for _, name := range universe.ReferencedClasses(desc) {
		out = append(out, patch.ParseIdent(name))
	}
	return out
}

// typeIdents returns the class identifiers inside a type operand.
func typeIdents(name string) []patch.Ident {
	if name == patch.Wildcard {
		return nil
	}
	if strings.HasPrefix(name, "[") {
		return descIdents(name)
	}
	return []patch.Ident{patch.ParseIdent(name)}
}
