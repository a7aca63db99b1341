package engine

import (
	"slices"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/insn"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

// maxFrame is the largest operand stack or local table a method may have.
const maxFrame = 0xFFFF

// Apply rewrites the universe as tmpl describes, resolving weak names
// through sc, and returns sc extended with the bindings of everything the
// rewrite created. sc itself is not modified.
//
// The concrete element behind every template element is recovered by
// matching tmpl again under sc; a scope that no longer satisfies the
// template is an *InvariantError, as is any rewrite step that disagrees
// with the match.
func (s *Session) Apply(tmpl *patch.Classes, sc *scope.Scope) (*scope.Scope, error) {
	if err := insn.Validate(tmpl); err != nil {
		return nil, err
	}
	m := &search{s: s, cs: s.Classes, tmpl: tmpl}
	root := state{sc: sc.Fork()}
	var (
		asg     *assignment
		matched *scope.Scope
		ok      bool
	)
	if m.prescan(root.sc) {
		asg, matched, ok = m.visit(root)
	}
	if m.err != nil {
		return nil, m.err
	}
	if !ok {
		return nil, invariantf("", nil, "scope does not satisfy the template")
	}
	return s.apply(tmpl, matched, asg)
}

func (s *Session) apply(tmpl *patch.Classes, matched *scope.Scope, asg *assignment) (*scope.Scope, error) {
	sc := matched.Fork()
	targets := slices.Clone(asg.classes)

	// Added classes come first so that every other element can refer to
	// them. Supertypes naming a later added class are set once all exist.
	var deferred []int
	for ci, c := range tmpl.Classes {
		if c.Mode != patch.Add {
			continue
		}
		if s.Classes.ClassWrapper(c.Ident.Name) != nil {
			return nil, invariantf(c.Ident.Name, nil, "added class already exists")
		}
		node := classfile.NewClassNode(c.Ident.Name)
		node.Access = c.ClassAccess()
		if err := addSupertypes(sc, c, node); err != nil {
			deferred = append(deferred, ci)
		}
		cw := s.Classes.Add(node)
		if c.Ident.IsWeak() {
			if err := sc.PutClass(c.Ident.Name, cw); err != nil {
				return nil, invariantf(node.Name, err, "binding added class")
			}
		}
		targets[ci] = cw
		s.log.Infof("added %s %s", c.Kind, node.Name)
	}
	for _, ci := range deferred {
		c := tmpl.Classes[ci]
		if err := addSupertypes(sc, c, targets[ci].Node()); err != nil {
			return nil, invariantf(c.Ident.Name, err, "resolving supertypes")
		}
	}

	for ci, c := range tmpl.Classes {
		if c.Mode == patch.Remove {
			continue
		}
		cw := targets[ci]
		if cw == nil {
			return nil, invariantf(c.Ident.Raw, nil, "class was not matched")
		}
		if err := s.applyClass(sc, c, cw, asg); err != nil {
			return nil, err
		}
	}

	for ci, c := range tmpl.Classes {
		if c.Mode != patch.Remove {
			continue
		}
		cw := targets[ci]
		if cw == nil || !s.Classes.Remove(cw.Name()) {
			return nil, invariantf(c.Ident.Raw, nil, "removed class is not in the universe")
		}
		s.log.Infof("removed class %s", cw.Name())
	}
	s.Classes.IndexReferences()
	return sc, nil
}

// addSupertypes sets the added supertypes of a new class.
func addSupertypes(sc *scope.Scope, c *patch.Class, node *classfile.ClassNode) error {
	for _, mod := range c.Extends {
		name, err := insn.MapClassName(sc, mod.Ident)
		if err != nil {
			return err
		}
		node.SuperName = name
	}
	for _, mod := range c.Interfaces {
		name, err := insn.MapClassName(sc, mod.Ident)
		if err != nil {
			return err
		}
		if !node.HasInterface(name) {
			node.Interfaces = append(node.Interfaces, name)
		}
	}
	return nil
}

func (s *Session) applyClass(sc *scope.Scope, c *patch.Class, cw *universe.ClassWrapper, asg *assignment) error {
	if c.Mode != patch.Add {
		for _, mod := range c.Extends {
			if err := applySuper(sc, cw, mod); err != nil {
				return err
			}
		}
		for _, mod := range c.Interfaces {
			if err := applyInterface(sc, cw, mod); err != nil {
				return err
			}
		}
	}
	for _, f := range c.Fields {
		var err error
		switch f.Mode {
		case patch.Add:
			err = s.addField(sc, cw, f)
		case patch.Remove:
			fw := asg.fields[f]
			if fw == nil || !cw.RemoveField(fw) {
				err = invariantf(cw.Name(), nil, "cannot remove field %s", f.Ident)
			} else {
				s.log.Infof("removed field %s", fw)
			}
		}
		if err != nil {
			return err
		}
	}
	for _, mt := range c.Methods {
		var err error
		switch mt.Mode {
		case patch.Add:
			err = s.addMethod(sc, cw, mt)
		case patch.Remove:
			mw := asg.methods[mt]
			if mw == nil || !cw.RemoveMethod(mw) {
				err = invariantf(cw.Name(), nil, "cannot remove method %s", mt.Ident)
			} else {
				s.log.Infof("removed method %s", mw)
			}
		default:
			err = s.patchBody(sc, cw, mt, asg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applySuper(sc *scope.Scope, cw *universe.ClassWrapper, mod *patch.Modifier) error {
	node := cw.Node()
	switch mod.Mode {
	case patch.Add:
		name, err := insn.MapClassName(sc, mod.Ident)
		if err != nil {
			return invariantf(node.Name, err, "resolving superclass")
		}
		node.SuperName = name
	case patch.Remove:
		if !mod.Ident.IsWildcard() {
			name, err := insn.MapClassName(sc, mod.Ident)
			if err != nil {
				return invariantf(node.Name, err, "resolving superclass")
			}
			if name != node.SuperName {
				return invariantf(node.Name, nil, "superclass is %s, not %s", node.SuperName, name)
			}
		}
		node.SuperName = classfile.ObjectClass
	}
	return nil
}

func applyInterface(sc *scope.Scope, cw *universe.ClassWrapper, mod *patch.Modifier) error {
	node := cw.Node()
	switch mod.Mode {
	case patch.Add:
		name, err := insn.MapClassName(sc, mod.Ident)
		if err != nil {
			return invariantf(node.Name, err, "resolving interface")
		}
		if !node.HasInterface(name) {
			node.Interfaces = append(node.Interfaces, name)
		}
	case patch.Remove:
		if mod.Ident.IsWildcard() {
			node.Interfaces = nil
			return nil
		}
		name, err := insn.MapClassName(sc, mod.Ident)
		if err != nil {
			return invariantf(node.Name, err, "resolving interface")
		}
		i := slices.Index(node.Interfaces, name)
		if i < 0 {
			return invariantf(node.Name, nil, "does not implement %s", name)
		}
		node.Interfaces = slices.Delete(node.Interfaces, i, i+1)
	}
	return nil
}

func (s *Session) addField(sc *scope.Scope, cw *universe.ClassWrapper, f *patch.Field) error {
	desc, err := insn.MapDesc(sc, f.Desc)
	if err != nil {
		return invariantf(cw.Name(), err, "field %s", f.Ident)
	}
	fw := cw.AddField(&classfile.FieldNode{
		Access: f.Access(),
		Name:   f.Ident.Name,
		Desc:   desc,
		Value:  f.Value,
	})
	if f.Ident.IsWeak() {
		if err := sc.PutField(cw, f.Ident.Name, f.Desc, fw); err != nil {
			return invariantf(cw.Name(), err, "binding field %s", f.Ident)
		}
	}
	s.log.Infof("added field %s", fw)
	return nil
}

func (s *Session) addMethod(sc *scope.Scope, cw *universe.ClassWrapper, mt *patch.Method) error {
	desc, err := insn.MapMethodDesc(sc, mt.Desc)
	if err != nil {
		return invariantf(cw.Name(), err, "method %s", mt.Ident)
	}
	access := mt.Access()
	var parent *universe.MethodWrapper
	if !access.Has(classfile.AccPrivate) && !access.Has(classfile.AccStatic) {
		parent = searchParent(sc, cw, mt, desc)
	}
	name := mt.Ident.Name
	if parent != nil {
		name = parent.Name()
	}
	node := &classfile.MethodNode{Access: access, Name: name, Desc: desc}
	mw := cw.AddMethod(node, parent)
	if mt.Ident.IsWeak() {
		if err := sc.PutMethod(cw, mt.Ident.Name, mt.Desc, mw); err != nil {
			return invariantf(cw.Name(), err, "binding method %s", mt.Ident)
		}
	}
	ctx := &insn.Context{Classes: s.Classes, Scope: sc, Method: node}
	body, err := insn.CreateBody(ctx, mt.Instructions)
	if err != nil {
		return invariantf(cw.Name(), err, "method %s", mt.Ident)
	}
	node.Instructions = body
	fitFrame(node, len(body))
	if parent != nil {
		s.log.Infof("added method %s overriding %s", mw, parent.Declarer())
	} else {
		s.log.Infof("added method %s", mw)
	}
	return nil
}

// searchParent finds the inherited method an added method overrides. A
// weak method name only overrides in supertypes where it is bound.
func searchParent(sc *scope.Scope, cw *universe.ClassWrapper, mt *patch.Method, desc string) *universe.MethodWrapper {
	seen := map[*universe.ClassWrapper]bool{cw: true}
	queue := cw.Supers()
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if seen[w] {
			continue
		}
		seen[w] = true
		queue = append(queue, w.Supers()...)

		name := mt.Ident.Name
		if mt.Ident.IsWeak() {
			bound := sc.Method(w, mt.Ident.Name, mt.Desc)
			if bound == nil {
				continue
			}
			name = bound.Name()
		}
		for _, mw := range w.Methods(true) {
			if mw.Name() != name || mw.Desc() != desc {
				continue
			}
			if mw.Access().Has(classfile.AccPrivate) || mw.Access().Has(classfile.AccStatic) {
				continue
			}
			return mw
		}
	}
	return nil
}

// patchBody rewrites the body of a matched method when its template adds
// or removes instructions.
func (s *Session) patchBody(sc *scope.Scope, cw *universe.ClassWrapper, mt *patch.Method, asg *assignment) error {
	added, edited := 0, false
	for _, t := range mt.Instructions {
		switch t.Mode {
		case patch.Add:
			added++
			edited = true
		case patch.Remove:
			edited = true
		}
	}
	if !edited {
		return nil
	}
	node := cw.MethodNode(asg.methods[mt])
	align, ok := asg.bodies[mt]
	if node == nil || !ok {
		return invariantf(cw.Name(), nil, "body of %s was not matched", mt.Ident)
	}
	ctx := &insn.Context{Classes: s.Classes, Scope: sc, Method: node}
	body, err := insn.Rebuild(ctx, mt.Instructions, node.Instructions, align)
	if err != nil {
		return invariantf(cw.Name(), err, "method %s", mt.Ident)
	}
	s.log.Infof("patched %s.%s%s: %d -> %d instructions", cw.Name(), node.Name, node.Desc, len(node.Instructions), len(body))
	node.Instructions = body
	fitFrame(node, added)
	return nil
}

// fitFrame grows the frame limits of node to cover its arguments, the
// locals its body touches and added instructions.
func fitFrame(node *classfile.MethodNode, added int) {
	locals := 0
	if !node.IsStatic() {
		locals++
	}
	if t, err := classfile.ParseMethodType(node.Desc); err == nil {
		for _, a := range t.Arguments() {
			locals += slots(a.Sort())
		}
	}
	for _, in := range node.Instructions {
		switch in := in.(type) {
		case *classfile.VarInsn:
			width := 1
			switch in.Op {
			case classfile.OpLload, classfile.OpDload, classfile.OpLstore, classfile.OpDstore:
				width = 2
			}
			locals = max(locals, in.Var+width)
		case *classfile.IincInsn:
			locals = max(locals, in.Var+1)
		}
	}
	node.MaxLocals = min(max(node.MaxLocals, locals), maxFrame)
	node.MaxStack = min(node.MaxStack+2*added, maxFrame)
}

func slots(s classfile.Sort) int {
	if s == classfile.SortLong || s == classfile.SortDouble {
		return 2
	}
	return 1
}
