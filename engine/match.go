package engine

import (
	"math"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/insn"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

type stage uint8

const (
	stageClass stage = iota
	stageSuper
	stageInterfaces
	stageFields
	stageMethods
	stageBodies
)

// pick records the concrete entity chosen for a template element. Picks
// form a persistent list: a branch extends the list of its parent and
// siblings never see each other's picks.
type pick struct {
	prev  *pick
	class int
	tmpl  any // *patch.Class, *patch.Field or *patch.Method
	cw    *universe.ClassWrapper
	fw    *universe.FieldWrapper
	mw    *universe.MethodWrapper
}

// state is one node of the search tree. It is passed by value; the scope
// is forked before any check that may bind.
type state struct {
	sc    *scope.Scope
	class int
	stage stage
	index int
	picks *pick
}

func (st state) fork() state {
	st.sc = st.sc.Fork()
	return st
}

func (st state) advance(next stage) state {
	st.stage = next
	st.index = 0
	return st
}

func (st state) nextClass() state {
	st.class++
	return st.advance(stageClass)
}

func (st state) classPick(ci int) *universe.ClassWrapper {
	for p := st.picks; p != nil; p = p.prev {
		if _, ok := p.tmpl.(*patch.Class); ok && p.class == ci {
			return p.cw
		}
	}
	return nil
}

func (st state) methodPick(m *patch.Method) *universe.MethodWrapper {
	for p := st.picks; p != nil; p = p.prev {
		if p.tmpl == m {
			return p.mw
		}
	}
	return nil
}

// aliased reports whether cw was already picked for another template class.
// Two templates sharing one weak name may pick the same class.
func (st state) aliased(c *patch.Class, cw *universe.ClassWrapper) bool {
	for p := st.picks; p != nil; p = p.prev {
		other, ok := p.tmpl.(*patch.Class)
		if !ok || p.cw != cw || other == c {
			continue
		}
		if other.Ident.IsWeak() && c.Ident.IsWeak() && other.Ident.Name == c.Ident.Name {
			continue
		}
		return true
	}
	return false
}

// memberUsed reports whether fw or mw was already picked for another
// member template of the same class template.
func (st state) memberUsed(fw *universe.FieldWrapper, mw *universe.MethodWrapper) bool {
	for p := st.picks; p != nil; p = p.prev {
		if p.class != st.class {
			continue
		}
		if (fw != nil && p.fw == fw) || (mw != nil && p.mw == mw) {
			return true
		}
	}
	return false
}

// assignment is the concrete entity behind every non-added template
// element of a successful match, plus the body alignments.
type assignment struct {
	classes []*universe.ClassWrapper
	fields  map[*patch.Field]*universe.FieldWrapper
	methods map[*patch.Method]*universe.MethodWrapper
	bodies  map[*patch.Method]insn.Alignment
}

func newAssignment(st state, n int) *assignment {
	asg := &assignment{
		classes: make([]*universe.ClassWrapper, n),
		fields:  make(map[*patch.Field]*universe.FieldWrapper),
		methods: make(map[*patch.Method]*universe.MethodWrapper),
		bodies:  make(map[*patch.Method]insn.Alignment),
	}
	for p := st.picks; p != nil; p = p.prev {
		switch t := p.tmpl.(type) {
		case *patch.Class:
			asg.classes[p.class] = p.cw
		case *patch.Field:
			asg.fields[t] = p.fw
		case *patch.Method:
			asg.methods[t] = p.mw
		}
	}
	return asg
}

// search is one Match invocation.
type search struct {
	s     *Session
	cs    *universe.ClassSet
	tmpl  *patch.Classes
	cands [][]*universe.ClassWrapper
	steps int
	err   error
}

// Match searches for a scope under which tmpl is satisfied by the
// universe. A template that does not apply yields NotMatched and a nil
// error; errors are reserved for malformed templates and an exhausted
// search budget.
func (s *Session) Match(tmpl *patch.Classes) (Result, error) {
	if err := insn.Validate(tmpl); err != nil {
		return NotMatched, err
	}
	m := &search{s: s, cs: s.Classes, tmpl: tmpl}
	root := state{sc: s.rootScope()}
	if !m.prescan(root.sc) {
		s.log.Debugf("session %s: no candidates", s.ID)
		return NotMatched, nil
	}
	asg, sc, ok := m.visit(root)
	if m.err != nil {
		s.log.Warningf("session %s: %s after %d steps", s.ID, m.err, m.steps)
		return NotMatched, m.err
	}
	if !ok {
		s.log.Debugf("session %s: no match after %d steps", s.ID, m.steps)
		return NotMatched, nil
	}
	s.log.Debugf("session %s: matched after %d steps", s.ID, m.steps)
	return Result{scope: sc, asg: asg}, nil
}

func (m *search) tick() bool {
	if m.err != nil {
		return false
	}
	m.steps++
	if max := m.s.maxSteps; max > 0 && m.steps > max {
		m.err = ErrBudgetExceeded
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Pre-scan
// ---------------------------------------------------------------------------

// prescan reserves the names of added classes and computes the candidate
// classes of every other template class from what the template states
// about it, including the fields its instructions access.
func (m *search) prescan(sc *scope.Scope) bool {
	if name, ok := m.missingClass(); ok {
		m.s.log.Debugf("instructions name %s, which is not in the universe", name)
		return false
	}
	refs := m.referencedFields()
	m.cands = make([][]*universe.ClassWrapper, len(m.tmpl.Classes))
	for ci, c := range m.tmpl.Classes {
		if c.Mode == patch.Add {
			if m.cs.ClassWrapper(c.Ident.Name) != nil {
				m.s.log.Debugf("added class %s already exists", c.Ident.Name)
				return false
			}
			if c.Ident.IsWeak() {
				if sc.Class(c.Ident.Name) != nil {
					return false
				}
				sc.Reserve(c.Ident.Name)
			}
			continue
		}
		var fieldRefs []insn.FieldRef
		if !c.Ident.IsWildcard() {
			fieldRefs = refs[c.Ident.Raw]
		}
		var cands []*universe.ClassWrapper
		for _, cw := range m.cs.Classes() {
			if m.candidate(c, cw, fieldRefs) {
				cands = append(cands, cw)
			}
		}
		m.s.log.Debugf("class %s: %d candidates", c.Ident, len(cands))
		if len(cands) == 0 {
			return false
		}
		m.cands[ci] = cands
	}
	return true
}

// missingClass finds a literal class named by a matched or removed
// instruction that the universe does not know. Simplify indexes every class
// concrete code refers to, so no concrete instruction can match it.
func (m *search) missingClass() (string, bool) {
	for _, c := range m.tmpl.Classes {
		if c.Mode == patch.Add {
			continue
		}
		for _, mt := range c.Methods {
			if mt.Mode == patch.Add {
				continue
			}
			for _, t := range mt.Instructions {
				if t.Mode == patch.Add {
					continue
				}
				for _, id := range insn.HandlerFor(t.Op).ReferencedClasses(t) {
					if id.IsLiteral() && m.cs.ClassWrapper(id.Name) == nil {
						return id.Name, true
					}
				}
			}
		}
	}
	return "", false
}

// referencedFields collects the fields accessed by matched or removed
// instructions, keyed by the raw owner identifier.
func (m *search) referencedFields() map[string][]insn.FieldRef {
	refs := make(map[string][]insn.FieldRef)
	for _, c := range m.tmpl.Classes {
		for _, mt := range c.Methods {
			for _, t := range mt.Instructions {
				if t.Mode == patch.Add {
					continue
				}
				for _, ref := range insn.HandlerFor(t.Op).ReferencedFields(t) {
					if ref.Owner.IsWildcard() {
						continue
					}
					refs[ref.Owner.Raw] = append(refs[ref.Owner.Raw], ref)
				}
			}
		}
	}
	return refs
}

// candidate checks cw against c without a scope: weak names accept
// anything here and nothing is bound.
func (m *search) candidate(c *patch.Class, cw *universe.ClassWrapper, refs []insn.FieldRef) bool {
	switch c.Kind {
	case patch.KindInterface:
		if !cw.IsInterface() {
			return false
		}
	case patch.KindEnum:
		if !cw.IsEnum() {
			return false
		}
	}
	var none *scope.Scope
	if !none.ResolveClass(c.Ident, cw) {
		return false
	}
	for _, f := range c.Fields {
		if f.Mode == patch.Add {
			continue
		}
		if !anyField(cw.Fields(f.Mode == patch.Remove), func(fw *universe.FieldWrapper) bool {
			return m.checkField(nil, cw, f, fw)
		}) {
			return false
		}
	}
	for _, mt := range c.Methods {
		if mt.Mode == patch.Add {
			continue
		}
		found := false
		for _, mw := range cw.Methods(mt.Mode == patch.Remove) {
			if m.checkMethod(nil, cw, mt, mw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, ref := range refs {
		if !anyField(cw.Fields(false), func(fw *universe.FieldWrapper) bool {
			return none.ResolveField(cw, ref.Name, ref.Desc, fw) && insn.CheckDesc(m.cs, nil, ref.Desc, fw.Desc())
		}) {
			return false
		}
	}
	return true
}

func anyField(fields []*universe.FieldWrapper, fn func(*universe.FieldWrapper) bool) bool {
	for _, fw := range fields {
		if fn(fw) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Element checks
// ---------------------------------------------------------------------------

func (m *search) checkSuper(sc *scope.Scope, id patch.Ident, cw *universe.ClassWrapper) bool {
	super := cw.Node().SuperName
	if super == "" {
		return id.IsWildcard()
	}
	return insn.ResolveClassName(m.cs, sc, id, super)
}

func flagsMatch(access classfile.Access, static, private bool) bool {
	return access.Has(classfile.AccStatic) == static && access.Has(classfile.AccPrivate) == private
}

func (m *search) checkField(sc *scope.Scope, cw *universe.ClassWrapper, f *patch.Field, fw *universe.FieldWrapper) bool {
	if fw == nil || !flagsMatch(fw.Access(), f.Static, f.Private) {
		return false
	}
	if !sc.ResolveField(cw, f.Ident, f.Desc, fw) || !insn.CheckDesc(m.cs, sc, f.Desc, fw.Desc()) {
		return false
	}
	var value any
	if node := cw.FieldNode(fw); node != nil {
		value = node.Value
	}
	return sameValue(f.Value, value)
}

// sameValue compares constant values, floats by bit pattern so NaN matches
// itself.
func sameValue(a, b any) bool {
	switch a := a.(type) {
	case float32:
		b, ok := b.(float32)
		return ok && math.Float32bits(a) == math.Float32bits(b)
	case float64:
		b, ok := b.(float64)
		return ok && math.Float64bits(a) == math.Float64bits(b)
	}
	return a == b
}

func (m *search) checkMethod(sc *scope.Scope, cw *universe.ClassWrapper, mt *patch.Method, mw *universe.MethodWrapper) bool {
	if mw == nil || !flagsMatch(mw.Access(), mt.Static, mt.Private) {
		return false
	}
	return sc.ResolveMethod(cw, mt.Ident, mt.Desc, mw) && insn.CheckDesc(m.cs, sc, mt.Desc, mw.Desc())
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func fail() (*assignment, *scope.Scope, bool) {
	return nil, nil, false
}

func (m *search) visit(st state) (*assignment, *scope.Scope, bool) {
	if m.err != nil {
		return fail()
	}
	if st.class == len(m.tmpl.Classes) {
		return m.leaf(st)
	}
	c := m.tmpl.Classes[st.class]
	if c.Mode == patch.Add {
		return m.visit(st.nextClass())
	}
	switch st.stage {
	case stageClass:
		return m.visitClass(st, c)
	case stageSuper:
		return m.visitSuper(st, c)
	case stageInterfaces:
		return m.visitInterfaces(st, c)
	case stageFields:
		return m.visitFields(st, c)
	case stageMethods:
		return m.visitMethods(st, c)
	}
	return m.visitBodies(st, c)
}

func (m *search) visitClass(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	for _, cw := range m.cands[st.class] {
		if !m.tick() {
			return fail()
		}
		if st.aliased(c, cw) {
			continue
		}
		child := st.fork()
		if !child.sc.ResolveClass(c.Ident, cw) {
			continue
		}
		child.picks = &pick{prev: st.picks, class: st.class, tmpl: c, cw: cw}
		if asg, sc, ok := m.visit(child.advance(stageSuper)); ok {
			return asg, sc, true
		}
		if m.err != nil {
			return fail()
		}
		m.s.log.Debugf("class %s: backtracking from %s", c.Ident, cw)
	}
	return fail()
}

func (m *search) visitSuper(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	cw := st.classPick(st.class)
	child := st.fork()
	for _, mod := range c.Extends {
		if mod.Mode == patch.Add {
			continue
		}
		if !m.checkSuper(child.sc, mod.Ident, cw) {
			return fail()
		}
	}
	return m.visit(child.advance(stageInterfaces))
}

func (m *search) visitInterfaces(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	for st.index < len(c.Interfaces) && c.Interfaces[st.index].Mode == patch.Add {
		st.index++
	}
	if st.index == len(c.Interfaces) {
		return m.visit(st.advance(stageFields))
	}
	mod := c.Interfaces[st.index]
	ifaces := st.classPick(st.class).Node().Interfaces
	if mod.Ident.IsWildcard() {
		if len(ifaces) == 0 {
			return fail()
		}
		st.index++
		return m.visit(st)
	}
	for _, name := range ifaces {
		if !m.tick() {
			return fail()
		}
		child := st.fork()
		if !insn.ResolveClassName(m.cs, child.sc, mod.Ident, name) {
			continue
		}
		child.index++
		if asg, sc, ok := m.visit(child); ok {
			return asg, sc, true
		}
	}
	return fail()
}

func (m *search) visitFields(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	for st.index < len(c.Fields) && c.Fields[st.index].Mode == patch.Add {
		st.index++
	}
	if st.index == len(c.Fields) {
		return m.visit(st.advance(stageMethods))
	}
	f := c.Fields[st.index]
	cw := st.classPick(st.class)
	for _, fw := range cw.Fields(f.Mode == patch.Remove) {
		if !m.tick() {
			return fail()
		}
		if st.memberUsed(fw, nil) {
			continue
		}
		child := st.fork()
		if !m.checkField(child.sc, cw, f, fw) {
			continue
		}
		child.picks = &pick{prev: st.picks, class: st.class, tmpl: f, cw: cw, fw: fw}
		child.index++
		if asg, sc, ok := m.visit(child); ok {
			return asg, sc, true
		}
		if m.err != nil {
			return fail()
		}
	}
	return fail()
}

func (m *search) visitMethods(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	for st.index < len(c.Methods) && c.Methods[st.index].Mode == patch.Add {
		st.index++
	}
	if st.index == len(c.Methods) {
		return m.visit(st.advance(stageBodies))
	}
	mt := c.Methods[st.index]
	cw := st.classPick(st.class)
	for _, mw := range cw.Methods(mt.Mode == patch.Remove) {
		if !m.tick() {
			return fail()
		}
		if st.memberUsed(nil, mw) {
			continue
		}
		child := st.fork()
		if !m.checkMethod(child.sc, cw, mt, mw) {
			continue
		}
		child.picks = &pick{prev: st.picks, class: st.class, tmpl: mt, cw: cw, mw: mw}
		child.index++
		if asg, sc, ok := m.visit(child); ok {
			return asg, sc, true
		}
		if m.err != nil {
			return fail()
		}
	}
	return fail()
}

// hasBody reports whether the body of a matched method must be checked.
func hasBody(mt *patch.Method) bool {
	return mt.Mode != patch.Add && len(mt.Instructions) > 0
}

func (m *search) visitBodies(st state, c *patch.Class) (*assignment, *scope.Scope, bool) {
	for st.index < len(c.Methods) && !hasBody(c.Methods[st.index]) {
		st.index++
	}
	if st.index == len(c.Methods) {
		return m.visit(st.nextClass())
	}
	mt := c.Methods[st.index]
	cw := st.classPick(st.class)
	node := cw.MethodNode(st.methodPick(mt))
	if node == nil {
		return fail()
	}
	// Every alignment is a decision point: a later element may reject the
	// bindings one alignment makes and accept those of another.
	var (
		asg   *assignment
		out   *scope.Scope
		found bool
	)
	ctx := &insn.Context{Classes: m.cs, Scope: st.sc, Method: node, Tick: m.tick}
	insn.EachBody(ctx, mt.Instructions, node.Instructions, func(_ insn.Alignment, sc *scope.Scope) bool {
		child := st
		child.sc = sc
		child.index++
		asg, out, found = m.visit(child)
		return found || m.err != nil
	})
	if !found {
		return fail()
	}
	return asg, out, true
}

// ---------------------------------------------------------------------------
// Leaf
// ---------------------------------------------------------------------------

// leaf re-validates every template element under the final scope. Bindings
// made late in the search, by method bodies in particular, constrain
// elements that were checked before they existed.
func (m *search) leaf(st state) (*assignment, *scope.Scope, bool) {
	asg := newAssignment(st, len(m.tmpl.Classes))
	sc := st.sc.Fork()
	for ci, c := range m.tmpl.Classes {
		if c.Mode == patch.Add {
			continue
		}
		if !m.verify(sc, c, asg.classes[ci], asg) {
			m.s.log.Debugf("class %s: rejected by leaf re-validation", c.Ident)
			return fail()
		}
	}
	return asg, st.sc, true
}

func (m *search) verify(sc *scope.Scope, c *patch.Class, cw *universe.ClassWrapper, asg *assignment) bool {
	if cw == nil || !sc.ResolveClass(c.Ident, cw) {
		return false
	}
	for _, mod := range c.Extends {
		if mod.Mode != patch.Add && !m.checkSuper(sc, mod.Ident, cw) {
			return false
		}
	}
	for _, mod := range c.Interfaces {
		if mod.Mode != patch.Add && !m.hasInterface(sc, mod.Ident, cw) {
			return false
		}
	}
	for _, f := range c.Fields {
		if f.Mode == patch.Add {
			if m.fieldConflict(sc, cw, f) {
				return false
			}
			continue
		}
		if !m.checkField(sc, cw, f, asg.fields[f]) {
			return false
		}
	}
	for _, mt := range c.Methods {
		if mt.Mode == patch.Add {
			if m.methodConflict(sc, cw, mt) {
				return false
			}
			continue
		}
		mw := asg.methods[mt]
		if !m.checkMethod(sc, cw, mt, mw) {
			return false
		}
		if !hasBody(mt) {
			continue
		}
		node := cw.MethodNode(mw)
		if node == nil {
			return false
		}
		ctx := &insn.Context{Classes: m.cs, Scope: sc, Method: node}
		align, _, ok := insn.MatchBody(ctx, mt.Instructions, node.Instructions)
		if !ok {
			return false
		}
		asg.bodies[mt] = align
	}
	return true
}

func (m *search) hasInterface(sc *scope.Scope, id patch.Ident, cw *universe.ClassWrapper) bool {
	ifaces := cw.Node().Interfaces
	if id.IsWildcard() {
		return len(ifaces) > 0
	}
	for _, name := range ifaces {
		if insn.ResolveClassName(m.cs, sc, id, name) {
			return true
		}
	}
	return false
}

// fieldConflict reports whether adding f to cw would collide with an
// existing declaration or binding.
func (m *search) fieldConflict(sc *scope.Scope, cw *universe.ClassWrapper, f *patch.Field) bool {
	if f.Ident.IsWeak() && sc.Field(cw, f.Ident.Name, f.Desc) != nil {
		return true
	}
	desc, err := insn.MapDesc(sc, f.Desc)
	return err == nil && cw.DeclaresField(f.Ident.Name, desc)
}

func (m *search) methodConflict(sc *scope.Scope, cw *universe.ClassWrapper, mt *patch.Method) bool {
	name := mt.Ident.Name
	if mt.Ident.IsWeak() {
		if mw := sc.Method(cw, mt.Ident.Name, mt.Desc); mw != nil {
			name = mw.Name()
		}
	}
	desc, err := insn.MapMethodDesc(sc, mt.Desc)
	return err == nil && cw.DeclaresMethod(name, desc)
}
