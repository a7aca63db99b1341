package universe

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/classpatch/classfile"
)

var log = commonlog.GetLogger("classpatch.universe")

// ---------------------------------------------------------------------------
// ClassSet
// ---------------------------------------------------------------------------

// ClassSet is the entity universe: every loaded class plus placeholders for
// referenced names that were not loaded.
//
// A ClassSet is owned by one session at a time. It is read-only while
// matching and mutated only by the rewrite phase.
type ClassSet struct {
	classes []*ClassWrapper // arena, indexed by ID
	fields  []*FieldWrapper
	methods []*MethodWrapper
	byName  map[string]*ClassWrapper

	simplified bool
}

// NewClassSet creates an empty class set.
func NewClassSet() *ClassSet {
	return &ClassSet{
		byName: make(map[string]*ClassWrapper),
	}
}

// FromNodes creates a class set holding the given classes.
func FromNodes(nodes []*classfile.ClassNode) *ClassSet {
	cs := NewClassSet()
	for _, n := range nodes {
		cs.Add(n)
	}
	return cs
}

// Add inserts a visible class and returns its wrapper. A class with the
// same name replaces the previous one. After Simplify the new class is
// linked into the hierarchy immediately.
func (s *ClassSet) Add(node *classfile.ClassNode) *ClassWrapper {
	return s.add(node, false, false)
}

// AddHidden inserts a library class. Hidden classes resolve the hierarchy
// but are never match candidates.
func (s *ClassSet) AddHidden(node *classfile.ClassNode) *ClassWrapper {
	return s.add(node, true, false)
}

func (s *ClassSet) add(node *classfile.ClassNode, hidden, external bool) *ClassWrapper {
	if old, ok := s.byName[node.Name]; ok {
		old.removed = true
	}
	cw := &ClassWrapper{
		id:       len(s.classes),
		set:      s,
		node:     node,
		hidden:   hidden,
		external: external,
	}
	s.classes = append(s.classes, cw)
	s.byName[node.Name] = cw

	for _, f := range node.Fields {
		cw.declFields = append(cw.declFields, s.newField(cw, f))
	}
	for _, m := range node.Methods {
		cw.declMethods = append(cw.declMethods, s.newMethod(cw, m))
	}
	cw.fields = append([]*FieldWrapper(nil), cw.declFields...)
	cw.methods = append([]*MethodWrapper(nil), cw.declMethods...)

	if s.simplified {
		s.link(cw, make(map[*ClassWrapper]int))
	}
	return cw
}

func (s *ClassSet) newField(owner *ClassWrapper, node *classfile.FieldNode) *FieldWrapper {
	fw := &FieldWrapper{
		id:       len(s.fields),
		name:     node.Name,
		desc:     node.Desc,
		access:   node.Access,
		declarer: owner,
	}
	fw.addOwner(owner)
	s.fields = append(s.fields, fw)
	return fw
}

func (s *ClassSet) newMethod(owner *ClassWrapper, node *classfile.MethodNode) *MethodWrapper {
	mw := &MethodWrapper{
		id:       len(s.methods),
		name:     node.Name,
		desc:     node.Desc,
		access:   node.Access,
		declarer: owner,
	}
	mw.addOwner(owner)
	s.methods = append(s.methods, mw)
	return mw
}

// Remove deletes the named class. It reports whether the class was present.
func (s *ClassSet) Remove(name string) bool {
	cw, ok := s.byName[name]
	if !ok || cw.external {
		return false
	}
	cw.removed = true
	delete(s.byName, name)
	for _, f := range cw.fields {
		f.removeOwner(cw)
	}
	for _, m := range cw.methods {
		m.removeOwner(cw)
	}
	log.Debugf("removed class %s", name)
	return true
}

// ClassWrapper returns the wrapper for name, or nil when the name is not
// part of the set. Hidden and external classes are returned too.
func (s *ClassSet) ClassWrapper(name string) *ClassWrapper {
	return s.byName[name]
}

// ByID returns the class with the given arena handle, or nil.
func (s *ClassSet) ByID(id int) *ClassWrapper {
	if id < 0 || id >= len(s.classes) || s.classes[id].removed {
		return nil
	}
	return s.classes[id]
}

// Classes returns every visible class in handle order. Hidden, external
// and removed classes are excluded.
func (s *ClassSet) Classes() []*ClassWrapper {
	out := make([]*ClassWrapper, 0, len(s.classes))
	for _, cw := range s.classes {
		if cw.hidden || cw.external || cw.removed {
			continue
		}
		out = append(out, cw)
	}
	return out
}

// Nodes returns the class nodes of Classes, ready for encoding.
func (s *ClassSet) Nodes() []*classfile.ClassNode {
	classes := s.Classes()
	out := make([]*classfile.ClassNode, len(classes))
	for i, cw := range classes {
		out[i] = cw.node
	}
	return out
}

// Len returns the number of visible classes.
func (s *ClassSet) Len() int {
	return len(s.Classes())
}

// ---------------------------------------------------------------------------
// Simplify
// ---------------------------------------------------------------------------

// Simplify normalizes the set once before matching:
//
//   - every class name referenced by a supertype, descriptor or instruction
//     that is not loaded gets an external placeholder;
//   - each class's apparent member set is its declarations plus the visible
//     members of its supertypes;
//   - overriding declarations are merged into a single MethodWrapper whose
//     owners are every class that declares or inherits it.
//
// Private members and constructors are not inherited. Static and private
// methods are never merged. Calling Simplify again has no effect.
func (s *ClassSet) Simplify() {
	if s.simplified {
		return
	}
	externals := s.addExternals()

	state := make(map[*ClassWrapper]int)
	for _, cw := range s.classes {
		if !cw.removed {
			s.link(cw, state)
		}
	}
	s.simplified = true

	merged := 0
	for _, m := range s.methods {
		if m.merged != nil {
			merged++
		}
	}
	log.Debugf("simplified %d classes: %d external placeholders, %d merged overrides",
		len(s.classes)-externals, externals, merged)
}

// IndexReferences adds external placeholders for class names referenced
// since Simplify, by rewritten or added classes, and returns how many were
// added.
func (s *ClassSet) IndexReferences() int {
	n := s.addExternals()
	if n > 0 {
		log.Debugf("indexed %d new external classes", n)
	}
	return n
}

// IsSimplified reports whether Simplify has run.
func (s *ClassSet) IsSimplified() bool {
	return s.simplified
}

// link computes the apparent members of cw after linking its supertypes.
// state tracks 1 = in progress, 2 = done; hierarchy cycles are cut.
func (s *ClassSet) link(cw *ClassWrapper, state map[*ClassWrapper]int) {
	if cw.linked || state[cw] != 0 {
		return
	}
	state[cw] = 1
	supers := cw.Supers()
	for _, sup := range supers {
		s.link(sup, state)
	}

	for _, sup := range supers {
		for _, f := range sup.fields {
			if f.access.Has(classfile.AccPrivate) || cw.Field(f.name, f.desc) != nil {
				continue
			}
			cw.fields = append(cw.fields, f)
			f.addOwner(cw)
		}
		for _, m := range sup.methods {
			if !inheritable(m.access, m.name) {
				continue
			}
			existing := cw.Method(m.name, m.desc)
			if existing == nil {
				cw.methods = append(cw.methods, m)
				m.addOwner(cw)
				continue
			}
			if existing != m && existing.mergeable() && m.mergeable() {
				s.mergeMethods(existing, m)
			}
		}
	}
	state[cw] = 2
	cw.linked = true
}

// mergeMethods folds one of a and b into the other. The wrapper with the
// lower handle survives.
func (s *ClassSet) mergeMethods(a, b *MethodWrapper) {
	keep, drop := a, b
	if b.id < a.id {
		keep, drop = b, a
	}
	if keep.declarer.IsSubclassOf(drop.declarer.Name()) {
		keep.declarer = drop.declarer
	}
	for _, o := range append([]*ClassWrapper(nil), drop.owners.list...) {
		o.declMethods = replaceMethod(o.declMethods, drop, keep)
		o.methods = replaceMethod(o.methods, drop, keep)
		keep.addOwner(o)
	}
	drop.owners = owners{}
	drop.merged = keep
}

func replaceMethod(list []*MethodWrapper, old, nw *MethodWrapper) []*MethodWrapper {
	idx := -1
	has := false
	for i, m := range list {
		if m == old {
			idx = i
		}
		if m == nw {
			has = true
		}
	}
	if idx < 0 {
		return list
	}
	if has {
		return append(list[:idx], list[idx+1:]...)
	}
	list[idx] = nw
	return list
}

// addExternals creates placeholders for referenced but unloaded names and
// returns how many were added.
func (s *ClassSet) addExternals() int {
	var names []string
	seen := make(map[string]bool)
	ref := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		if _, ok := s.byName[name]; !ok {
			names = append(names, name)
		}
	}
	refDesc := func(desc string) {
		for _, name := range ReferencedClasses(desc) {
			ref(name)
		}
	}
	refType := func(internalName string) {
		if root := classfile.ObjectType(internalName).RootType(); root.Sort() == classfile.SortObject {
			ref(root.InternalName())
		}
	}

	for _, cw := range s.classes {
		if cw.removed {
			continue
		}
		n := cw.node
		ref(n.SuperName)
		for _, in := range n.Interfaces {
			ref(in)
		}
		for _, f := range n.Fields {
			refDesc(f.Desc)
		}
		for _, m := range n.Methods {
			refDesc(m.Desc)
			for _, insn := range m.Instructions {
				switch in := insn.(type) {
				case *classfile.TypeInsn:
					refType(in.Desc)
				case *classfile.FieldInsn:
					ref(in.Owner)
					refDesc(in.Desc)
				case *classfile.MethodInsn:
					refType(in.Owner)
					refDesc(in.Desc)
				case *classfile.LdcInsn:
					if t, ok := in.Value.(classfile.Type); ok {
						refDesc(t.Descriptor())
					}
				}
			}
		}
	}

	for _, name := range names {
		s.add(&classfile.ClassNode{
			Version: classfile.DefaultVersion,
			Access:  classfile.AccPublic,
			Name:    name,
		}, false, true)
	}
	return len(names)
}

// ReferencedClasses returns the class names mentioned by a field or method
// descriptor, array dimensions stripped. Malformed descriptors yield nil.
func ReferencedClasses(desc string) []string {
	var types []classfile.Type
	if len(desc) > 0 && desc[0] == '(' {
		mt, err := classfile.ParseMethodType(desc)
		if err != nil {
			return nil
		}
		types = append(types, mt.Arguments()...)
		types = append(types, mt.Return())
	} else {
		t, err := classfile.ParseType(desc)
		if err != nil {
			return nil
		}
		types = append(types, t)
	}
	var out []string
	for _, t := range types {
		if root := t.RootType(); root.Sort() == classfile.SortObject {
			out = append(out, root.InternalName())
		}
	}
	return out
}
