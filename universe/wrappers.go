package universe

import (
	"github.com/chazu/classpatch/classfile"
)

// ---------------------------------------------------------------------------
// ClassWrapper
// ---------------------------------------------------------------------------

// ClassWrapper is a class in a ClassSet.
type ClassWrapper struct {
	id   int
	set  *ClassSet
	node *classfile.ClassNode

	hidden   bool // library class: resolves the hierarchy, never a candidate
	external bool // placeholder for a name referenced but not loaded
	removed  bool
	linked   bool

	declFields  []*FieldWrapper
	declMethods []*MethodWrapper

	// Apparent members: declared plus visible inherited, set by Simplify.
	fields  []*FieldWrapper
	methods []*MethodWrapper
}

// ID returns the stable arena handle of the class.
func (c *ClassWrapper) ID() int { return c.id }

// Name returns the internal name of the class.
func (c *ClassWrapper) Name() string { return c.node.Name }

// Node returns the underlying class node.
func (c *ClassWrapper) Node() *classfile.ClassNode { return c.node }

// IsHidden reports whether the class is a library class.
func (c *ClassWrapper) IsHidden() bool { return c.hidden }

// IsExternal reports whether the class is a placeholder for a name that is
// referenced but was never loaded.
func (c *ClassWrapper) IsExternal() bool { return c.external }

// IsInterface reports whether the class is an interface.
func (c *ClassWrapper) IsInterface() bool { return c.node.Access.Has(classfile.AccInterface) }

// IsEnum reports whether the class is an enum.
func (c *ClassWrapper) IsEnum() bool { return c.node.Access.Has(classfile.AccEnum) }

// Field returns the apparent field with the given name and descriptor.
func (c *ClassWrapper) Field(name, desc string) *FieldWrapper {
	for _, f := range c.fields {
		if f.name == name && f.desc == desc {
			return f
		}
	}
	return nil
}

// Method returns the apparent method with the given name and descriptor.
func (c *ClassWrapper) Method(name, desc string) *MethodWrapper {
	for _, m := range c.methods {
		if m.name == name && m.desc == desc {
			return m
		}
	}
	return nil
}

// Fields returns the declared fields, or every apparent field when
// declaredOnly is false.
func (c *ClassWrapper) Fields(declaredOnly bool) []*FieldWrapper {
	if declaredOnly {
		return c.declFields
	}
	return c.fields
}

// Methods returns the declared methods, or every apparent method when
// declaredOnly is false.
func (c *ClassWrapper) Methods(declaredOnly bool) []*MethodWrapper {
	if declaredOnly {
		return c.declMethods
	}
	return c.methods
}

// Super returns the superclass wrapper, or nil.
func (c *ClassWrapper) Super() *ClassWrapper {
	if c.node.SuperName == "" {
		return nil
	}
	return c.set.ClassWrapper(c.node.SuperName)
}

// Supers returns the superclass followed by the direct interfaces. Names
// missing from the set are skipped.
func (c *ClassWrapper) Supers() []*ClassWrapper {
	var out []*ClassWrapper
	if s := c.Super(); s != nil {
		out = append(out, s)
	}
	for _, in := range c.node.Interfaces {
		if w := c.set.ClassWrapper(in); w != nil {
			out = append(out, w)
		}
	}
	return out
}

// IsSubclassOf reports whether name is c itself or one of its transitive
// supertypes.
func (c *ClassWrapper) IsSubclassOf(name string) bool {
	found := false
	c.walkHierarchy(func(w *ClassWrapper) bool {
		if w.Name() == name {
			found = true
			return false
		}
		return true
	})
	return found
}

// walkHierarchy visits c and then its supertypes breadth first, superclass
// before interfaces. Each class is visited once. Returning false stops the
// walk.
func (c *ClassWrapper) walkHierarchy(fn func(*ClassWrapper) bool) {
	seen := map[*ClassWrapper]bool{c: true}
	queue := []*ClassWrapper{c}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if !fn(w) {
			return
		}
		for _, s := range w.Supers() {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
}

// FieldNode returns the declaration backing fw, searching c and then its
// supertypes.
func (c *ClassWrapper) FieldNode(fw *FieldWrapper) *classfile.FieldNode {
	if fw == nil {
		return nil
	}
	var found *classfile.FieldNode
	c.walkHierarchy(func(w *ClassWrapper) bool {
		if f := w.node.Field(fw.name, fw.desc); f != nil {
			found = f
			return false
		}
		return true
	})
	return found
}

// MethodNode returns the nearest declaration backing mw, searching c and
// then its supertypes.
func (c *ClassWrapper) MethodNode(mw *MethodWrapper) *classfile.MethodNode {
	if mw == nil {
		return nil
	}
	var found *classfile.MethodNode
	c.walkHierarchy(func(w *ClassWrapper) bool {
		if m := w.node.Method(mw.name, mw.desc); m != nil {
			found = m
			return false
		}
		return true
	})
	return found
}

// DeclaresField reports whether the class itself declares name/desc.
func (c *ClassWrapper) DeclaresField(name, desc string) bool {
	return c.node.Field(name, desc) != nil
}

// DeclaresMethod reports whether the class itself declares name/desc.
func (c *ClassWrapper) DeclaresMethod(name, desc string) bool {
	return c.node.Method(name, desc) != nil
}

// AddField appends a new field declaration to the class and returns its
// wrapper.
func (c *ClassWrapper) AddField(node *classfile.FieldNode) *FieldWrapper {
	c.node.Fields = append(c.node.Fields, node)
	fw := c.set.newField(c, node)
	c.declFields = append(c.declFields, fw)
	c.fields = append(c.fields, fw)
	return fw
}

// AddMethod appends a new method declaration to the class. When mw is
// non-nil the declaration overrides mw and c joins its owner set; otherwise
// a fresh wrapper is created.
func (c *ClassWrapper) AddMethod(node *classfile.MethodNode, mw *MethodWrapper) *MethodWrapper {
	c.node.Methods = append(c.node.Methods, node)
	if mw == nil {
		mw = c.set.newMethod(c, node)
	} else {
		mw.addOwner(c)
	}
	c.declMethods = appendUniqueMethod(c.declMethods, mw)
	c.methods = appendUniqueMethod(c.methods, mw)
	return mw
}

// RemoveField detaches fw from the class. It reports whether the class
// declared it.
func (c *ClassWrapper) RemoveField(fw *FieldWrapper) bool {
	f := c.node.Field(fw.name, fw.desc)
	if f == nil || !c.node.RemoveField(f) {
		return false
	}
	c.declFields = removeField(c.declFields, fw)
	c.fields = removeField(c.fields, fw)
	fw.removeOwner(c)
	return true
}

// RemoveMethod detaches mw from the class. It reports whether the class
// declared it.
func (c *ClassWrapper) RemoveMethod(mw *MethodWrapper) bool {
	m := c.node.Method(mw.name, mw.desc)
	if m == nil || !c.node.RemoveMethod(m) {
		return false
	}
	c.declMethods = removeMethod(c.declMethods, mw)
	// An override that is removed still inherits the overridden method.
	for _, s := range c.Supers() {
		if s.Method(mw.name, mw.desc) == mw {
			return true
		}
	}
	c.methods = removeMethod(c.methods, mw)
	mw.removeOwner(c)
	return true
}

func (c *ClassWrapper) String() string {
	return c.node.Name
}

// ---------------------------------------------------------------------------
// Member wrappers
// ---------------------------------------------------------------------------

// owners is an ordered set of classes keyed by arena handle.
type owners struct {
	list []*ClassWrapper
	ids  map[int]struct{}
}

func (o *owners) add(c *ClassWrapper) {
	if o.ids == nil {
		o.ids = make(map[int]struct{})
	}
	if _, ok := o.ids[c.id]; ok {
		return
	}
	o.ids[c.id] = struct{}{}
	o.list = append(o.list, c)
}

func (o *owners) remove(c *ClassWrapper) {
	if _, ok := o.ids[c.id]; !ok {
		return
	}
	delete(o.ids, c.id)
	for i, w := range o.list {
		if w == c {
			o.list = append(o.list[:i], o.list[i+1:]...)
			break
		}
	}
}

func (o *owners) has(c *ClassWrapper) bool {
	if c == nil {
		return false
	}
	_, ok := o.ids[c.id]
	return ok
}

// FieldWrapper is one logical field, visible from one or more classes.
type FieldWrapper struct {
	id       int
	name     string
	desc     string
	access   classfile.Access
	declarer *ClassWrapper
	owners   owners
}

// ID returns the stable arena handle of the field.
func (f *FieldWrapper) ID() int { return f.id }

// Name returns the field name.
func (f *FieldWrapper) Name() string { return f.name }

// Desc returns the field descriptor.
func (f *FieldWrapper) Desc() string { return f.desc }

// Declarer returns the class that declares the field.
func (f *FieldWrapper) Declarer() *ClassWrapper { return f.declarer }

// Owners returns every class that can see the field.
func (f *FieldWrapper) Owners() []*ClassWrapper { return f.owners.list }

// HasOwner reports whether c can see the field.
func (f *FieldWrapper) HasOwner(c *ClassWrapper) bool { return f.owners.has(c) }

// Access returns the access flags of the declaration.
func (f *FieldWrapper) Access() classfile.Access { return f.access }

func (f *FieldWrapper) addOwner(c *ClassWrapper)    { f.owners.add(c) }
func (f *FieldWrapper) removeOwner(c *ClassWrapper) { f.owners.remove(c) }

func (f *FieldWrapper) String() string {
	return f.declarer.Name() + "." + f.name + ":" + f.desc
}

// MethodWrapper is one logical method: a declaration together with every
// override of it, visible from one or more classes.
type MethodWrapper struct {
	id       int
	name     string
	desc     string
	access   classfile.Access
	declarer *ClassWrapper
	owners   owners
	merged   *MethodWrapper // set when folded into another wrapper
}

// ID returns the stable arena handle of the method.
func (m *MethodWrapper) ID() int { return m.id }

// Name returns the method name.
func (m *MethodWrapper) Name() string { return m.name }

// Desc returns the method descriptor.
func (m *MethodWrapper) Desc() string { return m.desc }

// Declarer returns the topmost class that declares the method.
func (m *MethodWrapper) Declarer() *ClassWrapper { return m.declarer }

// Owners returns every class that declares, overrides or inherits the method.
func (m *MethodWrapper) Owners() []*ClassWrapper { return m.owners.list }

// HasOwner reports whether c declares, overrides or inherits the method.
func (m *MethodWrapper) HasOwner(c *ClassWrapper) bool { return m.owners.has(c) }

func (m *MethodWrapper) addOwner(c *ClassWrapper)    { m.owners.add(c) }
func (m *MethodWrapper) removeOwner(c *ClassWrapper) { m.owners.remove(c) }

func (m *MethodWrapper) String() string {
	return m.declarer.Name() + "." + m.name + m.desc
}

// Access returns the access flags of the declaration.
func (m *MethodWrapper) Access() classfile.Access { return m.access }

// mergeable reports whether the method takes part in overriding.
func (m *MethodWrapper) mergeable() bool {
	if m.name == "<init>" || m.name == "<clinit>" {
		return false
	}
	return !m.access.Has(classfile.AccStatic) && !m.access.Has(classfile.AccPrivate)
}

// inheritable reports whether subclasses can see the method at all.
func inheritable(access classfile.Access, name string) bool {
	if name == "<init>" || name == "<clinit>" {
		return false
	}
	return !access.Has(classfile.AccPrivate)
}

func appendUniqueMethod(list []*MethodWrapper, mw *MethodWrapper) []*MethodWrapper {
	for _, m := range list {
		if m == mw {
			return list
		}
	}
	return append(list, mw)
}

func removeField(list []*FieldWrapper, fw *FieldWrapper) []*FieldWrapper {
	for i, f := range list {
		if f == fw {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeMethod(list []*MethodWrapper, mw *MethodWrapper) []*MethodWrapper {
	for i, m := range list {
		if m == mw {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
