package scope

import (
	"fmt"
	"sort"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/universe"
)

// BindConflictError reports an attempt to rebind a key.
type BindConflictError struct {
	Kind    string // "class", "field", "method" or "label"
	Key     string
	Current string
	New     string
}

func (e *BindConflictError) Error() string {
	return fmt.Sprintf("%s ~%s already bound to %s, cannot bind %s", e.Kind, e.Key, e.Current, e.New)
}

type memberKey struct {
	name string
	desc string
}

type labelKey struct {
	method *classfile.MethodNode
	name   string
}

// Scope is a set of bindings, possibly layered over a parent.
// The zero value is not usable; use New.
type Scope struct {
	parent *Scope
	depth  int

	classes  map[string]*universe.ClassWrapper
	fields   map[memberKey][]*universe.FieldWrapper
	methods  map[memberKey][]*universe.MethodWrapper
	labels   map[labelKey]*classfile.LabelNode
	reserved map[string]bool
}

// New returns an empty scope.
func New() *Scope {
	return &Scope{}
}

// Fork returns an empty child of s. Bindings added to the child are not
// visible in s.
func (s *Scope) Fork() *Scope {
	return &Scope{parent: s, depth: s.depth + 1}
}

// Parent returns the scope s was forked from, or nil.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Depth returns the length of the parent chain.
func (s *Scope) Depth() int {
	return s.depth
}

// Flatten returns a parentless scope holding every binding visible in s.
func (s *Scope) Flatten() *Scope {
	out := New()
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		for k, cw := range cur.classes {
			out.setClass(k, cw)
		}
		for k, list := range cur.fields {
			for _, fw := range list {
				out.addField(k, fw)
			}
		}
		for k, list := range cur.methods {
			for _, mw := range list {
				out.addMethod(k, mw)
			}
		}
		for k, l := range cur.labels {
			if out.labels == nil {
				out.labels = make(map[labelKey]*classfile.LabelNode)
			}
			out.labels[k] = l
		}
		for k := range cur.reserved {
			out.Reserve(k)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// Class returns the class bound to key, or nil.
func (s *Scope) Class(key string) *universe.ClassWrapper {
	for cur := s; cur != nil; cur = cur.parent {
		if cw, ok := cur.classes[key]; ok {
			return cw
		}
	}
	return nil
}

// PutClass binds key to cw.
func (s *Scope) PutClass(key string, cw *universe.ClassWrapper) error {
	if cur := s.Class(key); cur != nil {
		if cur == cw {
			return nil
		}
		return &BindConflictError{Kind: "class", Key: key, Current: cur.Name(), New: cw.Name()}
	}
	s.setClass(key, cw)
	return nil
}

func (s *Scope) setClass(key string, cw *universe.ClassWrapper) {
	if s.classes == nil {
		s.classes = make(map[string]*universe.ClassWrapper)
	}
	s.classes[key] = cw
}

// Reserve marks key as the name of a class that will be created. A
// reserved key never binds to an existing class.
func (s *Scope) Reserve(key string) {
	if s.reserved == nil {
		s.reserved = make(map[string]bool)
	}
	s.reserved[key] = true
}

// IsReserved reports whether key was reserved in s or a parent.
func (s *Scope) IsReserved(key string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.reserved[key] {
			return true
		}
	}
	return false
}

// ClassKeys returns every bound class key in sorted order.
func (s *Scope) ClassKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for cur := s; cur != nil; cur = cur.parent {
		for k := range cur.classes {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// Field returns the field bound to key and desc whose owners include
// owner, or nil.
func (s *Scope) Field(owner *universe.ClassWrapper, key, desc string) *universe.FieldWrapper {
	k := memberKey{key, desc}
	for cur := s; cur != nil; cur = cur.parent {
		for _, fw := range cur.fields[k] {
			if fw.HasOwner(owner) {
				return fw
			}
		}
	}
	return nil
}

// PutField binds key and desc to fw for every owner of fw.
func (s *Scope) PutField(owner *universe.ClassWrapper, key, desc string, fw *universe.FieldWrapper) error {
	if cur := s.Field(owner, key, desc); cur != nil {
		if cur == fw {
			return nil
		}
		return &BindConflictError{Kind: "field", Key: key, Current: cur.String(), New: fw.String()}
	}
	s.addField(memberKey{key, desc}, fw)
	return nil
}

func (s *Scope) addField(k memberKey, fw *universe.FieldWrapper) {
	if s.fields == nil {
		s.fields = make(map[memberKey][]*universe.FieldWrapper)
	}
	s.fields[k] = append(s.fields[k], fw)
}

// Method returns the method bound to key and desc whose owners include
// owner, or nil.
func (s *Scope) Method(owner *universe.ClassWrapper, key, desc string) *universe.MethodWrapper {
	k := memberKey{key, desc}
	for cur := s; cur != nil; cur = cur.parent {
		for _, mw := range cur.methods[k] {
			if mw.HasOwner(owner) {
				return mw
			}
		}
	}
	return nil
}

// PutMethod binds key and desc to mw for every owner of mw.
func (s *Scope) PutMethod(owner *universe.ClassWrapper, key, desc string, mw *universe.MethodWrapper) error {
	if cur := s.Method(owner, key, desc); cur != nil {
		if cur == mw {
			return nil
		}
		return &BindConflictError{Kind: "method", Key: key, Current: cur.String(), New: mw.String()}
	}
	s.addMethod(memberKey{key, desc}, mw)
	return nil
}

func (s *Scope) addMethod(k memberKey, mw *universe.MethodWrapper) {
	if s.methods == nil {
		s.methods = make(map[memberKey][]*universe.MethodWrapper)
	}
	s.methods[k] = append(s.methods[k], mw)
}

// MethodBound reports whether mw is bound under any key.
func (s *Scope) MethodBound(mw *universe.MethodWrapper) bool {
	for cur := s; cur != nil; cur = cur.parent {
		for _, list := range cur.methods {
			for _, m := range list {
				if m == mw {
					return true
				}
			}
		}
	}
	return false
}

// FieldBound reports whether fw is bound under any key.
func (s *Scope) FieldBound(fw *universe.FieldWrapper) bool {
	for cur := s; cur != nil; cur = cur.parent {
		for _, list := range cur.fields {
			for _, f := range list {
				if f == fw {
					return true
				}
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// Label returns the label bound to key inside method, or nil.
func (s *Scope) Label(method *classfile.MethodNode, key string) *classfile.LabelNode {
	k := labelKey{method, key}
	for cur := s; cur != nil; cur = cur.parent {
		if l, ok := cur.labels[k]; ok {
			return l
		}
	}
	return nil
}

// PutLabel binds key inside method to l.
func (s *Scope) PutLabel(method *classfile.MethodNode, key string, l *classfile.LabelNode) error {
	if cur := s.Label(method, key); cur != nil {
		if cur == l {
			return nil
		}
		return &BindConflictError{Kind: "label", Key: key, Current: labelName(cur), New: labelName(l)}
	}
	if s.labels == nil {
		s.labels = make(map[labelKey]*classfile.LabelNode)
	}
	s.labels[labelKey{method, key}] = l
	return nil
}

func labelName(l *classfile.LabelNode) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("label@%p", l)
}

// String summarizes the class bindings, for logging.
func (s *Scope) String() string {
	keys := s.ClassKeys()
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += "~" + k + "=" + s.Class(k).Name()
	}
	return out + "}"
}
