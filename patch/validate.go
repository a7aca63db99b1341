package patch

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/classpatch/classfile"
)

// ValidateError is one template malformation.
type ValidateError struct {
	Line int
	Msg  string
}

func (e *ValidateError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Validator collects malformations.
type Validator struct {
	errs *multierror.Error
}

// Errorf records a malformation at line.
func (v *Validator) Errorf(line int, format string, args ...any) {
	v.errs = multierror.Append(v.errs, &ValidateError{Line: line, Msg: fmt.Sprintf(format, args...)})
}

// Err returns the aggregated malformations, or nil.
func (v *Validator) Err() error {
	return v.errs.ErrorOrNil()
}

// Validate checks mode nesting, identifiers and descriptors of a template.
// Instruction operands are checked by the instruction handlers.
func Validate(cls *Classes) error {
	var v Validator
	v.Classes(cls)
	return v.Err()
}

// Classes checks every class template.
func (v *Validator) Classes(cls *Classes) {
	for _, c := range cls.Classes {
		v.class(c)
	}
}

func (v *Validator) class(c *Class) {
	if c.Mode == Add && c.Ident.IsWildcard() {
		v.Errorf(c.Line, "added class needs a name")
	}
	if c.Ident.Name == "" && !c.Ident.IsWildcard() {
		v.Errorf(c.Line, "empty class name")
	}
	// Members of added or removed classes share their mode.
	nested := func(line int, what string, m Mode) {
		if c.Mode != Match && m != c.Mode {
			v.Errorf(line, "%s in %s class must be %s", what, c.Mode, c.Mode)
		}
	}

	supers := 0
	for _, m := range c.Extends {
		nested(m.Line, "extends", m.Mode)
		if m.Mode == Add {
			supers++
			if m.Ident.IsWildcard() {
				v.Errorf(m.Line, "added superclass needs a name")
			}
		}
	}
	if supers > 1 {
		v.Errorf(c.Line, "class %s adds more than one superclass", c.Ident)
	}
	for _, m := range c.Interfaces {
		nested(m.Line, "interface", m.Mode)
		if m.Mode == Add && m.Ident.IsWildcard() {
			v.Errorf(m.Line, "added interface needs a name")
		}
	}

	for _, f := range c.Fields {
		nested(f.Line, "field", f.Mode)
		v.member(f.Line, "field", f.Ident, f.Mode, f.Desc, false)
	}
	for _, m := range c.Methods {
		nested(m.Line, "method", m.Mode)
		v.member(m.Line, "method", m.Ident, m.Mode, m.Desc, true)
		v.body(m)
	}
}

func (v *Validator) member(line int, what string, id Ident, mode Mode, desc string, method bool) {
	if mode != Match && id.IsWildcard() {
		v.Errorf(line, "%s %s needs a name", mode, what)
	}
	if desc == Wildcard {
		if mode != Match {
			v.Errorf(line, "%s %s needs a descriptor", mode, what)
		}
		return
	}
	var err error
	if method {
		_, err = classfile.ParseMethodType(desc)
	} else {
		var t classfile.Type
		t, err = classfile.ParseType(desc)
		if err == nil && t.Sort() == classfile.SortVoid {
			err = fmt.Errorf("void field")
		}
	}
	if err != nil {
		v.Errorf(line, "%s descriptor %q: %v", what, desc, err)
	}
}

func (v *Validator) body(m *Method) {
	for _, in := range m.Instructions {
		if m.Mode != Match && in.Mode != m.Mode {
			v.Errorf(in.Line, "instruction in %s method must be %s", m.Mode, m.Mode)
		}
		if in.Op == OpAny && in.Mode != Match {
			v.Errorf(in.Line, "any can only match")
		}
	}
}
