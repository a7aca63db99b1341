package insn

import (
	"strconv"
	"strings"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
)

// Validate checks a template before matching: mode nesting, member
// descriptors and the operands of every instruction. All malformations
// are reported together.
func Validate(cls *patch.Classes) error {
	var v patch.Validator
	v.Classes(cls)
	for _, c := range cls.Classes {
		for _, m := range c.Methods {
			for _, in := range m.Instructions {
				h := HandlerFor(in.Op)
				if h == nil {
					v.Errorf(in.Line, "unknown instruction family %v", in.Op)
					continue
				}
				h.Validate(&v, in)
			}
		}
	}
	return v.Err()
}

func arity(v *patch.Validator, t *patch.Instruction, n int) bool {
	if len(t.Params) != n {
		v.Errorf(t.Line, "%s takes %d parameters, got %d", t.Mnemonic(), n, len(t.Params))
		return false
	}
	return true
}

// wildcardOK reports whether s is the wildcard, recording an error when the
// instruction is created rather than matched.
func wildcardOK(v *patch.Validator, t *patch.Instruction, s string) bool {
	if s != patch.Wildcard {
		return false
	}
	if t.Mode == patch.Add {
		v.Errorf(t.Line, "%s: cannot add an instruction with a wildcard operand", t.Mnemonic())
	}
	return true
}

func validName(v *patch.Validator, t *patch.Instruction, raw, what string) {
	id := patch.ParseIdent(raw)
	switch {
	case raw == "" || (id.IsWeak() && id.Name == ""):
		v.Errorf(t.Line, "%s: empty %s", t.Mnemonic(), what)
	case id.IsWildcard():
		wildcardOK(v, t, raw)
	}
}

func validDesc(v *patch.Validator, t *patch.Instruction, desc string, method bool) {
	if wildcardOK(v, t, desc) {
		return
	}
	var err error
	if method {
		_, err = classfile.ParseMethodType(desc)
	} else {
		_, err = classfile.ParseType(desc)
	}
	if err != nil {
		v.Errorf(t.Line, "%s: %v", t.Mnemonic(), err)
	}
}

func validTypeOperand(v *patch.Validator, t *patch.Instruction, s string) {
	if wildcardOK(v, t, s) {
		return
	}
	if strings.HasPrefix(s, "[") {
		if _, err := classfile.ParseType(s); err != nil {
			v.Errorf(t.Line, "%s: %v", t.Mnemonic(), err)
		}
		return
	}
	validName(v, t, s, "type")
}

func validInt(v *patch.Validator, t *patch.Instruction, s string, bits int) {
	if wildcardOK(v, t, s) {
		return
	}
	if _, err := strconv.ParseInt(s, 0, bits); err != nil {
		v.Errorf(t.Line, "%s: bad %d-bit integer %q", t.Mnemonic(), bits, s)
	}
}

func validLocal(v *patch.Validator, t *patch.Instruction, s string) {
	if wildcardOK(v, t, s) {
		return
	}
	if _, err := strconv.ParseUint(s, 0, 16); err != nil {
		v.Errorf(t.Line, "%s: bad local variable index %q", t.Mnemonic(), s)
	}
}

func validLabel(v *patch.Validator, t *patch.Instruction, s string) {
	id := patch.ParseIdent(s)
	switch {
	case id.IsWildcard():
		wildcardOK(v, t, s)
	case !id.IsWeak():
		v.Errorf(t.Line, "%s: label %s must be weak (~%s)", t.Mnemonic(), s, s)
	}
}
