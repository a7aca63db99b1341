package insn

import (
	"fmt"
	"slices"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
)

// Span is the half-open range of concrete instructions covered by one
// template instruction. Added instructions cover an empty span at their
// insertion point.
type Span struct {
	Start, End int
}

// Alignment holds one span per template instruction.
type Alignment []Span

// MatchBody aligns a template body with a concrete body and returns the
// first alignment found, with a fork of ctx.Scope holding the bindings
// made by the body. ctx.Scope itself is not modified. An empty template
// body matches every concrete body.
func MatchBody(ctx *Context, tmpl []*patch.Instruction, body []classfile.Insn) (Alignment, *scope.Scope, bool) {
	var (
		align Alignment
		out   *scope.Scope
	)
	ok := EachBody(ctx, tmpl, body, func(a Alignment, sc *scope.Scope) bool {
		align, out = a, sc
		return true
	})
	if !ok {
		return nil, nil, false
	}
	return align, out, true
}

// EachBody calls yield with every alignment of a template body with a
// concrete body until yield accepts one, and reports whether one was
// accepted.
//
// Template instructions are matched in order against the whole concrete
// body. Concrete labels are skipped unless the template instruction is a
// label; added instructions consume nothing; any tries the shortest span
// first. Each call to yield gets its own alignment and its own fork of
// ctx.Scope holding the bindings of that alignment.
func EachBody(ctx *Context, tmpl []*patch.Instruction, body []classfile.Insn, yield func(Alignment, *scope.Scope) bool) bool {
	if len(tmpl) == 0 {
		return yield(Alignment{}, fork(ctx.Scope))
	}
	m := &matcher{ctx: ctx, tmpl: tmpl, body: body, spans: make(Alignment, len(tmpl)), yield: yield}
	return m.match(0, 0, fork(ctx.Scope))
}

func fork(sc *scope.Scope) *scope.Scope {
	if sc == nil {
		return nil
	}
	return sc.Fork()
}

type matcher struct {
	ctx     *Context
	tmpl    []*patch.Instruction
	body    []classfile.Insn
	spans   Alignment
	yield   func(Alignment, *scope.Scope) bool
	aborted bool
}

func isLabel(in classfile.Insn) bool {
	_, ok := in.(*classfile.LabelNode)
	return ok
}

func (m *matcher) skipLabels(ci int) int {
	for ci < len(m.body) && isLabel(m.body[ci]) {
		ci++
	}
	return ci
}

// match extends the spans chosen so far from template instruction ti and
// concrete instruction ci, and reports whether yield accepted a complete
// alignment below this point.
func (m *matcher) match(ti, ci int, sc *scope.Scope) bool {
	if m.aborted {
		return false
	}
	if m.ctx.Tick != nil && !m.ctx.Tick() {
		m.aborted = true
		return false
	}
	if ti == len(m.tmpl) {
		if m.skipLabels(ci) != len(m.body) {
			return false
		}
		return m.yield(slices.Clone(m.spans), fork(sc))
	}

	t := m.tmpl[ti]
	switch {
	case t.Mode == patch.Add:
		m.spans[ti] = Span{ci, ci}
		return m.match(ti+1, ci, sc)

	case t.Op == patch.OpAny:
		for end := ci; end <= len(m.body) && !m.aborted; end++ {
			m.spans[ti] = Span{ci, end}
			if m.match(ti+1, end, fork(sc)) {
				return true
			}
		}
		return false

	case t.Op == patch.OpLabel:
		for j := ci; j < len(m.body) && !m.aborted; j++ {
			l, ok := m.body[j].(*classfile.LabelNode)
			if !ok {
				break
			}
			child := fork(sc)
			if !Check(m.ctx.withScope(child), t, l) {
				continue
			}
			m.spans[ti] = Span{j, j + 1}
			if m.match(ti+1, j+1, child) {
				return true
			}
		}
		return false
	}

	j := m.skipLabels(ci)
	if j == len(m.body) {
		return false
	}
	child := fork(sc)
	if !Check(m.ctx.withScope(child), t, m.body[j]) {
		return false
	}
	m.spans[ti] = Span{j, j + 1}
	return m.match(ti+1, j+1, child)
}

// Rebuild produces the patched body from an alignment: instructions under
// removed template instructions are dropped, added template instructions
// are created at their span, and everything else is kept in order.
// ctx.Scope must hold the bindings of the match.
func Rebuild(ctx *Context, tmpl []*patch.Instruction, body []classfile.Insn, align Alignment) ([]classfile.Insn, error) {
	if len(align) != len(tmpl) {
		return nil, fmt.Errorf("insn: alignment has %d spans for %d instructions", len(align), len(tmpl))
	}
	out := make([]classfile.Insn, 0, len(body)+len(tmpl))
	ci := 0
	for ti, t := range tmpl {
		sp := align[ti]
		if sp.Start < ci || sp.End < sp.Start || sp.End > len(body) {
			return nil, fmt.Errorf("insn: span %v of instruction %d out of order", sp, ti)
		}
		out = append(out, body[ci:sp.Start]...)
		switch t.Mode {
		case patch.Add:
			in, err := Create(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", t.Line, t.Mnemonic(), err)
			}
			out = append(out, in)
		case patch.Remove:
		default:
			out = append(out, body[sp.Start:sp.End]...)
		}
		ci = sp.End
	}
	return append(out, body[ci:]...), nil
}

// CreateBody builds a whole body from added template instructions.
func CreateBody(ctx *Context, tmpl []*patch.Instruction) ([]classfile.Insn, error) {
	out := make([]classfile.Insn, 0, len(tmpl))
	for _, t := range tmpl {
		in, err := Create(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", t.Line, t.Mnemonic(), err)
		}
		out = append(out, in)
	}
	return out, nil
}
