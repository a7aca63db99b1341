package engine

import (
	"io"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/insn"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/universe"
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Weak prints the names of classes in the universe, and of their
	// members, as weak identifiers keyed by the concrete name.
	Weak bool
}

// Template describes concrete classes as a template that matches them.
func (s *Session) Template(classes []*universe.ClassWrapper, opts RenderOptions) *patch.Classes {
	p := insn.NewPrinter(s.Classes, opts.Weak)
	out := &patch.Classes{}
	for _, cw := range classes {
		out.Classes = append(out.Classes, renderClass(p, cw))
	}
	return out
}

// Render writes the template of classes to w.
func (s *Session) Render(w io.Writer, classes []*universe.ClassWrapper, opts RenderOptions) error {
	_, err := s.Template(classes, opts).WriteTo(w)
	return err
}

func renderClass(p *insn.Printer, cw *universe.ClassWrapper) *patch.Class {
	node := cw.Node()
	c := &patch.Class{
		Ident: patch.ParseIdent(p.Class(node.Name)),
		Mode:  patch.Match,
	}
	switch {
	case cw.IsInterface():
		c.Kind = patch.KindInterface
	case cw.IsEnum():
		c.Kind = patch.KindEnum
	}
	if node.SuperName != "" {
		c.Extends = append(c.Extends, &patch.Modifier{Ident: patch.ParseIdent(p.Class(node.SuperName))})
	}
	for _, name := range node.Interfaces {
		c.Interfaces = append(c.Interfaces, &patch.Modifier{Ident: patch.ParseIdent(p.Class(name))})
	}
	for _, f := range node.Fields {
		c.Fields = append(c.Fields, &patch.Field{
			Ident:   patch.ParseIdent(p.Field(node.Name, f.Name, f.Desc)),
			Desc:    p.Desc(f.Desc),
			Static:  f.Access.Has(classfile.AccStatic),
			Private: f.Access.Has(classfile.AccPrivate),
			Value:   f.Value,
		})
	}
	for _, m := range node.Methods {
		mt := &patch.Method{
			Ident:   patch.ParseIdent(p.Method(node.Name, m.Name, m.Desc)),
			Desc:    p.Desc(m.Desc),
			Static:  m.Access.Has(classfile.AccStatic),
			Private: m.Access.Has(classfile.AccPrivate),
		}
		for _, in := range m.Instructions {
			mt.Instructions = append(mt.Instructions, insn.Print(p, in))
		}
		c.Methods = append(c.Methods, mt)
	}
	return c
}
