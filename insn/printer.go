package insn

import (
	"strings"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/universe"
)

// Printer turns concrete names into template names for one render call.
// With Weak set, names of classes in the universe and of their members
// become weak identifiers; library and external names stay literal.
// Labels have no concrete names; they always print as weak generated
// names, ~label-A, ~label-B and so on, in order of first use.
type Printer struct {
	Classes *universe.ClassSet
	Weak    bool

	labels map[*classfile.LabelNode]string
}

// NewPrinter creates a printer over cs.
func NewPrinter(cs *universe.ClassSet, weak bool) *Printer {
	return &Printer{Classes: cs, Weak: weak}
}

func (p *Printer) local(name string) *universe.ClassWrapper {
	if !p.Weak || p.Classes == nil {
		return nil
	}
	cw := p.Classes.ClassWrapper(name)
	if cw == nil || cw.IsExternal() || cw.IsHidden() {
		return nil
	}
	return cw
}

// Class returns the template name of a class.
func (p *Printer) Class(name string) string {
	if p.local(name) != nil {
		return string(patch.WeakMarker) + name
	}
	return name
}

// InternalName returns the template form of a type operand.
func (p *Printer) InternalName(name string) string {
	if strings.HasPrefix(name, "[") {
		return p.Desc(name)
	}
	return p.Class(name)
}

// Desc returns the template form of a descriptor.
func (p *Printer) Desc(desc string) string {
	if !p.Weak {
		return desc
	}
	var sb strings.Builder
	for i := 0; i < len(desc); i++ {
		c := desc[i]
		sb.WriteByte(c)
		if c != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			sb.WriteString(desc[i+1:])
			break
		}
		sb.WriteString(p.Class(desc[i+1 : i+end]))
		sb.WriteByte(';')
		i += end
	}
	return sb.String()
}

func special(name string) bool {
	return name == "<init>" || name == "<clinit>"
}

// Field returns the template name of a field of owner.
func (p *Printer) Field(owner, name, desc string) string {
	cw := p.local(owner)
	if cw == nil || cw.Field(name, desc) == nil {
		return name
	}
	return string(patch.WeakMarker) + name
}

// Method returns the template name of a method of owner.
func (p *Printer) Method(owner, name, desc string) string {
	cw := p.local(owner)
	if cw == nil || special(name) || cw.Method(name, desc) == nil {
		return name
	}
	return string(patch.WeakMarker) + name
}

// Label returns the template name of a label.
func (p *Printer) Label(l *classfile.LabelNode) string {
	if p.labels == nil {
		p.labels = make(map[*classfile.LabelNode]string)
	}
	name, ok := p.labels[l]
	if !ok {
		name = "label-" + letters(len(p.labels))
		p.labels[l] = name
	}
	return string(patch.WeakMarker) + name
}

// letters spells n as A, B, ..., Z, AA, AB, ...
func letters(n int) string {
	var buf []byte
	for {
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n = n/26 - 1
		if n < 0 {
			return string(buf)
		}
	}
}
