package patch

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Source renders the template as text that Parse reads back to an
// equivalent template.
func (cls *Classes) Source() string {
	var buf bytes.Buffer
	cls.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes the template text to w.
func (cls *Classes) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for i, c := range cls.Classes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		c.write(&sb)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func line(sb *strings.Builder, mode Mode, cmd string, args ...string) {
	sb.WriteByte(mode.Prefix())
	sb.WriteString(cmd)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	sb.WriteByte('\n')
}

func (c *Class) write(sb *strings.Builder) {
	line(sb, c.Mode, c.Kind.String(), c.Ident.Raw)
	for _, m := range c.Extends {
		line(sb, m.Mode, "extends", m.Ident.Raw)
	}
	for _, m := range c.Interfaces {
		line(sb, m.Mode, "interface", m.Ident.Raw)
	}
	for _, f := range c.Fields {
		args := []string{f.Ident.Raw, f.Desc}
		args = appendFlags(args, f.Static, f.Private)
		if f.Value != nil {
			args = append(args, FormatValue(f.Value))
		}
		line(sb, f.Mode, "field", args...)
	}
	for _, m := range c.Methods {
		line(sb, m.Mode, "method", appendFlags([]string{m.Ident.Raw, m.Desc}, m.Static, m.Private)...)
		for _, in := range m.Instructions {
			line(sb, in.Mode, in.Mnemonic(), in.Params...)
		}
		line(sb, m.Mode, "end-method")
	}
	line(sb, c.Mode, "end-class")
}

func appendFlags(args []string, static, private bool) []string {
	if static {
		args = append(args, "static")
	}
	if private {
		args = append(args, "private")
	}
	return args
}

func (c *Class) String() string {
	return fmt.Sprintf("%c%s %s", c.Mode.Prefix(), c.Kind, c.Ident)
}
