package classfile

import (
	"fmt"
	"strings"
)

// Disassemble returns a javap-like listing of the class.
func (c *ClassNode) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", c.Name))
	sb.WriteString(fmt.Sprintf("; Version: %d\n", c.Version))
	sb.WriteString(fmt.Sprintf("; Access: 0x%04X", uint16(c.Access)))
	if s := c.Access.String(); s != "" {
		sb.WriteString(" [" + s + "]")
	}
	sb.WriteString("\n")
	if c.SuperName != "" {
		sb.WriteString(fmt.Sprintf("; Extends: %s\n", c.SuperName))
	}
	for _, in := range c.Interfaces {
		sb.WriteString(fmt.Sprintf("; Implements: %s\n", in))
	}
	sb.WriteString("\n")

	if len(c.Fields) > 0 {
		sb.WriteString("; Fields:\n")
		for _, f := range c.Fields {
			sb.WriteString(fmt.Sprintf(";   %s %s", f.Name, f.Desc))
			if s := f.Access.String(); s != "" {
				sb.WriteString(" [" + s + "]")
			}
			if f.Value != nil {
				sb.WriteString(" = " + formatValue(f.Value))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for _, m := range c.Methods {
		sb.WriteString(m.Disassemble())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Disassemble returns a listing of the method body. Labels are numbered in
// order of first appearance.
func (m *MethodNode) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; Method %s%s", m.Name, m.Desc))
	if s := m.Access.String(); s != "" {
		sb.WriteString(" [" + s + "]")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("; Stack: %d  Locals: %d\n", m.MaxStack, m.MaxLocals))

	labels := make(map[*LabelNode]int)
	labelName := func(l *LabelNode) string {
		idx, ok := labels[l]
		if !ok {
			idx = len(labels)
			labels[l] = idx
		}
		return fmt.Sprintf("L%d", idx)
	}

	for i, insn := range m.Instructions {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", i, disassembleInsn(insn, labelName)))
	}
	return sb.String()
}

func disassembleInsn(insn Insn, labelName func(*LabelNode) string) string {
	name := insn.Opcode().String()
	switch in := insn.(type) {
	case *SimpleInsn:
		return name
	case *IntInsn:
		return fmt.Sprintf("%s %d", name, in.Operand)
	case *VarInsn:
		return fmt.Sprintf("%s %d", name, in.Var)
	case *TypeInsn:
		return fmt.Sprintf("%s %s", name, in.Desc)
	case *FieldInsn:
		return fmt.Sprintf("%s %s.%s:%s", name, in.Owner, in.Name, in.Desc)
	case *MethodInsn:
		s := fmt.Sprintf("%s %s.%s%s", name, in.Owner, in.Name, in.Desc)
		if in.Interface && in.Op != OpInvokeinterface {
			s += " ; interface"
		}
		return s
	case *JumpInsn:
		return fmt.Sprintf("%s %s", name, labelName(in.Label))
	case *LabelNode:
		return labelName(in) + ":"
	case *LdcInsn:
		return fmt.Sprintf("%s %s", name, formatValue(in.Value))
	case *IincInsn:
		return fmt.Sprintf("%s %d %d", name, in.Var, in.Incr)
	}
	return name
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		display := val
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		return fmt.Sprintf("%q", display)
	case Type:
		return val.Descriptor() + ".class"
	case int64:
		return fmt.Sprintf("%dL", val)
	case float32:
		return fmt.Sprintf("%gf", val)
	}
	return fmt.Sprint(v)
}
