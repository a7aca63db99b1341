package patch

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed template line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads a template. Structural problems (unknown commands, missing
// parameters, unterminated blocks) are reported as *SyntaxError; semantic
// checks are left to Validate.
func Parse(r io.Reader) (*Classes, error) {
	p := &parser{out: &Classes{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	if p.method != nil {
		return nil, p.errorf("unterminated method %s", p.method.Ident)
	}
	if p.class != nil {
		return nil, p.errorf("unterminated class %s", p.class.Ident)
	}
	return p.out, nil
}

// ParseString parses a template held in a string.
func ParseString(src string) (*Classes, error) {
	return Parse(strings.NewReader(src))
}

type parser struct {
	out    *Classes
	class  *Class
	method *Method
	line   int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseLine(text string) error {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "//") {
		return nil
	}
	mode, ok := ModeFromPrefix(text[0])
	if !ok {
		return p.errorf("missing mode prefix in %q", text)
	}
	toks, err := tokenize(text[1:])
	if err != nil {
		return p.errorf("%v", err)
	}
	if len(toks) == 0 {
		return p.errorf("missing command")
	}
	cmd, args := toks[0], toks[1:]

	switch {
	case p.method != nil:
		return p.parseInstruction(mode, cmd, args)
	case p.class != nil:
		return p.parseMember(mode, cmd, args)
	}
	return p.parseClass(mode, cmd, args)
}

func (p *parser) parseClass(mode Mode, cmd string, args []string) error {
	var kind ClassKind
	switch cmd {
	case "class":
		kind = KindClass
	case "interface":
		kind = KindInterface
	case "enum":
		kind = KindEnum
	default:
		return p.errorf("expected class, interface or enum, got %q", cmd)
	}
	if len(args) != 1 {
		return p.errorf("%s takes exactly one name", cmd)
	}
	p.class = &Class{Kind: kind, Ident: ParseIdent(args[0]), Mode: mode, Line: p.line}
	return nil
}

func (p *parser) parseMember(mode Mode, cmd string, args []string) error {
	c := p.class
	switch cmd {
	case "extends", "interface":
		if len(args) != 1 {
			return p.errorf("%s takes exactly one name", cmd)
		}
		m := &Modifier{Ident: ParseIdent(args[0]), Mode: mode, Line: p.line}
		if cmd == "extends" {
			c.Extends = append(c.Extends, m)
		} else {
			c.Interfaces = append(c.Interfaces, m)
		}
		return nil

	case "field":
		f, err := p.parseField(mode, args)
		if err != nil {
			return err
		}
		c.Fields = append(c.Fields, f)
		return nil

	case "method":
		if len(args) < 2 {
			return p.errorf("method needs a name and a descriptor")
		}
		m := &Method{Ident: ParseIdent(args[0]), Desc: args[1], Mode: mode, Line: p.line}
		for _, a := range args[2:] {
			switch a {
			case "static":
				m.Static = true
			case "private":
				m.Private = true
			default:
				return p.errorf("unknown method flag %q", a)
			}
		}
		c.Methods = append(c.Methods, m)
		p.method = m
		return nil

	case "end-class":
		if len(args) != 0 {
			return p.errorf("end-class takes no parameters")
		}
		p.out.Classes = append(p.out.Classes, c)
		p.class = nil
		return nil
	}
	return p.errorf("unknown class member %q", cmd)
}

func (p *parser) parseField(mode Mode, args []string) (*Field, error) {
	if len(args) < 2 {
		return nil, p.errorf("field needs a name and a descriptor")
	}
	f := &Field{Ident: ParseIdent(args[0]), Desc: args[1], Mode: mode, Line: p.line}
	for i, a := range args[2:] {
		switch a {
		case "static":
			f.Static = true
			continue
		case "private":
			f.Private = true
			continue
		}
		if i != len(args)-3 {
			return nil, p.errorf("field value must be the last parameter")
		}
		v, err := parseValue(a)
		if err != nil {
			return nil, p.errorf("bad field value %s: %v", a, err)
		}
		f.Value = v
	}
	return f, nil
}

func (p *parser) parseInstruction(mode Mode, cmd string, args []string) error {
	if cmd == "end-method" {
		if len(args) != 0 {
			return p.errorf("end-method takes no parameters")
		}
		p.method = nil
		return nil
	}
	op, opcode, ok := LookupMnemonic(cmd)
	if !ok {
		return p.errorf("unknown instruction %q", cmd)
	}
	if n := arity(op); n >= 0 && len(args) != n {
		return p.errorf("%s takes %d parameters, got %d", cmd, n, len(args))
	}
	p.method.Instructions = append(p.method.Instructions, &Instruction{
		Op:     op,
		Opcode: opcode,
		Mode:   mode,
		Params: args,
		Line:   p.line,
	})
	return nil
}

// arity returns the number of parameters an instruction family takes.
func arity(op Op) int {
	switch op {
	case OpField, OpInvoke:
		return 3
	case OpIinc:
		return 2
	case OpPushInt, OpPushLong, OpPushFloat, OpPushDouble, OpPushString,
		OpPushClass, OpLabel, OpJump, OpVar, OpType:
		return 1
	}
	return 0
}

// tokenize splits a command line on whitespace. Double-quoted tokens may
// contain spaces and Go escapes; they are returned with their quotes so
// that string parameters stay distinguishable from identifiers.
func tokenize(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			j := i + 1
			for ; j < len(s); j++ {
				if s[j] == '\\' {
					j++
					continue
				}
				if s[j] == '"' {
					break
				}
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string")
			}
			tok := s[i : j+1]
			if _, err := strconv.Unquote(tok); err != nil {
				return nil, fmt.Errorf("bad string %s: %w", tok, err)
			}
			toks = append(toks, tok)
			i = j + 1
		case strings.HasPrefix(s[i:], "//"):
			return toks, nil
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

// parseValue parses a constant: "str", 12 (int), 12L (long), 1.5f (float)
// or 1.5 (double).
func parseValue(tok string) (any, error) {
	if strings.HasPrefix(tok, `"`) {
		return strconv.Unquote(tok)
	}
	body := strings.TrimPrefix(tok, "-")
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		if strings.HasSuffix(tok, "L") {
			return strconv.ParseInt(tok[:len(tok)-1], 0, 64)
		}
		v, err := strconv.ParseInt(tok, 0, 32)
		return int32(v), err
	}
	if strings.HasSuffix(tok, "Inf") {
		return strconv.ParseFloat(tok, 64)
	}
	switch last := tok[len(tok)-1]; {
	case last == 'L' || last == 'l':
		return strconv.ParseInt(tok[:len(tok)-1], 0, 64)
	case last == 'F' || last == 'f':
		v, err := strconv.ParseFloat(tok[:len(tok)-1], 32)
		return float32(v), err
	case last == 'D' || last == 'd':
		return strconv.ParseFloat(tok[:len(tok)-1], 64)
	}
	if strings.ContainsAny(tok, ".eE") || tok == "NaN" {
		return strconv.ParseFloat(tok, 64)
	}
	v, err := strconv.ParseInt(tok, 0, 32)
	return int32(v), err
}

// ParseValue parses a constant in template syntax.
func ParseValue(tok string) (any, error) {
	if tok == "" {
		return nil, fmt.Errorf("empty value")
	}
	return parseValue(tok)
}

// FormatValue renders a constant in template syntax.
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10) + "L"
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32) + "f"
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprint(v)
}
