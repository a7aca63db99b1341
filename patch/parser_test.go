package patch

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/classpatch/classfile"
)

const counterTemplate = `
// bump a counter on every call
.class ~Counter
.extends *
+interface java/lang/Runnable
.field ~count I private
+field total J static 0L
.method ~inc ()V
.load-object 0
.load-object 0
.get-field ~Counter ~count I
.push-int 1
.iadd
.put-field ~Counter ~count I
.any
.return
.end-method
+method run ()V
+return
+end-method
.end-class
`

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseCounter(t *testing.T) {
	cls, err := ParseString(counterTemplate)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cls.Classes) != 1 {
		t.Fatalf("len(Classes) = %d, want 1", len(cls.Classes))
	}
	c := cls.Classes[0]
	if c.Kind != KindClass || c.Mode != Match || !c.Ident.IsWeak() || c.Ident.Name != "Counter" {
		t.Errorf("class = %+v", c)
	}
	if len(c.Extends) != 1 || !c.Extends[0].Ident.IsWildcard() {
		t.Errorf("Extends = %+v", c.Extends)
	}
	if len(c.Interfaces) != 1 || c.Interfaces[0].Mode != Add || c.Interfaces[0].Ident.Name != "java/lang/Runnable" {
		t.Errorf("Interfaces = %+v", c.Interfaces)
	}
	if len(c.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(c.Fields))
	}
	if f := c.Fields[0]; !f.Private || f.Static || f.Desc != "I" {
		t.Errorf("Fields[0] = %+v", f)
	}
	if f := c.Fields[1]; f.Mode != Add || !f.Static || f.Value != int64(0) {
		t.Errorf("Fields[1] = %+v", f)
	}
	if len(c.Methods) != 2 {
		t.Fatalf("len(Methods) = %d, want 2", len(c.Methods))
	}
	inc := c.Methods[0]
	if len(inc.Instructions) != 8 {
		t.Fatalf("len(inc.Instructions) = %d, want 8", len(inc.Instructions))
	}
	get := inc.Instructions[2]
	if get.Op != OpField || get.Opcode != classfile.OpGetfield {
		t.Errorf("get-field = %v/%v", get.Op, get.Opcode)
	}
	if diff := cmp.Diff([]string{"~Counter", "~count", "I"}, get.Params); diff != "" {
		t.Errorf("get-field params (-want +got):\n%s", diff)
	}
	if in := inc.Instructions[4]; in.Op != OpSimple || in.Opcode != classfile.OpIadd {
		t.Errorf("iadd = %v/%v", in.Op, in.Opcode)
	}
	if in := inc.Instructions[6]; in.Op != OpAny {
		t.Errorf("any = %v", in.Op)
	}
	if got := inc.Instructions[7].Line; got != 16 {
		t.Errorf("return line = %d, want 16", got)
	}
	if err := Validate(cls); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseQuotedStrings(t *testing.T) {
	cls, err := ParseString(`.class A
.field s Ljava/lang/String; static "a \"b\" // c"
.method m ()V
.push-string "hello world\n" // trailing comment
.end-method
.end-class`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := cls.Classes[0]
	if got := c.Fields[0].Value; got != `a "b" // c` {
		t.Errorf("field value = %q", got)
	}
	if got := c.Methods[0].Instructions[0].Params; len(got) != 1 || got[0] != `"hello world\n"` {
		t.Errorf("push-string params = %q", got)
	}
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"12", int32(12)},
		{"-3", int32(-3)},
		{"0x10", int32(16)},
		{"12L", int64(12)},
		{"1.5f", float32(1.5)},
		{"1.5", 1.5},
		{"2d", 2.0},
		{`"x"`, "x"},
		{"+Inf", math.Inf(1)},
		{"-Inff", float32(math.Inf(-1))},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in)
		if err != nil {
			t.Errorf("ParseValue(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
		if back, _ := ParseValue(FormatValue(got)); back != got {
			t.Errorf("FormatValue(%#v) = %q does not parse back", got, FormatValue(got))
		}
	}
}

func TestParseNaN(t *testing.T) {
	for _, in := range []any{float32(math.NaN()), math.NaN()} {
		back, err := ParseValue(FormatValue(in))
		if err != nil {
			t.Fatalf("ParseValue(%q): %v", FormatValue(in), err)
		}
		switch v := back.(type) {
		case float32:
			if _, ok := in.(float32); !ok || !math.IsNaN(float64(v)) {
				t.Errorf("%#v parsed back as %#v", in, back)
			}
		case float64:
			if _, ok := in.(float64); !ok || !math.IsNaN(v) {
				t.Errorf("%#v parsed back as %#v", in, back)
			}
		default:
			t.Errorf("%#v parsed back as %#v", in, back)
		}
	}
}

// ---------------------------------------------------------------------------
// Syntax errors
// ---------------------------------------------------------------------------

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"no prefix", "class A", 1},
		{"unknown top level", ".method m ()V", 1},
		{"unknown member", ".class A\n.frobnicate", 2},
		{"unknown instruction", ".class A\n.method m ()V\n.frob\n", 3},
		{"arity", ".class A\n.method m ()V\n.get-field A x\n", 3},
		{"unterminated class", ".class A\n.field x I\n", 2},
		{"unterminated method", ".class A\n.method m ()V\n", 2},
		{"unterminated string", ".class A\n.method m ()V\n.push-string \"abc\n", 3},
		{"value not last", ".class A\n.field x I 1 static\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
			if se.Line != tt.line {
				t.Errorf("Line = %d, want %d (%v)", se.Line, tt.line, se)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateModeNesting(t *testing.T) {
	cls, err := ParseString(`+class ~New
.field x I
+method ~m ()V
.return
+end-method
+end-class
-class Old
+method n ()V
+end-method
-end-class`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = Validate(cls)
	if err == nil {
		t.Fatal("Validate = nil, want errors")
	}
	var lines []int
	for _, e := range err.(interface{ WrappedErrors() []error }).WrappedErrors() {
		var ve *ValidateError
		if !errors.As(e, &ve) {
			t.Fatalf("%v is not a *ValidateError", e)
		}
		lines = append(lines, ve.Line)
	}
	if diff := cmp.Diff([]int{2, 4, 8}, lines); diff != "" {
		t.Errorf("error lines (-want +got):\n%s", diff)
	}
}

func TestValidateDescriptorsAndNames(t *testing.T) {
	cls, err := ParseString(`.class A
.field x Q
+field * I
+field y *
.field z V
.method m (I
.end-method
.method n ()V
+any
.end-method
.end-class
+class *
+end-class`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = Validate(cls)
	if err == nil {
		t.Fatal("Validate = nil, want errors")
	}
	msg := err.Error()
	for _, want := range []string{"line 2:", "line 3:", "line 4:", "line 5:", "line 6:", "line 9:", "line 12:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("errors missing %q:\n%s", want, msg)
		}
	}
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

func TestSourceRoundTrip(t *testing.T) {
	cls, err := ParseString(counterTemplate)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	src := cls.Source()
	back, err := ParseString(src)
	if err != nil {
		t.Fatalf("Parse(Source): %v\n%s", err, src)
	}
	if diff := cmp.Diff(cls, back, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Line"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if !strings.Contains(src, "+field total J static 0L\n") {
		t.Errorf("Source missing field line:\n%s", src)
	}
}

func TestIdentAndMode(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		kind IdentKind
		name string
	}{
		{"Foo", Literal, "Foo"},
		{"~Foo", Weak, "Foo"},
		{"*", Any, "*"},
		{"~*", Any, "*"},
	} {
		id := ParseIdent(tt.raw)
		if id.Kind != tt.kind || id.Name != tt.name {
			t.Errorf("ParseIdent(%q) = %+v", tt.raw, id)
		}
	}
	for _, m := range []Mode{Match, Add, Remove} {
		if got, ok := ModeFromPrefix(m.Prefix()); !ok || got != m {
			t.Errorf("ModeFromPrefix(%c) = %v, %v", m.Prefix(), got, ok)
		}
	}
	if op, opcode, ok := LookupMnemonic("dup-x1"); !ok || op != OpSimple || opcode != classfile.OpDupX1 {
		t.Errorf("LookupMnemonic(dup-x1) = %v, %v, %v", op, opcode, ok)
	}
	if _, _, ok := LookupMnemonic("iconst-1"); ok {
		t.Error("iconst-1 should be spelled push-int")
	}
}
