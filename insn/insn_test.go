package insn

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// universeFixture builds app/Counter (count:I, inc()V) and app/Main, plus
// a hidden library class lib/Util.
func universeFixture(t *testing.T) *universe.ClassSet {
	t.Helper()
	counter := classfile.NewClassNode("app/Counter")
	counter.Fields = []*classfile.FieldNode{{Access: classfile.AccPrivate, Name: "count", Desc: "I"}}
	counter.Methods = []*classfile.MethodNode{{Access: classfile.AccPublic, Name: "inc", Desc: "()V"}}
	main := classfile.NewClassNode("app/Main")
	main.Methods = []*classfile.MethodNode{{
		Access: classfile.AccPublic | classfile.AccStatic,
		Name:   "main",
		Desc:   "([Ljava/lang/String;)V",
		Instructions: []classfile.Insn{
			&classfile.MethodInsn{Op: classfile.OpInvokestatic, Owner: "lib/Util", Name: "help", Desc: "()V"},
			&classfile.SimpleInsn{Op: classfile.OpReturn},
		},
	}}
	util := classfile.NewClassNode("lib/Util")
	cs := universe.FromNodes([]*classfile.ClassNode{counter, main})
	cs.AddHidden(util)
	cs.Simplify()
	return cs
}

func tmplInsn(t *testing.T, mode patch.Mode, mnemonic string, params ...string) *patch.Instruction {
	t.Helper()
	op, opcode, ok := patch.LookupMnemonic(mnemonic)
	if !ok {
		t.Fatalf("unknown mnemonic %s", mnemonic)
	}
	return &patch.Instruction{Op: op, Opcode: opcode, Mode: mode, Params: params}
}

func match(t *testing.T, mnemonic string, params ...string) *patch.Instruction {
	return tmplInsn(t, patch.Match, mnemonic, params...)
}

// incBody is the body of Counter.inc: this.count = this.count + 1.
func incBody() []classfile.Insn {
	return []classfile.Insn{
		&classfile.VarInsn{Op: classfile.OpAload, Var: 0},
		&classfile.VarInsn{Op: classfile.OpAload, Var: 0},
		&classfile.FieldInsn{Op: classfile.OpGetfield, Owner: "app/Counter", Name: "count", Desc: "I"},
		&classfile.SimpleInsn{Op: classfile.OpIconst1},
		&classfile.SimpleInsn{Op: classfile.OpIadd},
		&classfile.FieldInsn{Op: classfile.OpPutfield, Owner: "app/Counter", Name: "count", Desc: "I"},
		&classfile.SimpleInsn{Op: classfile.OpReturn},
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func TestCheckTypesBindsWeakNames(t *testing.T) {
	cs := universeFixture(t)
	sc := scope.New()
	pattern := classfile.MustParseType("[L~C;")
	if !CheckTypes(cs, sc, pattern, classfile.MustParseType("[Lapp/Counter;")) {
		t.Fatal("CheckTypes = false")
	}
	if got := sc.Class("C"); got == nil || got.Name() != "app/Counter" {
		t.Fatalf("~C bound to %v", got)
	}
	if CheckTypes(cs, sc, pattern, classfile.MustParseType("[Lapp/Main;")) {
		t.Error("~C matched a second class")
	}
	if CheckTypes(cs, sc, pattern, classfile.MustParseType("Lapp/Counter;")) {
		t.Error("array pattern matched an object type")
	}
	if !CheckDesc(cs, nil, "(L*;I)V", "(Ljava/lang/String;I)V") {
		t.Error("L*; should match any class")
	}
	if CheckDesc(cs, nil, "(I)V", "(J)V") {
		t.Error("(I)V matched (J)V")
	}

	desc, err := MapMethodDesc(sc, "(L~C;[L~C;)L~C;")
	if err != nil {
		t.Fatal(err)
	}
	if want := "(Lapp/Counter;[Lapp/Counter;)Lapp/Counter;"; desc != want {
		t.Errorf("MapMethodDesc = %s, want %s", desc, want)
	}
	if _, err := MapDesc(sc, "L~Missing;"); !errors.Is(err, ErrUnbound) {
		t.Errorf("MapDesc unbound = %v, want ErrUnbound", err)
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func TestFieldCheckAndCreate(t *testing.T) {
	cs := universeFixture(t)
	counter := cs.ClassWrapper("app/Counter")
	ctx := &Context{Classes: cs, Scope: scope.New()}
	get := match(t, "get-field", "~C", "~n", "I")
	concrete := incBody()[2]

	if !Check(ctx, get, concrete) {
		t.Fatal("get-field did not match")
	}
	if ctx.Scope.Class("C") != counter {
		t.Error("owner not bound")
	}
	if ctx.Scope.Field(counter, "n", "I") != counter.Field("count", "I") {
		t.Error("field not bound")
	}
	if Check(ctx, match(t, "put-field", "~C", "~n", "I"), concrete) {
		t.Error("put-field matched getfield")
	}

	put := tmplInsn(t, patch.Add, "put-field", "~C", "~n", "I")
	in, err := Create(ctx, put)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := &classfile.FieldInsn{Op: classfile.OpPutfield, Owner: "app/Counter", Name: "count", Desc: "I"}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Errorf("Create (-want +got):\n%s", diff)
	}
}

func TestInvokeOnLibraryClass(t *testing.T) {
	cs := universeFixture(t)
	call := cs.ClassWrapper("app/Main").Node().Methods[0].Instructions[0]
	sc := scope.New()
	ctx := &Context{Classes: cs, Scope: sc}
	if !Check(ctx, match(t, "invoke-static", "lib/Util", "help", "()V"), call) {
		t.Error("literal invoke did not match")
	}
	if Check(ctx, match(t, "invoke-static", "lib/Util", "~h", "()V"), call) {
		t.Error("weak method name matched a method without a wrapper")
	}
	if !Check(ctx, match(t, "invoke-static", "*", "*", "*"), call) {
		t.Error("wildcards did not match")
	}
}

func TestPushIntShortestForm(t *testing.T) {
	tests := []struct {
		in   string
		want classfile.Insn
	}{
		{"-1", &classfile.SimpleInsn{Op: classfile.OpIconstM1}},
		{"5", &classfile.SimpleInsn{Op: classfile.OpIconst5}},
		{"100", &classfile.IntInsn{Op: classfile.OpBipush, Operand: 100}},
		{"-200", &classfile.IntInsn{Op: classfile.OpSipush, Operand: -200}},
		{"70000", &classfile.LdcInsn{Value: int32(70000)}},
	}
	for _, tt := range tests {
		tmpl := tmplInsn(t, patch.Add, "push-int", tt.in)
		got, err := Create(&Context{}, tmpl)
		if err != nil {
			t.Fatalf("Create(%s): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("push-int %s (-want +got):\n%s", tt.in, diff)
		}
		if !Check(&Context{}, match(t, "push-int", tt.in), got) {
			t.Errorf("push-int %s does not match its own creation", tt.in)
		}
	}
}

func TestNewArrayForms(t *testing.T) {
	cs := universeFixture(t)
	ctx := &Context{Classes: cs, Scope: scope.New()}
	got, err := Create(ctx, tmplInsn(t, patch.Add, "new-array", "I"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&classfile.IntInsn{Op: classfile.OpNewarray, Operand: 10}, got); diff != "" {
		t.Errorf("new-array I (-want +got):\n%s", diff)
	}
	got, err = Create(ctx, tmplInsn(t, patch.Add, "new-array", "java/lang/String"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&classfile.TypeInsn{Op: classfile.OpAnewarray, Desc: "java/lang/String"}, got); diff != "" {
		t.Errorf("new-array String (-want +got):\n%s", diff)
	}
	if !Check(ctx, match(t, "new-array", "I"), &classfile.IntInsn{Op: classfile.OpNewarray, Operand: 10}) {
		t.Error("new-array I did not match newarray int")
	}
	if Check(ctx, match(t, "new-array", "J"), &classfile.IntInsn{Op: classfile.OpNewarray, Operand: 10}) {
		t.Error("new-array J matched newarray int")
	}
}

func TestReturnUsesMethodType(t *testing.T) {
	ctx := &Context{Method: &classfile.MethodNode{Name: "get", Desc: "()Ljava/lang/Object;"}}
	got, err := Create(ctx, tmplInsn(t, patch.Add, "return"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Opcode() != classfile.OpAreturn {
		t.Errorf("return created %v, want areturn", got.Opcode())
	}
	if !Check(ctx, match(t, "return"), &classfile.SimpleInsn{Op: classfile.OpIreturn}) {
		t.Error("return did not match ireturn")
	}
}

func TestPrintRoundTrip(t *testing.T) {
	cs := universeFixture(t)
	loop := classfile.NewLabel()
	body := append([]classfile.Insn{loop}, incBody()...)
	body = append(body[:len(body)-1],
		&classfile.LdcInsn{Value: "tick"},
		&classfile.LdcInsn{Value: int64(7)},
		&classfile.SimpleInsn{Op: classfile.OpLconst1},
		&classfile.LdcInsn{Value: float32(2.5)},
		&classfile.LdcInsn{Value: 0.25},
		&classfile.LdcInsn{Value: classfile.ObjectType("app/Main")},
		&classfile.TypeInsn{Op: classfile.OpNew, Desc: "app/Counter"},
		&classfile.IincInsn{Var: 1, Incr: -1},
		&classfile.JumpInsn{Op: classfile.OpGoto, Label: loop},
		&classfile.SimpleInsn{Op: classfile.OpReturn},
	)
	method := &classfile.MethodNode{Name: "inc", Desc: "()V", Instructions: body}

	p := NewPrinter(cs, true)
	var tmpl []*patch.Instruction
	var lines []string
	for _, in := range body {
		ti := Print(p, in)
		tmpl = append(tmpl, ti)
		lines = append(lines, strings.TrimSpace(ti.Mnemonic()+" "+strings.Join(ti.Params, " ")))
	}
	wantLines := []string{
		"label ~label-A",
		"load-object 0",
		"load-object 0",
		"get-field ~app/Counter ~count I",
		"push-int 1",
		"iadd",
		"put-field ~app/Counter ~count I",
		`push-string "tick"`,
		"push-long 7",
		"lconst-1",
		"push-float 2.5",
		"push-double 0.25",
		"push-class ~app/Main",
		"new ~app/Counter",
		"iinc 1 -1",
		"goto ~label-A",
		"return",
	}
	if diff := cmp.Diff(wantLines, lines); diff != "" {
		t.Fatalf("printed (-want +got):\n%s", diff)
	}

	ctx := &Context{Classes: cs, Scope: scope.New(), Method: method}
	align, sc, ok := MatchBody(ctx, tmpl, body)
	if !ok {
		t.Fatal("printed body does not match its source")
	}
	if sc.Class("app/Counter") != cs.ClassWrapper("app/Counter") {
		t.Error("~app/Counter not bound to app/Counter")
	}
	if len(align) != len(tmpl) {
		t.Errorf("len(align) = %d, want %d", len(align), len(tmpl))
	}
}

// ---------------------------------------------------------------------------
// Body matching
// ---------------------------------------------------------------------------

func TestMatchBodyAnyAndRebuild(t *testing.T) {
	cs := universeFixture(t)
	body := incBody()
	method := &classfile.MethodNode{Name: "inc", Desc: "()V", Instructions: body}
	tmpl := []*patch.Instruction{
		match(t, "any"),
		match(t, "get-field", "~C", "~n", "I"),
		tmplInsn(t, patch.Remove, "push-int", "1"),
		tmplInsn(t, patch.Add, "push-int", "2"),
		match(t, "any"),
		tmplInsn(t, patch.Add, "nop"),
		match(t, "return"),
	}
	ctx := &Context{Classes: cs, Scope: scope.New(), Method: method}
	align, sc, ok := MatchBody(ctx, tmpl, body)
	if !ok {
		t.Fatal("MatchBody = false")
	}
	wantAlign := Alignment{{0, 2}, {2, 3}, {3, 4}, {4, 4}, {4, 6}, {6, 6}, {6, 7}}
	if diff := cmp.Diff(wantAlign, align); diff != "" {
		t.Errorf("alignment (-want +got):\n%s", diff)
	}
	if ctx.Scope.Class("C") != nil {
		t.Error("MatchBody modified the caller's scope")
	}

	out, err := Rebuild(&Context{Classes: cs, Scope: sc, Method: method}, tmpl, body, align)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	var ops []classfile.Opcode
	for _, in := range out {
		ops = append(ops, in.Opcode())
	}
	want := []classfile.Opcode{
		classfile.OpAload, classfile.OpAload, classfile.OpGetfield, classfile.OpIconst2,
		classfile.OpIadd, classfile.OpPutfield, classfile.OpNop, classfile.OpReturn,
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("rebuilt body (-want +got):\n%s", diff)
	}
}

func TestMatchBodyRequiresWholeBody(t *testing.T) {
	cs := universeFixture(t)
	ctx := &Context{Classes: cs, Scope: scope.New()}
	tmpl := []*patch.Instruction{match(t, "load-object", "0"), match(t, "return")}
	if _, _, ok := MatchBody(ctx, tmpl, incBody()); ok {
		t.Error("partial template matched the whole body")
	}
	if _, _, ok := MatchBody(ctx, nil, incBody()); !ok {
		t.Error("empty template should match any body")
	}
}

func TestMatchBodyLabels(t *testing.T) {
	top, end := classfile.NewLabel(), classfile.NewLabel()
	body := []classfile.Insn{
		top,
		&classfile.VarInsn{Op: classfile.OpIload, Var: 1},
		&classfile.JumpInsn{Op: classfile.OpIfeq, Label: end},
		&classfile.JumpInsn{Op: classfile.OpGoto, Label: top},
		end,
		&classfile.SimpleInsn{Op: classfile.OpReturn},
	}
	method := &classfile.MethodNode{Name: "loop", Desc: "(I)V", Instructions: body}
	ctx := &Context{Classes: universe.NewClassSet(), Scope: scope.New(), Method: method}

	// Labels are transparent when the template does not mention them.
	plain := []*patch.Instruction{
		match(t, "load-int", "1"), match(t, "if-eq", "~out"), match(t, "goto", "~again"), match(t, "return"),
	}
	_, sc, ok := MatchBody(ctx, plain, body)
	if !ok {
		t.Fatal("body without template labels did not match")
	}
	if sc.Label(method, "~out") != end || sc.Label(method, "~again") != top {
		t.Error("jump targets not bound")
	}

	swapped := []*patch.Instruction{
		match(t, "label", "~a"), match(t, "load-int", "1"), match(t, "if-eq", "~a"), match(t, "any"),
	}
	if _, _, ok := MatchBody(ctx, swapped, body); ok {
		t.Error("if-eq bound to the wrong label")
	}
	if _, _, ok := MatchBody(ctx, []*patch.Instruction{match(t, "label", "top"), match(t, "any")}, body); ok {
		t.Error("literal label matched")
	}
}

func TestEachBodyEnumeratesAlignments(t *testing.T) {
	cs := universeFixture(t)
	body := incBody()
	ctx := &Context{Classes: cs, Scope: scope.New(), Method: &classfile.MethodNode{Instructions: body}}
	tmpl := []*patch.Instruction{match(t, "any"), match(t, "load-object", "0"), match(t, "any")}

	var got []Alignment
	ok := EachBody(ctx, tmpl, body, func(a Alignment, _ *scope.Scope) bool {
		got = append(got, a)
		return false
	})
	if ok {
		t.Error("EachBody = true although every alignment was rejected")
	}
	want := []Alignment{
		{{0, 0}, {0, 1}, {1, 7}},
		{{0, 1}, {1, 2}, {2, 7}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alignments (-want +got):\n%s", diff)
	}

	calls := 0
	ok = EachBody(ctx, tmpl, body, func(Alignment, *scope.Scope) bool {
		calls++
		return calls == 2
	})
	if !ok || calls != 2 {
		t.Errorf("EachBody = %v after %d calls, want true after 2", ok, calls)
	}
}

func TestMatchBodyTickAborts(t *testing.T) {
	steps := 0
	ctx := &Context{
		Classes: universe.NewClassSet(),
		Scope:   scope.New(),
		Tick: func() bool {
			steps++
			return steps < 3
		},
	}
	tmpl := []*patch.Instruction{match(t, "any"), match(t, "any"), match(t, "nop")}
	body := []classfile.Insn{
		&classfile.SimpleInsn{Op: classfile.OpPop},
		&classfile.SimpleInsn{Op: classfile.OpPop},
		&classfile.SimpleInsn{Op: classfile.OpPop},
	}
	if _, _, ok := MatchBody(ctx, tmpl, body); ok {
		t.Error("aborted match reported success")
	}
	if steps != 3 {
		t.Errorf("steps = %d, want 3", steps)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateOperands(t *testing.T) {
	cls, err := patch.ParseString(`.class A
.method m ()V
+push-int *
.push-int 99999999999
.get-field A f Q
.goto loop
.load-int x
+new *
.iinc 1 *
.end-method
.end-class`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = Validate(cls)
	if err == nil {
		t.Fatal("Validate = nil")
	}
	for _, line := range []string{"line 3:", "line 4:", "line 5:", "line 6:", "line 7:", "line 8:"} {
		if !strings.Contains(err.Error(), line) {
			t.Errorf("missing %s in:\n%v", line, err)
		}
	}
	if strings.Contains(err.Error(), "line 9:") {
		t.Errorf("wildcard iinc increment rejected:\n%v", err)
	}
}
