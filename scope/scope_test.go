package scope

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/universe"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// classes builds p/A with field n:I and method run()V, and p/B extends p/A
// overriding run()V.
func classes(t *testing.T) *universe.ClassSet {
	t.Helper()
	a := classfile.NewClassNode("p/A")
	a.Fields = []*classfile.FieldNode{{Access: classfile.AccPublic, Name: "n", Desc: "I"}}
	a.Methods = []*classfile.MethodNode{{Access: classfile.AccPublic, Name: "run", Desc: "()V"}}
	b := classfile.NewClassNode("p/B")
	b.SuperName = "p/A"
	b.Methods = []*classfile.MethodNode{{Access: classfile.AccPublic, Name: "run", Desc: "()V"}}
	c := classfile.NewClassNode("p/C")
	cs := universe.FromNodes([]*classfile.ClassNode{a, b, c})
	cs.Simplify()
	return cs
}

func weak(name string) patch.Ident { return patch.ParseIdent("~" + name) }

// ---------------------------------------------------------------------------
// Fork and flatten
// ---------------------------------------------------------------------------

func TestForkIsolation(t *testing.T) {
	cs := classes(t)
	a, b := cs.ClassWrapper("p/A"), cs.ClassWrapper("p/B")

	root := New()
	if err := root.PutClass("X", a); err != nil {
		t.Fatal(err)
	}
	child := root.Fork()
	if err := child.PutClass("Y", b); err != nil {
		t.Fatal(err)
	}
	if child.Class("X") != a {
		t.Error("child does not see parent binding")
	}
	if root.Class("Y") != nil {
		t.Error("parent sees child binding")
	}
	if child.Depth() != 1 || child.Parent() != root {
		t.Errorf("Depth = %d, Parent = %p", child.Depth(), child.Parent())
	}

	flat := child.Flatten()
	if flat.Parent() != nil || flat.Class("X") != a || flat.Class("Y") != b {
		t.Errorf("Flatten = %v", flat)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, flat.ClassKeys()); diff != "" {
		t.Errorf("ClassKeys (-want +got):\n%s", diff)
	}
}

func TestPutConflicts(t *testing.T) {
	cs := classes(t)
	a, b := cs.ClassWrapper("p/A"), cs.ClassWrapper("p/B")
	s := New()
	if err := s.PutClass("X", a); err != nil {
		t.Fatal(err)
	}
	if err := s.Fork().PutClass("X", a); err != nil {
		t.Errorf("rebinding to the same class: %v", err)
	}
	var bce *BindConflictError
	if err := s.Fork().PutClass("X", b); !errors.As(err, &bce) || bce.Kind != "class" {
		t.Errorf("PutClass conflict = %v", err)
	}

	m := &classfile.MethodNode{Name: "m", Desc: "()V"}
	l1, l2 := classfile.NewLabel(), classfile.NewLabel()
	if err := s.PutLabel(m, "L", l1); err != nil {
		t.Fatal(err)
	}
	if err := s.PutLabel(m, "L", l2); !errors.As(err, &bce) || bce.Kind != "label" {
		t.Errorf("PutLabel conflict = %v", err)
	}
	other := &classfile.MethodNode{Name: "o", Desc: "()V"}
	if err := s.PutLabel(other, "L", l2); err != nil {
		t.Errorf("labels are per method: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

func TestResolveClass(t *testing.T) {
	cs := classes(t)
	a, b := cs.ClassWrapper("p/A"), cs.ClassWrapper("p/B")

	var nilScope *Scope
	if !nilScope.ResolveClass(weak("X"), a) || !nilScope.ResolveClass(weak("X"), b) {
		t.Error("nil scope should accept any class for a weak name")
	}
	if nilScope.ResolveClass(patch.ParseIdent("p/B"), a) {
		t.Error("literal p/B resolved to p/A")
	}
	if !nilScope.ResolveClass(patch.ParseIdent("*"), nil) {
		t.Error("wildcard should accept anything")
	}

	s := New()
	if !s.ResolveClass(weak("X"), a) {
		t.Fatal("first resolution should bind")
	}
	if s.Class("X") != a {
		t.Fatal("binding not recorded")
	}
	if s.ResolveClass(weak("X"), b) {
		t.Error("bound key resolved to a different class")
	}
	if !s.ResolveClass(weak("X"), a) {
		t.Error("bound key rejected its own class")
	}

	s.Reserve("New")
	if s.Fork().ResolveClass(weak("New"), b) {
		t.Error("reserved key bound to an existing class")
	}
}

func TestResolveMembersByOwner(t *testing.T) {
	cs := classes(t)
	a, b, c := cs.ClassWrapper("p/A"), cs.ClassWrapper("p/B"), cs.ClassWrapper("p/C")
	run := a.Method("run", "()V")
	if run != b.Method("run", "()V") {
		t.Fatal("fixture: run()V not merged")
	}

	s := New()
	if !s.ResolveMethod(b, weak("go"), "()V", run) {
		t.Fatal("ResolveMethod should bind")
	}
	if s.Method(a, "go", "()V") != run {
		t.Error("binding not visible from another owner of the merged method")
	}
	if s.Method(c, "go", "()V") != nil {
		t.Error("binding visible from an unrelated class")
	}

	n := a.Field("n", "I")
	if !s.ResolveField(a, weak("f"), "I", n) {
		t.Fatal("ResolveField should bind")
	}
	if s.Field(b, "f", "I") != n {
		t.Error("inherited field binding not visible from subclass")
	}
	if s.ResolveField(a, patch.ParseIdent("m"), "I", n) {
		t.Error("literal m resolved to field n")
	}
	if !s.FieldBound(n) || !s.MethodBound(run) {
		t.Error("FieldBound/MethodBound = false for bound members")
	}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSnapshotRoundTrip(t *testing.T) {
	cs := classes(t)
	a, b := cs.ClassWrapper("p/A"), cs.ClassWrapper("p/B")
	s := New()
	s.ResolveClass(weak("X"), b)
	child := s.Fork()
	child.ResolveMethod(b, weak("go"), "()V", b.Method("run", "()V"))
	child.ResolveField(a, weak("f"), "I", a.Field("n", "I"))
	child.Reserve("New")

	snap := child.Snapshot()
	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	again, err := MarshalSnapshot(child.Flatten().Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(again) {
		t.Error("snapshot encoding is not deterministic")
	}

	decoded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if diff := cmp.Diff(snap, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}

	restored, err := Restore(cs, decoded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Class("X") != b {
		t.Error("class binding lost")
	}
	if restored.Method(b, "go", "()V") != b.Method("run", "()V") {
		t.Error("method binding lost")
	}
	if restored.Field(a, "f", "I") != a.Field("n", "I") {
		t.Error("field binding lost")
	}
	if !restored.IsReserved("New") {
		t.Error("reservation lost")
	}
}

func TestRestoreUnknown(t *testing.T) {
	cs := classes(t)
	_, err := Restore(cs, &Snapshot{Classes: map[string]string{"X": "p/Missing"}})
	if !errors.Is(err, ErrUnknownBinding) {
		t.Errorf("err = %v, want ErrUnknownBinding", err)
	}
	_, err = Restore(cs, &Snapshot{Fields: []MemberBinding{{Key: "f", Desc: "I", Declarer: "p/A", Name: "gone", Concrete: "I"}}})
	if !errors.Is(err, ErrUnknownBinding) {
		t.Errorf("err = %v, want ErrUnknownBinding", err)
	}
}
