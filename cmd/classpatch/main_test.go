package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/classpatch/classfile"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("classpatch %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func fixtureClasses() []*classfile.ClassNode {
	empty := classfile.NewClassNode("app/Empty")
	empty.SuperName = "lib/Base"
	return []*classfile.ClassNode{empty}
}

func libraryClasses() []*classfile.ClassNode {
	base := classfile.NewClassNode("lib/Base")
	base.Methods = []*classfile.MethodNode{{
		Access: classfile.AccPublic, Name: "run", Desc: "()V", MaxStack: 1, MaxLocals: 1,
		Instructions: []classfile.Insn{&classfile.SimpleInsn{Op: classfile.OpReturn}},
	}}
	return []*classfile.ClassNode{base}
}

// project lays out a configured project with one image, one library and
// two templates, only the first of which applies.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "in"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := classfile.SaveImage(filepath.Join(dir, "in", "app.cpimg"), fixtureClasses(), classfile.ImageFlagNone); err != nil {
		t.Fatal(err)
	}
	if err := classfile.SaveImage(filepath.Join(dir, "lib.cpimg"), libraryClasses(), classfile.ImageFlagLibrary); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "classpatch.toml"), `
[input]
images = ["in/app.cpimg"]
libraries = ["lib.cpimg"]
`)
	writeFile(t, filepath.Join(dir, "patches", "1-add.patch"), ".class ~Target\n.extends lib/Base\n+field x I\n.end-class\n")
	writeFile(t, filepath.Join(dir, "patches", "2-missing.patch"), ".class app/Missing\n.end-class\n")
	return dir
}

// ---------------------------------------------------------------------------
// apply
// ---------------------------------------------------------------------------

func TestApplyCommand(t *testing.T) {
	dir := project(t)
	out := runCLI(t, "apply", "-C", dir)
	if !strings.Contains(out, "1 of 2 templates applied") {
		t.Errorf("apply output:\n%s", out)
	}

	_, classes, err := classfile.LoadImage(filepath.Join(dir, "out", "app.cpimg"))
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if len(classes) != 1 {
		t.Fatalf("got %d classes, want 1", len(classes))
	}
	want := []*classfile.FieldNode{{Access: classfile.AccPublic, Name: "x", Desc: "I"}}
	if diff := cmp.Diff(want, classes[0].Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestApplyUsesCache(t *testing.T) {
	dir := project(t)
	runCLI(t, "apply", "-C", dir)
	first, err := os.ReadFile(filepath.Join(dir, "out", "app.cpimg"))
	if err != nil {
		t.Fatal(err)
	}

	out := runCLI(t, "apply", "-C", dir)
	if got := strings.Count(out, "(cached)"); got != 2 {
		t.Errorf("second run: %d cached results, want 2\n%s", got, out)
	}
	second, err := os.ReadFile(filepath.Join(dir, "out", "app.cpimg"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached run wrote a different image")
	}
}

func TestApplyDryRun(t *testing.T) {
	dir := project(t)
	runCLI(t, "apply", "-C", dir, "--dry-run", "--no-cache")
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("dry run created the output dir (stat err = %v)", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".classpatch")); !os.IsNotExist(err) {
		t.Errorf("--no-cache created the cache (stat err = %v)", err)
	}
}

func TestApplyContinuesPastBadImage(t *testing.T) {
	dir := project(t)
	writeFile(t, filepath.Join(dir, "in", "bad.cpimg"), "not an image")
	writeFile(t, filepath.Join(dir, "classpatch.toml"), `
[input]
images = ["in/bad.cpimg", "in/app.cpimg"]
libraries = ["lib.cpimg"]
`)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs([]string{"apply", "-C", dir, "--jobs", "1", "--no-cache"})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "bad.cpimg") {
		t.Fatalf("apply error = %v, want one naming bad.cpimg", err)
	}
	if strings.Contains(err.Error(), "app.cpimg") {
		t.Errorf("good image failed too: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "app.cpimg")); err != nil {
		t.Errorf("good image was not written: %v", err)
	}
}

// ---------------------------------------------------------------------------
// match, render, dump
// ---------------------------------------------------------------------------

func TestMatchCommand(t *testing.T) {
	dir := project(t)
	out := runCLI(t, "match", "-L", filepath.Join(dir, "lib.cpimg"),
		filepath.Join(dir, "in", "app.cpimg"), filepath.Join(dir, "patches", "1-add.patch"))
	if !strings.Contains(out, "class  ~Target = app/Empty") {
		t.Errorf("match output:\n%s", out)
	}

	out = runCLI(t, "match", filepath.Join(dir, "in", "app.cpimg"), filepath.Join(dir, "patches", "2-missing.patch"))
	if strings.TrimSpace(out) != "no match" {
		t.Errorf("match output = %q, want no match", out)
	}
}

func TestRenderCommand(t *testing.T) {
	dir := project(t)
	out := runCLI(t, "render", filepath.Join(dir, "in", "app.cpimg"), "app/Empty")
	if !strings.Contains(out, ".class app/Empty") || !strings.Contains(out, "lib/Base") {
		t.Errorf("render output:\n%s", out)
	}

	tmpl := filepath.Join(dir, "weak.patch")
	runCLI(t, "render", "--weak", "-o", tmpl, filepath.Join(dir, "in", "app.cpimg"))
	out = runCLI(t, "match", filepath.Join(dir, "in", "app.cpimg"), tmpl)
	if !strings.Contains(out, "= app/Empty") {
		t.Errorf("weak template did not re-match:\n%s", out)
	}
}

func TestDumpCommand(t *testing.T) {
	dir := project(t)
	out := runCLI(t, "dump", filepath.Join(dir, "lib.cpimg"))
	if !strings.Contains(out, "; === lib/Base ===") {
		t.Errorf("dump output:\n%s", out)
	}
}
