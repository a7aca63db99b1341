package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[project]
name = "game-fixes"

[input]
images = ["build/game.cpimg"]
libraries = ["/opt/rt.cpimg"]

[patches]
dirs = ["fixes"]
files = ["extra/one.patch"]

[output]
dir = "dist"

[match]
max-steps = 5000

[cache]
path = "cache.db"
enabled = false

[log]
verbosity = 2
file = "classpatch.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Project.Name != "game-fixes" {
		t.Errorf("project name = %q, want game-fixes", c.Project.Name)
	}
	if diff := cmp.Diff([]string{filepath.Join(c.Dir, "build/game.cpimg")}, c.ImagePaths()); diff != "" {
		t.Errorf("ImagePaths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/opt/rt.cpimg"}, c.LibraryPaths()); diff != "" {
		t.Errorf("LibraryPaths (-want +got):\n%s", diff)
	}
	if got, want := c.OutputPath("/x/game.cpimg"), filepath.Join(c.Dir, "dist", "game.cpimg"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
	if c.Match.MaxSteps != 5000 {
		t.Errorf("max-steps = %d, want 5000", c.Match.MaxSteps)
	}
	if c.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if got, want := c.CachePath(), filepath.Join(c.Dir, "cache.db"); got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
	if c.Log.Verbosity != 2 || c.Log.File != "classpatch.log" {
		t.Errorf("log = %+v", c.Log)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[project]
name = "minimal"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"patches"}, c.Patches.Dirs); diff != "" {
		t.Errorf("patch dirs (-want +got):\n%s", diff)
	}
	if c.Output.Dir != "out" {
		t.Errorf("output dir = %q, want out", c.Output.Dir)
	}
	if c.Match.MaxSteps != 1<<20 {
		t.Errorf("max-steps = %d, want %d", c.Match.MaxSteps, 1<<20)
	}
	if !c.Cache.Enabled {
		t.Error("cache enabled = false, want true")
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[output]
directory = "dist"
`)
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted an unknown key")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load succeeded without a config file")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[project]\nname = \"found\"\n")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(deep)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || c.Project.Name != "found" {
		t.Fatalf("FindAndLoad = %+v, want project found", c)
	}
}

func TestPatchPaths(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[patches]
dirs = ["fixes", "absent"]
files = ["last.patch"]
`)
	fixes := filepath.Join(dir, "fixes")
	if err := os.MkdirAll(fixes, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.patch", "a.patch", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(fixes, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "last.patch"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	paths, err := c.PatchPaths()
	if err != nil {
		t.Fatalf("PatchPaths failed: %v", err)
	}
	want := []string{
		filepath.Join(c.Dir, "fixes", "a.patch"),
		filepath.Join(c.Dir, "fixes", "b.patch"),
		filepath.Join(c.Dir, "last.patch"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("PatchPaths (-want +got):\n%s", diff)
	}

	c.Patches.Files = []string{"missing.patch"}
	if _, err := c.PatchPaths(); err == nil {
		t.Error("PatchPaths accepted a missing file")
	}
}
