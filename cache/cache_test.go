package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/scope"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testKey(universe, template string) Key {
	return Key{
		Universe: classfile.HashBytes([]byte(universe)),
		Template: classfile.HashBytes([]byte(template)),
	}
}

func sampleSnapshot() *scope.Snapshot {
	return &scope.Snapshot{
		Classes: map[string]string{"~Target": "app/B"},
		Fields: []scope.MemberBinding{
			{Key: "~count", Desc: "I", Declarer: "app/B", Name: "n", Concrete: "I"},
		},
		Reserved: []string{"~Fresh"},
	}
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

func TestPutGet(t *testing.T) {
	c := openTemp(t)
	key := testKey("u", "t")

	if err := c.Put(key, sampleSnapshot()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !e.Matched() {
		t.Fatal("entry not matched")
	}
	if diff := cmp.Diff(sampleSnapshot(), e.Snapshot); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}
}

func TestPutNoMatch(t *testing.T) {
	c := openTemp(t)
	key := testKey("u", "t")

	if err := c.Put(key, nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.Matched() {
		t.Error("no-match entry reports a match")
	}
}

func TestGetMissing(t *testing.T) {
	c := openTemp(t)
	if _, err := c.Get(testKey("u", "t")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTemp(t)
	key := testKey("u", "t")

	if err := c.Put(key, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(key, sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	e, err := c.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Matched() {
		t.Error("replaced entry not matched")
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c := openTemp(t)
	if err := c.Put(testKey("u1", "t"), sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(testKey("u2", "t")); !errors.Is(err, ErrNotFound) {
		t.Errorf("other universe: err = %v, want ErrNotFound", err)
	}
	if _, err := c.Get(testKey("u1", "t2")); !errors.Is(err, ErrNotFound) {
		t.Errorf("other template: err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	c := openTemp(t)
	key := testKey("u", "t")
	if err := c.Put(key, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestPrune(t *testing.T) {
	c := openTemp(t)
	for _, u := range []string{"a", "b", "c"} {
		if err := c.Put(testKey(u, "t"), nil); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.Prune(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Prune(past) removed %d, want 0", n)
	}

	n, err = c.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Prune(future) removed %d, want 3", n)
	}
	if got, _ := c.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	key := testKey("u", "t")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(key, sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Get(key); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}
