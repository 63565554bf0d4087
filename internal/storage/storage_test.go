package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	fs := New(filepath.Join(dir, "uploads"), filepath.Join(dir, "shared"), 0)
	if err := fs.InitDirectories([]string{"alice", "bob"}); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestSaveFetchRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	content := []byte("hello\x00binary\xffworld")

	unique, err := fs.Save("alice", "report.pdf", content)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !strings.HasSuffix(unique, ".pdf") {
		t.Errorf("unique name %q should keep the .pdf extension", unique)
	}

	got, info, err := fs.Fetch("alice", unique)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Fetch() content differs: got %d bytes, want %d", len(got), len(content))
	}
	if info.Size != int64(len(content)) {
		t.Errorf("Fetch() size = %d, want %d", info.Size, len(content))
	}
}

func TestSaveRecordsMetadata(t *testing.T) {
	fs := newTestStore(t)
	unique, err := fs.Save("alice", "notes.txt", []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}

	meta, ok := fs.Meta("alice", unique)
	if !ok {
		t.Fatal("Meta() entry missing after Save")
	}
	if meta.OriginalName != "notes.txt" {
		t.Errorf("OriginalName = %q, want notes.txt", meta.OriginalName)
	}
	if meta.Size != 2 {
		t.Errorf("Size = %d, want 2", meta.Size)
	}
	if _, err := time.Parse(time.RFC3339, meta.UploadDate); err != nil {
		t.Errorf("UploadDate %q not RFC3339: %v", meta.UploadDate, err)
	}
}

func TestSaveSanitizesPath(t *testing.T) {
	fs := newTestStore(t)
	unique, err := fs.Save("alice", "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}

	// The file must land inside alice's directory regardless of the
	// traversal attempt in the original name.
	if _, _, err := fs.Fetch("alice", unique); err != nil {
		t.Errorf("Fetch() after traversal-name save failed: %v", err)
	}
	meta, _ := fs.Meta("alice", unique)
	if strings.Contains(meta.OriginalName, "/") || strings.Contains(meta.OriginalName, "..") {
		t.Errorf("recorded original name %q still carries directory components", meta.OriginalName)
	}
}

func TestListIncludesSavedFile(t *testing.T) {
	fs := newTestStore(t)
	unique, err := fs.Save("alice", "x.txt", []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}

	files, err := fs.List("alice")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	var found bool
	for _, f := range files {
		if f.Name == unique {
			found = true
			if f.Size != 2 {
				t.Errorf("listed size = %d, want 2", f.Size)
			}
		}
	}
	if !found {
		t.Errorf("List() missing %q: %+v", unique, files)
	}
}

func TestFetchNotFound(t *testing.T) {
	fs := newTestStore(t)
	if _, _, err := fs.Fetch("alice", "nope.txt"); err != ErrNotFound {
		t.Errorf("Fetch(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	fs := newTestStore(t)
	unique, err := fs.Save("alice", "gone.txt", []byte("bye"))
	if err != nil {
		t.Fatal(err)
	}

	if !fs.Delete("alice", unique) {
		t.Error("Delete() of existing file returned false")
	}
	if fs.Delete("alice", unique) {
		t.Error("Delete() of already-deleted file returned true")
	}
	if fs.Delete("alice", "never-existed.txt") {
		t.Error("Delete() of unknown file returned true")
	}
}

func TestShareAndFetchShared(t *testing.T) {
	fs := newTestStore(t)
	content := []byte("shared content")
	unique, err := fs.Save("alice", "report.pdf", content)
	if err != nil {
		t.Fatal(err)
	}

	// Share by unique name works against the literal file.
	if !fs.Share("alice", unique) {
		t.Fatal("Share() by unique name failed")
	}
	// Share by original name resolves through metadata.
	if !fs.Share("alice", "report.pdf") {
		t.Fatal("Share() by original name failed")
	}

	// Legacy unprefixed lookup and full prefixed lookup both resolve to
	// the same bytes.
	byLegacy, _, err := fs.FetchShared("report.pdf")
	if err != nil {
		t.Fatalf("FetchShared(legacy) error: %v", err)
	}
	byFull, _, err := fs.FetchShared("alice-report.pdf")
	if err != nil {
		t.Fatalf("FetchShared(full) error: %v", err)
	}
	if !bytes.Equal(byLegacy, content) || !bytes.Equal(byFull, content) {
		t.Error("shared content mismatch between lookup styles")
	}
}

func TestShareMissingSource(t *testing.T) {
	fs := newTestStore(t)
	if fs.Share("alice", "missing.txt") {
		t.Error("Share() of missing file returned true")
	}
}

func TestShareIsCopyOnShare(t *testing.T) {
	fs := newTestStore(t)
	unique, err := fs.Save("alice", "doc.txt", []byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	if !fs.Share("alice", unique) {
		t.Fatal("Share() failed")
	}

	// Deleting the owner's copy must not affect the shared copy.
	if !fs.Delete("alice", unique) {
		t.Fatal("Delete() failed")
	}
	got, _, err := fs.FetchShared("alice-" + unique)
	if err != nil {
		t.Fatalf("FetchShared() after source deletion: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("shared copy content = %q", got)
	}
}

func TestFetchSharedNotFound(t *testing.T) {
	fs := newTestStore(t)
	if _, _, err := fs.FetchShared("ghost.txt"); err != ErrNotFound {
		t.Errorf("FetchShared(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListShared(t *testing.T) {
	fs := newTestStore(t)
	if _, err := fs.Save("alice", "x.txt", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if !fs.Share("alice", "x.txt") {
		t.Fatal("Share() failed")
	}

	// A legacy entry with no dash at all.
	legacy := filepath.Join(fs.sharedDir, "plainname")
	if err := os.WriteFile(legacy, []byte("old"), 0640); err != nil {
		t.Fatal(err)
	}

	shared, err := fs.ListShared()
	if err != nil {
		t.Fatalf("ListShared() error: %v", err)
	}

	byName := make(map[string]SharedInfo)
	for _, s := range shared {
		byName[s.Name] = s
	}

	entry, ok := byName["alice-x.txt"]
	if !ok {
		t.Fatalf("ListShared() missing alice-x.txt: %+v", shared)
	}
	if entry.SharedBy != "alice" || entry.OriginalName != "x.txt" {
		t.Errorf("entry = %+v, want sharedBy=alice originalName=x.txt", entry)
	}
	if entry.Size != 2 {
		t.Errorf("entry size = %d, want 2", entry.Size)
	}

	plain, ok := byName["plainname"]
	if !ok {
		t.Fatal("ListShared() missing dashless legacy entry")
	}
	if plain.SharedBy != "plainname" || plain.OriginalName != "plainname" {
		t.Errorf("dashless entry = %+v, want both fields equal to the whole name", plain)
	}
}

func TestFetchSharedSuffixCollisionDeterministic(t *testing.T) {
	fs := newTestStore(t)
	// Two different owners share files with the same suffix; sorted
	// enumeration makes "alice-" win over "bob-".
	if err := os.WriteFile(filepath.Join(fs.sharedDir, "bob-dup.txt"), []byte("from bob"), 0640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fs.sharedDir, "alice-dup.txt"), []byte("from alice"), 0640); err != nil {
		t.Fatal(err)
	}

	got, info, err := fs.FetchShared("dup.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "alice-dup.txt" {
		t.Errorf("collision resolved to %q, want alice-dup.txt", info.Name)
	}
	if string(got) != "from alice" {
		t.Errorf("content = %q", got)
	}
}

func TestFetchSharedExactBeatsSuffix(t *testing.T) {
	fs := newTestStore(t)
	// "alice-b.txt" matches "b.txt" by suffix but "b.txt" itself exists
	// as a stored name; the exact match must win.
	if err := os.WriteFile(filepath.Join(fs.sharedDir, "alice-b.txt"), []byte("prefixed"), 0640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fs.sharedDir, "b.txt"), []byte("exact"), 0640); err != nil {
		t.Fatal(err)
	}

	got, _, err := fs.FetchShared("b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "exact" {
		t.Errorf("content = %q, want the exact-name match", got)
	}
}
