package content

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestGetOrCreateReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.h", []byte("hello"))

	c := New()
	e, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if string(e.Bytes) != "hello" {
		t.Fatalf("got %q", e.Bytes)
	}
}

func TestGetOrCreateCachesUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.h", []byte("hello"))

	c := New()
	first, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical Entry pointer for an unchanged file")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("got hits=%d misses=%d, want hits=1 misses=1", hits, misses)
	}
}

func TestGetOrCreateReReadsOnModTimeChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.h", []byte("v1"))

	c := New()
	var evicted *Entry
	c.Subscribe(func(old *Entry) { evicted = old })

	first, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	second, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if string(second.Bytes) != "v2" {
		t.Fatalf("got %q, want v2", second.Bytes)
	}
	if evicted != first {
		t.Fatalf("expected eviction notification carrying the stale entry")
	}
}

func TestConcurrentGetOrCreateCollapsesToOneRead(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.h", []byte("shared"))

	c := New()
	const goroutines = 32
	entries := make([]*Entry, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			e, err := c.GetOrCreate(path)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			entries[i] = e
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if entries[i] != entries[0] {
			t.Fatalf("expected every concurrent caller to observe the same Entry")
		}
	}
}

func TestClearNotifiesSubscribersForEveryEntry(t *testing.T) {
	dir := t.TempDir()
	pathA := writeTemp(t, dir, "a.h", []byte("a"))
	pathB := writeTemp(t, dir, "b.h", []byte("b"))

	c := New()
	if _, err := c.GetOrCreate(pathA); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := c.GetOrCreate(pathB); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	var notified int64
	c.Subscribe(func(*Entry) { atomic.AddInt64(&notified, 1) })

	c.Clear()

	if got := atomic.LoadInt64(&notified); got != 2 {
		t.Fatalf("got %d eviction notifications, want 2", got)
	}
}

func TestGetOrCreateMissingFileReturnsReadError(t *testing.T) {
	c := New()
	_, err := c.GetOrCreate(filepath.Join(t.TempDir(), "missing.h"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	var rerr *ReadError
	if !asReadError(err, &rerr) {
		t.Fatalf("expected a *ReadError, got %T: %v", err, err)
	}
}

func asReadError(err error, target **ReadError) bool {
	if re, ok := err.(*ReadError); ok {
		*target = re
		return true
	}
	return false
}

// TestChecksumOfEmptyInputIsOne pins spec §8's Adler-32 determinism
// property: Adler-32's running sums start at (1, 0), so an empty input
// always checksums to 1, regardless of platform or Go version.
func TestChecksumOfEmptyInputIsOne(t *testing.T) {
	if got := checksum(nil); got != 1 {
		t.Fatalf("checksum(nil) = %d, want 1", got)
	}

	dir := t.TempDir()
	path := writeTemp(t, dir, "empty.h", nil)
	c := New()
	e, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if e.Checksum != 1 {
		t.Fatalf("Entry.Checksum for an empty file = %d, want 1", e.Checksum)
	}
}

// TestGetOrCreateNormalizesUTF16LEBOMToUTF8 pins spec §8's encoding
// normalization property: a file beginning with the UTF-16LE BOM is
// transcoded to UTF-8 before being cached, so every later reader sees
// plain UTF-8 bytes regardless of how the source file was saved.
func TestGetOrCreateNormalizesUTF16LEBOMToUTF8(t *testing.T) {
	dir := t.TempDir()
	data := utf16LEBytes("Hello")
	path := writeTemp(t, dir, "utf16le.h", data)

	c := New()
	e, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if string(e.Bytes) != "Hello" {
		t.Fatalf("got %q, want UTF-8 %q", e.Bytes, "Hello")
	}
}

// TestGetOrCreateNormalizesUTF16BEBOMToUTF8 is the big-endian
// counterpart of the above.
func TestGetOrCreateNormalizesUTF16BEBOMToUTF8(t *testing.T) {
	dir := t.TempDir()
	data := utf16BEBytes("World")
	path := writeTemp(t, dir, "utf16be.h", data)

	c := New()
	e, err := c.GetOrCreate(path)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if string(e.Bytes) != "World" {
		t.Fatalf("got %q, want UTF-8 %q", e.Bytes, "World")
	}
}

func utf16LEBytes(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func utf16BEBytes(s string) []byte {
	out := []byte{0xFE, 0xFF}
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}
