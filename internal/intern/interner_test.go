package intern

import (
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInternDeduplicates(t *testing.T) {
	ns := NewNamespace[DirTag]()

	a := ns.Intern("/usr/include")
	b := ns.Intern("/usr/include")

	if !a.Equal(b) {
		t.Fatalf("expected interning the same text twice to return identical handles")
	}
	if a.Text() != "/usr/include" {
		t.Fatalf("got text %q", a.Text())
	}
}

func TestInternDistinctTexts(t *testing.T) {
	ns := NewNamespace[HeaderNameTag]()

	a := ns.Intern("a.h")
	b := ns.Intern("b.h")

	if a.Equal(b) {
		t.Fatalf("distinct text must not produce equal handles")
	}
}

func TestReleaseThenReinternSameText(t *testing.T) {
	ns := NewNamespace[MacroNameTag]()

	h := ns.Intern("FOO")
	ns.Release(h)

	h2 := ns.Intern("FOO")
	if h2.Text() != "FOO" {
		t.Fatalf("got %q", h2.Text())
	}
}

func TestSweepRemovesOnlyFullyDeadEntries(t *testing.T) {
	ns := NewNamespace[MacroNameTag]()

	live := ns.Intern("LIVE")
	dead := ns.Intern("DEAD")
	ns.Release(dead)

	ns.Sweep() // DEAD died in the current generation: kept, generation advances
	ns.Sweep() // DEAD has now been dead a full generation; it is removed

	if ns.Len() != 1 {
		t.Fatalf("expected only the live entry to remain, got %d entries", ns.Len())
	}
	_ = live
}

func TestConcurrentInternConverges(t *testing.T) {
	ns := NewNamespace[DirTag]()
	const goroutines = 64

	var wg sync.WaitGroup
	handles := make([]Dir, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			handles[i] = ns.Intern("/shared/path")
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if !handles[0].Equal(handles[i]) {
			t.Fatalf("concurrent interning of identical text produced divergent handles")
		}
	}
}

func TestUndefinedSentinelIsDistinguished(t *testing.T) {
	reg := NewRegistry()
	if !reg.IsUndefined(reg.Undefined()) {
		t.Fatalf("Registry.Undefined() must satisfy IsUndefined")
	}
	other := reg.MacroValues.Intern(" 1")
	if reg.IsUndefined(other) {
		t.Fatalf("a real macro value must not compare equal to the undefined sentinel")
	}
}
