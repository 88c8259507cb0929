package convmap

import (
	"sync"
	"testing"
)

func TestRecord_DoesNotOverwrite(t *testing.T) {
	tbl := NewTable()

	tbl.Record("u1", "c1", "up-1")
	tbl.Record("u1", "c1", "up-2") // mid-stream, must not overwrite

	if got, ok := tbl.Lookup("u1", "c1"); !ok || got != "up-1" {
		t.Errorf("got %q %v, want up-1", got, ok)
	}
}

func TestRecord_IgnoresEmptyID(t *testing.T) {
	tbl := NewTable()
	tbl.Record("u1", "c1", "")
	if _, ok := tbl.Lookup("u1", "c1"); ok {
		t.Error("empty upstream id must not create a mapping")
	}
}

func TestConfirm_Overwrites(t *testing.T) {
	tbl := NewTable()

	tbl.Record("u1", "c1", "up-1")
	tbl.Confirm("u1", "c1", "up-final")

	if got, _ := tbl.Lookup("u1", "c1"); got != "up-final" {
		t.Errorf("got %q, want up-final", got)
	}
}

func TestInvalidate(t *testing.T) {
	tbl := NewTable()

	tbl.Record("u1", "c1", "up-1")
	tbl.Invalidate("u1", "c1")

	if _, ok := tbl.Lookup("u1", "c1"); ok {
		t.Error("mapping should be gone after invalidation")
	}

	// Invalidating an absent key is a no-op.
	tbl.Invalidate("u1", "c1")
}

func TestKeysAreScopedPerUserAndConversation(t *testing.T) {
	tbl := NewTable()

	tbl.Record("u1", "c1", "up-a")
	tbl.Record("u2", "c1", "up-b")
	tbl.Record("u1", "c2", "up-c")

	cases := []struct {
		user, conv, want string
	}{
		{"u1", "c1", "up-a"},
		{"u2", "c1", "up-b"},
		{"u1", "c2", "up-c"},
	}
	for _, c := range cases {
		if got, _ := tbl.Lookup(c.user, c.conv); got != c.want {
			t.Errorf("(%s,%s): got %q, want %q", c.user, c.conv, got, c.want)
		}
	}
	if tbl.Len() != 3 {
		t.Errorf("got %d entries, want 3", tbl.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	tbl := NewTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tbl.Record("u1", "c1", "up-1")
				tbl.Lookup("u1", "c1")
				tbl.Confirm("u1", "c1", "up-1")
				tbl.Invalidate("u1", "c1")
			}
		}()
	}
	wg.Wait()
}
