package movelog

import (
	"context"
	"strings"
	"testing"
)

func TestMemoryRecentNewestFirst(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()
	for _, mv := range []string{"e2e4", "e7e5", "g1f3"} {
		if err := m.Record(ctx, NewEntry("s1", KindDetected, mv, "white_bottom")); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	_ = m.Record(ctx, NewEntry("s2", KindEngine, "b8c6", "white_bottom"))

	got, err := m.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Move != "g1f3" || got[1].Move != "e7e5" {
		t.Fatalf("unexpected entries %+v", got)
	}
	all, _ := m.Recent(ctx, "", 0)
	if len(all) != 4 || all[0].Kind != KindEngine {
		t.Fatalf("unexpected full history %+v", all)
	}
}

func TestMemoryDropsOldest(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()
	for _, mv := range []string{"a2a3", "b2b3", "c2c3"} {
		_ = m.Record(ctx, NewEntry("s", KindDetected, mv, "white_bottom"))
	}
	got, _ := m.Recent(ctx, "s", 0)
	if len(got) != 2 || got[1].Move != "b2b3" {
		t.Fatalf("unexpected entries %+v", got)
	}
}

func TestNewEntryAssignsIdentity(t *testing.T) {
	a := NewEntry("s", KindPlayed, "e2e4", "black_bottom")
	b := NewEntry("s", KindPlayed, "e2e4", "black_bottom")
	if a.ID == b.ID || a.CreatedAt.IsZero() {
		t.Fatalf("entries must get distinct ids and a timestamp")
	}
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestOpeningNamesBookLine(t *testing.T) {
	code, title, ok := Opening([]string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4"})
	if !ok || !strings.HasPrefix(code, "C") || title == "" {
		t.Fatalf("unexpected opening %q %q %v", code, title, ok)
	}
	if _, _, ok := Opening([]string{"e2e5"}); ok {
		t.Fatalf("illegal line must not match")
	}
	if _, _, ok := Opening(nil); ok {
		t.Fatalf("empty line must not match")
	}
}

func TestDetectedMovesInPlayOrder(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()
	_ = m.Record(ctx, NewEntry("s", KindDetected, "e2e4", "white_bottom"))
	_ = m.Record(ctx, NewEntry("s", KindEngine, "e7e5", "white_bottom"))
	_ = m.Record(ctx, NewEntry("s", KindDetected, "e7e5", "white_bottom"))
	entries, _ := m.Recent(ctx, "s", 0)
	got := DetectedMoves(entries)
	if len(got) != 2 || got[0] != "e2e4" || got[1] != "e7e5" {
		t.Fatalf("unexpected moves %v", got)
	}
}
