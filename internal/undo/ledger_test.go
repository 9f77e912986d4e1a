package undo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func entry(token string, appliedRev int, appliedHash string) Entry {
	return Entry{
		Token:             token,
		TimelineStateJSON: `{"version":1}`,
		Prompt:            "split",
		Lineage: Lineage{
			ProjectID:           "p1",
			BaseRevision:        appliedRev - 1,
			BaseTimelineHash:    "base",
			AppliedRevision:     appliedRev,
			AppliedTimelineHash: appliedHash,
		},
	}
}

func TestLedger_ConsumeWithLineage(t *testing.T) {
	tests := []struct {
		name          string
		rev           int
		hash          string
		requireLatest bool
		wantErr       error
	}{
		{name: "exact match", rev: 2, hash: "h2", requireLatest: true},
		{name: "revision moved", rev: 3, hash: "h2", requireLatest: true, wantErr: ErrLineageMismatch},
		{name: "hash differs", rev: 2, hash: "other", requireLatest: true, wantErr: ErrLineageMismatch},
		{name: "lineage not required", rev: 9, hash: "zzz", requireLatest: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLedger(0)
			l.Push(entry("tok", 2, "h2"))

			got, err := l.ConsumeWithLineage("tok", tc.rev, tc.hash, tc.requireLatest)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				var mm *LineageMismatchError
				if !errors.As(err, &mm) || mm.ExpectedRevision != 2 || mm.CurrentRevision != tc.rev {
					t.Fatalf("error = %#v", err)
				}
				if len(l.Entries) != 1 {
					t.Fatal("entry consumed despite mismatch")
				}
				return
			}
			if err != nil {
				t.Fatalf("ConsumeWithLineage() error = %v", err)
			}
			if got.Token != "tok" || len(l.Entries) != 0 {
				t.Fatalf("got %+v, remaining %d", got, len(l.Entries))
			}
		})
	}
}

func TestLedger_UnknownToken(t *testing.T) {
	l := NewLedger(0)
	l.Push(entry("tok", 2, "h2"))
	if _, err := l.ConsumeWithLineage("nope", 2, "h2", true); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("error = %v, want ErrTokenNotFound", err)
	}
	if _, err := l.ConsumeWithLineage("tok", 2, "h2", true); err != nil {
		t.Fatalf("first consume error = %v", err)
	}
	if _, err := l.ConsumeWithLineage("tok", 2, "h2", true); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("second consume error = %v, want ErrTokenNotFound", err)
	}
}

func TestLedger_BoundedWindow(t *testing.T) {
	l := NewLedger(3)
	for i := 1; i <= 5; i++ {
		l.Push(entry(fmt.Sprintf("t%d", i), i, "h"))
	}
	if len(l.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(l.Entries))
	}
	if l.Entries[0].Token != "t3" {
		t.Errorf("oldest = %s, want t3", l.Entries[0].Token)
	}
	if latest, _ := l.Latest(); latest.Token != "t5" {
		t.Errorf("latest = %s, want t5", latest.Token)
	}

	var zero Ledger
	for i := 0; i < DefaultLimit+5; i++ {
		zero.Push(entry(fmt.Sprintf("z%d", i), i, "h"))
	}
	if len(zero.Entries) != DefaultLimit {
		t.Errorf("zero ledger entries = %d, want %d", len(zero.Entries), DefaultLimit)
	}
}

func TestNewToken(t *testing.T) {
	a, b := NewToken(), NewToken()
	if !strings.HasPrefix(a, "undo_") || a == b {
		t.Fatalf("tokens = %q, %q", a, b)
	}
}

// storeContract runs the same lineage checks against any Store.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	if err := store.Push(ctx, "p1", entry("a", 2, "h2")); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := store.Push(ctx, "p1", entry("b", 3, "h3")); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := store.Push(ctx, "p2", entry("c", 2, "x")); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if _, err := store.Consume(ctx, "p1", "a", 3, "h3", true); !errors.Is(err, ErrLineageMismatch) {
		t.Fatalf("stale consume error = %v, want ErrLineageMismatch", err)
	}
	entries, err := store.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries after mismatch = %d, want 2", len(entries))
	}

	got, err := store.Consume(ctx, "p1", "b", 3, "h3", true)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got.Token != "b" || got.Lineage.ProjectID != "p1" {
		t.Fatalf("consumed = %+v", got)
	}
	if _, err := store.Consume(ctx, "p1", "c", 2, "x", false); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("cross-project consume error = %v, want ErrTokenNotFound", err)
	}

	for i := 0; i < 5; i++ {
		_ = store.Push(ctx, "p3", entry(fmt.Sprintf("w%d", i), i, "h"))
	}
	entries, _ = store.List(ctx, "p3")
	if len(entries) != 3 || entries[0].Token != "w2" {
		t.Fatalf("windowed entries = %+v", entries)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(3))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), 3)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	storeContract(t, store)

	if !mr.Exists("undo:p1") {
		t.Error("expected ledger key undo:p1")
	}
}

func TestNewRedisStore_BadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", 3); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
