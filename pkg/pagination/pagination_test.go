package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTripKeepsNanoseconds(t *testing.T) {
	want := Cursor{
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.FixedZone("WAT", 3600)),
		ID:        uuid.New(),
	}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got.CreatedAt.Location())
	}
}

func TestParseCursorBlankAndMalformed(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be first page, got %v %v", c, err)
	}
	for _, token := range []string{"%%%", "bm8tZG90", "enoueA", "MTIzLm5vdC1hLXV1aWQ"} {
		if _, err := ParseCursor(token); err != errMalformed {
			t.Fatalf("%q: expected malformed, got %v", token, err)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-3: DefaultLimit, 0: DefaultLimit, 7: 7, MaxLimit: MaxLimit, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(0) != DefaultLimit+1 {
		t.Fatalf("buffer should add one row")
	}
}

type row struct {
	at time.Time
	id uuid.UUID
}

func TestPageTrimsAndReturnsLastKept(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{base.Add(3), uuid.New()}, {base.Add(2), uuid.New()}, {base.Add(1), uuid.New()}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Page(rows, 2, key)
	if len(page) != 2 || next == nil {
		t.Fatalf("expected 2 rows and a cursor, got %d %v", len(page), next)
	}
	if next.ID != rows[1].id {
		t.Fatalf("cursor should point at the last kept row")
	}

	page, next = Page(rows[:2], 2, key)
	if len(page) != 2 || next != nil {
		t.Fatalf("exact page should have no cursor")
	}
}
