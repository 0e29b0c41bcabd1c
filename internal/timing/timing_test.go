package timing

import (
	"testing"

	"github.com/mlefebvre1/mxl/internal/rational"
)

func TestRoundTrip(t *testing.T) {
	rates := []rational.Rate{
		{Num: 60000, Den: 1001},
		{Num: 48000, Den: 1},
		{Num: 25, Den: 1},
		{Num: 96000, Den: 1},
	}

	// Index 0 is excluded: it maps to timestamp 0, which TimestampToIndex
	// reserves for UndefinedIndex (see TestUndefinedIndex).
	for _, r := range rates {
		for i := uint64(1); i < 5000; i += 37 {
			ts := IndexToTimestamp(r, i)
			got := TimestampToIndex(r, ts)
			if got != i {
				t.Fatalf("rate %v: round trip for index %d produced %d (ts=%d)", r, i, got, ts)
			}
		}
	}
}

func TestUndefinedIndex(t *testing.T) {
	r := rational.Rate{Num: 60000, Den: 1001}
	if got := TimestampToIndex(r, 0); got != UndefinedIndex {
		t.Fatalf("TimestampToIndex(r, 0) = %d, want UndefinedIndex", got)
	}
	if got := TimestampToIndex(rational.Rate{}, 12345); got != UndefinedIndex {
		t.Fatalf("TimestampToIndex with invalid rate = %d, want UndefinedIndex", got)
	}
}

func TestNsUntilIndexNonNegative(t *testing.T) {
	r := rational.Rate{Num: 30, Den: 1}
	past := CurrentIndex(r) - 10
	if got := NsUntilIndex(past, r); got != 0 {
		t.Fatalf("NsUntilIndex for a past index = %d, want 0", got)
	}
}

func TestCountInDuration(t *testing.T) {
	r := rational.Rate{Num: 60000, Den: 1001}
	if got := CountInDuration(r, 1_000_000_000); got != 60 {
		t.Fatalf("CountInDuration(60000/1001, 1s) = %d, want 60 (rounds up from 59.94)", got)
	}
	if got := CountInDuration(rational.Rate{Num: 48000, Den: 1}, 1_000_000_000); got != 48000 {
		t.Fatalf("CountInDuration(48000/1, 1s) = %d, want 48000", got)
	}
}
