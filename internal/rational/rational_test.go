package rational

import "testing"

func TestReduce(t *testing.T) {
	got := New(100000, 2000)
	want := Rate{Num: 50, Den: 1}
	if got != want {
		t.Fatalf("New(100000, 2000) = %v, want %v", got, want)
	}
}

func TestEqual(t *testing.T) {
	a := Rate{Num: 30000, Den: 1001}
	b := New(60000, 2002)
	if !a.Equal(b) {
		t.Fatalf("%v and %v should be equal after reduction", a, b)
	}
}

func TestDoubled(t *testing.T) {
	r := Rate{Num: 25, Den: 1}
	d := r.Doubled()
	if d.Num != 50 || d.Den != 1 {
		t.Fatalf("Doubled() = %v, want 50/1", d)
	}
}

func TestValid(t *testing.T) {
	if (Rate{}).Valid() {
		t.Fatal("zero rate should not be valid")
	}
	if !(Rate{Num: 1, Den: 1}).Valid() {
		t.Fatal("1/1 should be valid")
	}
}
