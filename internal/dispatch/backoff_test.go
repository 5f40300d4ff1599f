package dispatch

import "testing"

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := newBackoff(1, 8)
	want := []int{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		if got := int(b.next()); got != w {
			t.Errorf("next() #%d = %d, want %d", i, got, w)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(1, 8)
	b.next()
	b.next()
	b.reset()
	if got := int(b.next()); got != 1 {
		t.Errorf("next() after reset = %d, want 1", got)
	}
}
