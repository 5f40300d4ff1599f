package metacache

import (
	"context"
	"testing"
)

func TestCacheHitCountsLoadOnce(t *testing.T) {
	loads := 0
	c := New(func(ctx context.Context, key int) (string, bool, error) {
		loads++
		return "value", true, nil
	})

	for i := 0; i < 3; i++ {
		v, found, err := c.Get(context.Background(), 42)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !found || v != "value" {
			t.Errorf("Get = (%q, %v), want (value, true)", v, found)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
}

func TestCacheNegativeResultCached(t *testing.T) {
	loads := 0
	c := New(func(ctx context.Context, key int) (string, bool, error) {
		loads++
		return "", false, nil
	})

	_, found, err := c.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected miss")
	}

	_, found, _ = c.Get(context.Background(), 1)
	if found {
		t.Error("expected miss on second lookup")
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1 (negative result should be cached)", loads)
	}
}

func TestCacheInvalidate(t *testing.T) {
	loads := 0
	c := New(func(ctx context.Context, key int) (string, bool, error) {
		loads++
		return "value", true, nil
	})

	c.Get(context.Background(), 7)
	c.Invalidate(7)
	c.Get(context.Background(), 7)

	if loads != 2 {
		t.Errorf("loads = %d, want 2 after invalidate", loads)
	}
}

func TestChannelTrackerMarkers(t *testing.T) {
	tr := NewChannelTracker()
	tr.SetControlChannels([]int64{851000000, 851500000})
	tr.AddCall("851000000-1000", ActiveCall{Freq: 851000000, TG: 100, Label: "Fire Dispatch", Start: 1000})

	markers := tr.Markers()
	if len(markers) != 3 {
		t.Fatalf("len(markers) = %d, want 3", len(markers))
	}

	var voiceCount, controlCount int
	for _, m := range markers {
		switch m.Type {
		case "control":
			controlCount++
		case "voice":
			voiceCount++
			if m.Label != "Fire Dispatch" {
				t.Errorf("voice marker label = %q, want Fire Dispatch", m.Label)
			}
		}
	}
	if controlCount != 2 || voiceCount != 1 {
		t.Errorf("controlCount=%d voiceCount=%d, want 2,1", controlCount, voiceCount)
	}

	tr.RemoveCall("851000000-1000")
	if len(tr.ActiveCalls()) != 0 {
		t.Error("expected no active calls after RemoveCall")
	}
}
