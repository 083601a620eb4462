package sequencer

import "testing"

func TestNoteOnCacheSetClear(t *testing.T) {
	c := NewNoteOnCache()

	if notes := c.SoundingOn(3); len(notes) != 0 {
		t.Fatalf("expected empty cache, got %v", notes)
	}

	c.Set(60, 3)
	c.Set(64, 3)
	c.Set(60, 4)

	notes := c.SoundingOn(3)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes on channel 3, got %v", notes)
	}

	c.Clear(60, 3)
	notes = c.SoundingOn(3)
	if len(notes) != 1 || notes[0] != 64 {
		t.Fatalf("expected only note 64 remaining on channel 3, got %v", notes)
	}

	// channel 4 unaffected
	notes = c.SoundingOn(4)
	if len(notes) != 1 || notes[0] != 60 {
		t.Fatalf("expected note 60 on channel 4 untouched, got %v", notes)
	}
}

func TestNoteOnCacheSetIdempotent(t *testing.T) {
	c := NewNoteOnCache()
	c.Set(10, 0)
	c.Set(10, 0)
	if notes := c.SoundingOn(0); len(notes) != 1 {
		t.Fatalf("Set should be idempotent, got %v", notes)
	}

	c.Clear(10, 0)
	c.Clear(10, 0)
	if notes := c.SoundingOn(0); len(notes) != 0 {
		t.Fatalf("Clear should be idempotent, got %v", notes)
	}
}

func TestNoteOnCacheTestAndClearNotIdempotent(t *testing.T) {
	c := NewNoteOnCache()
	c.Set(40, 1)

	if !c.TestAndClear(40, 1) {
		t.Fatal("expected first TestAndClear to report previously-set")
	}
	if c.TestAndClear(40, 1) {
		t.Fatal("expected second TestAndClear to report cleared")
	}
}

func TestNoteOnCacheClearAll(t *testing.T) {
	c := NewNoteOnCache()
	for ch := 0; ch < 16; ch++ {
		c.Set(ch, ch)
	}
	c.ClearAll()
	for ch := 0; ch < 16; ch++ {
		if notes := c.SoundingOn(ch); len(notes) != 0 {
			t.Fatalf("expected channel %d empty after ClearAll, got %v", ch, notes)
		}
	}
}

func TestNoteOnCacheClampsOutOfRange(t *testing.T) {
	c := NewNoteOnCache()
	// note/channel values beyond the valid range should not panic or
	// corrupt unrelated entries; they clamp into range via mask.
	c.Set(200, 20)
	notes := c.SoundingOn(20 & 0x0F)
	if len(notes) != 1 || notes[0] != 200&0x7F {
		t.Fatalf("expected clamped note/channel, got %v", notes)
	}
}
