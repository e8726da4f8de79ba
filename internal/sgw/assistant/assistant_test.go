package assistant

import "testing"

func TestWindowEntriesNoCapReturnsAll(t *testing.T) {
	entries := []Entry{{Text: "aaaa"}, {Text: "bbbb"}}
	got := windowEntries(entries, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestWindowEntriesCapsTrailingChars(t *testing.T) {
	entries := []Entry{{Text: "0123456789"}, {Text: "abcde"}, {Text: "xyz"}}
	got := windowEntries(entries, 6)
	// trailing from the end: "xyz" (3) then "abcde" (5) -> 8 > 6, stop before abcde
	if len(got) != 1 || got[0].Text != "xyz" {
		t.Fatalf("got %+v, want only the last entry", got)
	}
}

func TestManagerAppendTracksCharsAndGrowth(t *testing.T) {
	m := &Manager{conversations: make(map[string]*conversation), rooms: make(map[string]string)}
	m.Append("call-1", "200", "user", "hello")
	c := m.conversations["call-1"]
	if c.totalChars != 5 {
		t.Errorf("totalChars = %d, want 5", c.totalChars)
	}
	if len(c.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(c.entries))
	}
}

func TestManagerDropRemovesConversation(t *testing.T) {
	m := &Manager{conversations: make(map[string]*conversation), rooms: make(map[string]string)}
	m.Append("call-1", "200", "user", "hi")
	m.Drop("call-1")
	if _, ok := m.conversations["call-1"]; ok {
		t.Fatal("expected conversation to be dropped")
	}
}
