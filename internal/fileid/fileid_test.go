package fileid

import "testing"

func TestContentID(t *testing.T) {
	id1 := ContentID([]byte("%PDF-1.4 one"))
	id2 := ContentID([]byte("%PDF-1.4 one"))
	if id1 != id2 {
		t.Errorf("same content should give same ID: %q vs %q", id1, id2)
	}
	if id1[:len(prefix)] != prefix {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+32 {
		t.Errorf("ID length = %d", len(id1))
	}
}

func TestContentID_differentContent(t *testing.T) {
	id1 := ContentID([]byte("%PDF-1.4 one"))
	id2 := ContentID([]byte("%PDF-1.4 two"))
	if id1 == id2 {
		t.Errorf("different content should give different IDs: %q", id1)
	}
}

func TestContentID_empty(t *testing.T) {
	id := ContentID(nil)
	if id != ContentID([]byte{}) || len(id) != len(prefix)+2*idBytes {
		t.Errorf("ContentID(nil) = %q", id)
	}
}
