package xid

import "testing"

func TestNewIsUniqueAndValid(t *testing.T) {
	a := New("sess")
	b := New("sess")
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !Valid("sess", a) {
		t.Fatalf("expected %s to be valid", a)
	}
}

func TestValidRejectsForeignIDs(t *testing.T) {
	for _, s := range []string{"", "sess", "sess-", "cart-" + New("x")[2:], "sess-not-a-uuid"} {
		if Valid("sess", s) {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}
