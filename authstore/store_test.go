package authstore

import "testing"

func TestRoundTrip(t *testing.T) {
	s := testStore{}
	const name = "default@realm1"
	const secret = "hunter2"

	if err := s.Put(name, []byte(secret)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := s.Get(name)
	if string(got) != secret {
		t.Fatalf("want %q got %q", secret, got)
	}
	if err := s.Delete(name); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(name); err == nil {
		t.Fatalf("expected miss after delete")
	}
}
