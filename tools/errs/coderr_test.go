package errs

import (
	"strings"
	"testing"
)

func TestCodeErrorIs(t *testing.T) {
	err := ErrDuplicate.WithDetail("username bob")
	if !ErrDuplicate.Is(err) {
		t.Fatal("detail copy must match the base code")
	}
	if ErrRecordNotFound.Is(err) {
		t.Fatal("different codes must not match")
	}
	if ErrDuplicate.Is(nil) {
		t.Fatal("nil never matches")
	}
}

func TestWithDetailAccumulates(t *testing.T) {
	err := ErrStorage.WithDetail("first").WithDetail("second")
	msg := err.Error()
	if !strings.Contains(msg, "first") || !strings.Contains(msg, "second") {
		t.Fatalf("details lost: %s", msg)
	}
	if ErrStorage.Detail != "" {
		t.Fatal("WithDetail must not mutate the sentinel")
	}
}

func TestWrapMsgKeyValues(t *testing.T) {
	base := New("boom")
	err := WrapMsg(base, "insert failed", "collection", "users", "retries", 3)
	msg := err.Error()
	for _, want := range []string{"insert failed", "collection=users", "retries=3"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
	if WrapMsg(nil, "whatever") != nil {
		t.Fatal("wrapping nil must stay nil")
	}
}
