package bindings

import (
	"errors"
	"testing"
	"unsafe"
)

func TestSignature(t *testing.T) {
	args := []Arg{Long(7), String("a"), NullString(), Int(3), Buffer(nil, 0)}
	if got := Signature(args); got != "lssid" {
		t.Fatalf("signature = %q, want lssid", got)
	}
	if got := Signature([]Arg{Long(7), String("f"), Long(1 << 40)}); got != "lsl" {
		t.Fatalf("signature = %q, want lsl", got)
	}
	if got := Signature(nil); got != "" {
		t.Fatalf("empty signature = %q", got)
	}
}

func TestCopyBytes(t *testing.T) {
	src := []byte("hello\x00world")
	got := CopyBytes(unsafe.Pointer(&src[0]), uintptr(len(src)))
	if string(got) != string(src) {
		t.Fatalf("copy = %q", got)
	}
	src[0] = 'H'
	if got[0] != 'h' {
		t.Fatalf("copy aliases source")
	}

	if CopyBytes(nil, 5) != nil {
		t.Fatalf("nil pointer must copy to nil")
	}
	if b := CopyBytes(unsafe.Pointer(&src[0]), 0); b == nil || len(b) != 0 {
		t.Fatalf("zero length copy must be empty, non-nil: %#v", b)
	}
}

func TestGoString(t *testing.T) {
	buf := []byte("bad things\x00ignored")
	if got := GoString(unsafe.Pointer(&buf[0])); got != "bad things" {
		t.Fatalf("GoString = %q", got)
	}
	if got := GoString(nil); got != "" {
		t.Fatalf("GoString(nil) = %q", got)
	}
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(Config{Path: "/nonexistent/libbao-missing.so"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrLoad) && !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("unexpected error: %v", err)
	}
}
