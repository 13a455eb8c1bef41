//go:build !cgo || windows

package bindings

import "unsafe"

// Stub implementations for non-CGO builds or Windows.
// These allow the package to compile but return ErrNotBuilt when called.

type Library struct{}

func Open(Config) (*Library, error) {
	return nil, ErrNotBuilt
}

func (*Library) Call(string, ...Arg) (Envelope, error) {
	return Envelope{}, ErrNotBuilt
}

func (*Library) Free(unsafe.Pointer) {}

func (*Library) Close() error { return nil }

func ResultSize() uintptr { return 0 }
func DataSize() uintptr   { return 0 }
