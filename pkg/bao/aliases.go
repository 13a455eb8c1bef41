package bao

import "github.com/stregato/bao-go/internal/bindings"

// Native is a loaded bao backend: the cgo library returned by Open or an
// in-process implementation such as mocknative.
type Native = bindings.Native

// Handle is an opaque native resource key. Zero means no resource.
type Handle = bindings.Handle

// Envelope is the raw Result struct returned by every entry point.
type Envelope = bindings.Envelope

// Arg is one argument of a native call.
type Arg = bindings.Arg
