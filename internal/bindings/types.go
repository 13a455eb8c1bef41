package bindings

import (
	"errors"
	"unsafe"
)

// Config captures the parameters required to load the native bao library.
type Config struct {
	// Path is the location of the shared object passed to dlopen. An empty
	// path falls back to DefaultLibrary.
	Path string
}

// DefaultLibrary is the soname searched by the dynamic loader when Config.Path
// is empty.
const DefaultLibrary = "libbao.so"

// Handle is the opaque 64-bit resource key issued by the native library. Zero
// is reserved for "no resource".
type Handle uint64

// Envelope is the Go mirror of the C Result struct. Ptr and Err point into
// native-allocated memory and must be handed back to Native.Free exactly once.
type Envelope struct {
	Ptr unsafe.Pointer
	Len uintptr
	Hnd Handle
	Err unsafe.Pointer
}

// ArgKind is the one-letter code of an argument in a native signature.
type ArgKind byte

const (
	KindString ArgKind = 's'
	KindInt    ArgKind = 'i'
	KindLong   ArgKind = 'l'
	KindData   ArgKind = 'd'
)

// Arg is a single argument to a native entry point.
type Arg struct {
	Kind ArgKind
	Str  string
	Null bool
	Int  int64
	Ptr  unsafe.Pointer
	Len  uintptr
}

// String encodes s as a nul-terminated char*.
func String(s string) Arg { return Arg{Kind: KindString, Str: s} }

// NullString encodes a NULL char*.
func NullString() Arg { return Arg{Kind: KindString, Null: true} }

// Int encodes a C int.
func Int(v int) Arg { return Arg{Kind: KindInt, Int: int64(v)} }

// Long encodes a C long long.
func Long(v int64) Arg { return Arg{Kind: KindLong, Int: v} }

// Buffer encodes a Data descriptor over caller-owned memory. The memory must
// stay valid and unmodified for the duration of the call.
func Buffer(p unsafe.Pointer, n uintptr) Arg { return Arg{Kind: KindData, Ptr: p, Len: n} }

// Signature returns the argument kinds of args as a string, e.g. "lssi".
func Signature(args []Arg) string {
	b := make([]byte, len(args))
	for i, a := range args {
		b[i] = byte(a.Kind)
	}
	return string(b)
}

// Native is a loaded bao library able to dispatch entry points by name.
type Native interface {
	Call(symbol string, args ...Arg) (Envelope, error)
	Free(p unsafe.Pointer)
	Close() error
}

var (
	// ErrNotBuilt reports that the cgo backend was not compiled into the
	// current binary.
	ErrNotBuilt = errors.New("bao/internal/bindings: native bindings not built")

	// ErrLoad reports a dlopen failure.
	ErrLoad = errors.New("bao/internal/bindings: cannot load library")

	// ErrSymbolNotFound reports an entry point missing from the loaded library.
	ErrSymbolNotFound = errors.New("bao/internal/bindings: symbol not found")

	// ErrSignature reports an argument list with no matching trampoline.
	ErrSignature = errors.New("bao/internal/bindings: unsupported signature")

	// ErrClosed reports a call on a library that has been closed.
	ErrClosed = errors.New("bao/internal/bindings: library closed")
)
