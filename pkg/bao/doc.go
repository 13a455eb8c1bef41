// Package bao is the Go binding for the bao native library: encrypted vaults,
// storage backends, a replicated SQL layer and mailboxes.
//
// Every native entry point returns a Result struct carrying a payload, a
// resource handle or an error. The package consumes each Result exactly once,
// releasing its native buffers on every path, and turns it into a typed value,
// a live wrapper or a *WrappedError.
//
// # Loading
//
//	lib, err := bao.Open(bao.Config{LibraryPath: "/usr/local/lib/libbao.so"})
//	if errors.Is(err, bao.ErrNotBuilt) {
//	    // binary compiled without cgo
//	}
//	defer lib.Close()
//
// New wraps any Native backend; mocknative provides an in-process one for
// tests.
//
// # Handles
//
// DB, Rows, Store, Vault and Replica each own one native handle. Close is
// idempotent and a finalizer closes forgotten wrappers, but explicit Close is
// expected:
//
//	db, err := lib.OpenDB("sqlite3", path, "")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// Any call on a closed wrapper fails with ErrNotOpen without reaching the
// library.
//
// # Errors
//
// Native failures are *WrappedError chains. Each node has a code, a message
// and a source location; HasCode tests the chain:
//
//	if bao.HasCode(err, bao.AccessDenied, bao.AuthError) {
//	    // ...
//	}
//
// A payload that cannot be decoded wraps ErrDecode and is never a
// *WrappedError.
//
// # Binary data
//
// Byte arguments cross the boundary as Data buffers: an owned copy that is
// zeroed as soon as the call returns.
package bao
