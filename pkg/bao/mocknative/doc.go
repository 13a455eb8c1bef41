// Package mocknative provides an in-process bao backend for tests and the
// --mock mode of the CLI.
//
// Native implements the bindings.Native interface without loading a shared
// library. Entry points are plain Go functions that lay their results out in
// memory the way the native library does: payloads and error strings are
// separate allocations that the caller must hand back through Free.
//
// # Features
//
//   - Allocation accounting: Live, Frees, DoubleFrees and ForeignFrees
//   - Handle accounting per kind: Opened, Closed and LiveHandles
//   - Scripted envelopes that bypass the entry point (Script)
//   - sqlite3 databases, bbolt backed stores and record-only vaults
//   - secp256k1/ed25519 identities compatible with the real library format
//
// # Usage
//
//	n := mocknative.New()
//	lib, err := bao.New(n, bao.Config{})
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	// Force the next Ping to fail.
//	n.Script("bao_test", mocknative.Reply{HasErr: true, Err: `{"code":"TestError","msg":"boom"}`})
//
// Only the "sqlite3" driver is accepted by bao_db_open and only the local,
// file and mem store types by bao_store_open. Vaults live in memory for the
// lifetime of the Native and write file bodies to the store as sent. They
// record access changes but enforce none, and every write completes inline.
package mocknative
