// Package check holds static checks run as tests over pkg/bao.
//
// The checks load the package with golang.org/x/tools/go/packages and walk its
// syntax. They guard rules the compiler cannot: a native Result must be
// consumed where it is produced, and secrets must never be hex formatted.
//
// # Internal Use Only
//
// Nothing here is meant to be imported.
package check
