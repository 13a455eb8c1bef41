package bao

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/stregato/bao-go/internal/bindings"
)

// DefaultMaxRows bounds Fetch when the caller passes a non-positive limit.
const DefaultMaxRows = 100000

// Args are the named parameters of a SQL statement, bound as :name.
type Args map[string]any

func (a Args) encode() (string, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("%w: args: %v", ErrInvalidArgument, err)
	}
	return string(b), nil
}

// DB is an open native database connection.
type DB struct {
	resource
}

func newDB(lib *Library, h Handle) *DB {
	d := &DB{}
	d.init(lib, h, "db", "bao_db_close")
	runtime.SetFinalizer(d, func(d *DB) { finalize(d) })
	return d
}

// opened consumes the result of an open call and returns its handle. A handle
// that comes back alongside an error is closed with closeSymbol.
func (l *Library) opened(r *Result, closeSymbol string) (Handle, error) {
	h := r.Handle()
	if err := r.Err(); err != nil {
		l.discard(h, closeSymbol)
		return 0, err
	}
	if h == 0 {
		return 0, fmt.Errorf("%w: %s returned no handle", ErrDecode, r.name())
	}
	return h, nil
}

// OpenDB opens a database through the native SQL layer. ddl is executed once
// the connection is up; it may be empty.
func (l *Library) OpenDB(driver, dsn, ddl string) (*DB, error) {
	h, err := l.opened(l.invoke("bao_db_open", bindings.String(driver), bindings.String(dsn), bindings.String(ddl)), "bao_db_close")
	if err != nil {
		return nil, err
	}
	return newDB(l, h), nil
}

// DefaultDBPath is the sqlite3 file used by DefaultDB.
func DefaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bao", "bao.db"), nil
}

// DefaultDB opens the sqlite3 database at DefaultDBPath, creating its parent
// directory when needed.
func (l *Library) DefaultDB() (*DB, error) {
	path, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return l.OpenDB("sqlite3", path, "")
}

// Close releases the connection. It is idempotent.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	runtime.SetFinalizer(d, nil)
	return d.release()
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(query string, args Args) error {
	h, enc, err := d.prepare(args)
	if err != nil {
		return err
	}
	return d.lib.invoke("bao_db_exec", bindings.Long(int64(h)), bindings.String(query), bindings.String(enc)).Err()
}

// Query runs a statement and returns a cursor over its rows. The cursor owns
// its own handle and must be closed independently of d.
func (d *DB) Query(query string, args Args) (*Rows, error) {
	h, enc, err := d.prepare(args)
	if err != nil {
		return nil, err
	}
	rh, err := d.lib.opened(d.lib.invoke("bao_db_query", bindings.Long(int64(h)), bindings.String(query), bindings.String(enc)), "bao_replica_closeRows")
	if err != nil {
		return nil, err
	}
	return newRows(d.lib, rh), nil
}

// Fetch returns at most maxRows rows of query.
func (d *DB) Fetch(query string, args Args, maxRows int) ([][]any, error) {
	h, enc, err := d.prepare(args)
	if err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return Value[[][]any](d.lib.invoke("bao_db_fetch", bindings.Long(int64(h)), bindings.String(query), bindings.String(enc), bindings.Int(maxRows)))
}

// FetchOne returns the first row of query, or nil when there is none.
func (d *DB) FetchOne(query string, args Args) ([]any, error) {
	h, enc, err := d.prepare(args)
	if err != nil {
		return nil, err
	}
	return Value[[]any](d.lib.invoke("bao_db_fetch_one", bindings.Long(int64(h)), bindings.String(query), bindings.String(enc)))
}

func (d *DB) prepare(args Args) (Handle, string, error) {
	h, err := d.handle()
	if err != nil {
		return 0, "", err
	}
	enc, err := args.encode()
	if err != nil {
		return 0, "", err
	}
	return h, enc, nil
}
