package bao

import (
	"errors"
	"runtime"

	"github.com/stregato/bao-go/internal/bindings"
)

// Rows is a native cursor returned by DB.Query or Replica.Query.
type Rows struct {
	resource
}

func newRows(lib *Library, h Handle) *Rows {
	r := &Rows{}
	r.init(lib, h, "rows", "bao_replica_closeRows")
	runtime.SetFinalizer(r, func(r *Rows) { finalize(r) })
	return r
}

// Next advances the cursor and reports whether a row is available.
func (r *Rows) Next() (bool, error) {
	h, err := r.handle()
	if err != nil {
		return false, err
	}
	return Value[bool](r.lib.invoke("bao_replica_next", bindings.Long(int64(h))))
}

// Current returns the row the cursor is positioned on.
func (r *Rows) Current() ([]any, error) {
	h, err := r.handle()
	if err != nil {
		return nil, err
	}
	return Value[[]any](r.lib.invoke("bao_replica_current", bindings.Long(int64(h))))
}

// All drains the cursor and closes it.
func (r *Rows) All() (rows [][]any, err error) {
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	for {
		ok, err := r.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		row, err := r.Current()
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// Close releases the cursor. It is idempotent.
func (r *Rows) Close() error {
	if r == nil {
		return nil
	}
	runtime.SetFinalizer(r, nil)
	return r.release()
}
