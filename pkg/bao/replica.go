package bao

import (
	"fmt"
	"math"
	"runtime"

	"github.com/stregato/bao-go/internal/bindings"
)

// Replica is the SQL layer of a vault: statements are applied to a local
// database and replicated through the vault on Sync.
type Replica struct {
	resource
}

// OpenReplica binds vault to db. The native library has no close entry point
// for replicas; Close only forgets the handle.
func (l *Library) OpenReplica(vault *Vault, db *DB) (*Replica, error) {
	if vault == nil || db == nil {
		return nil, ErrNotOpen
	}
	vh, err := vault.handle()
	if err != nil {
		return nil, err
	}
	dh, err := db.handle()
	if err != nil {
		return nil, err
	}
	if dh > math.MaxInt32 {
		return nil, fmt.Errorf("%w: db handle %d exceeds C int", ErrInvalidArgument, dh)
	}
	h, err := l.opened(l.invoke("bao_replica_open", bindings.Long(int64(vh)), bindings.Int(int(dh))), "")
	if err != nil {
		return nil, err
	}
	r := &Replica{}
	r.init(l, h, "replica", "")
	runtime.SetFinalizer(r, func(r *Replica) { finalize(r) })
	return r, nil
}

// Close forgets the handle. It is idempotent.
func (r *Replica) Close() error {
	if r == nil {
		return nil
	}
	runtime.SetFinalizer(r, nil)
	return r.release()
}

func (r *Replica) prepare(args Args) (bindings.Arg, bindings.Arg, error) {
	h, err := r.handle()
	if err != nil {
		return bindings.Arg{}, bindings.Arg{}, err
	}
	enc, err := args.encode()
	if err != nil {
		return bindings.Arg{}, bindings.Arg{}, err
	}
	return bindings.Long(int64(h)), bindings.String(enc), nil
}

// Exec runs a statement locally and queues it for replication.
func (r *Replica) Exec(query string, args Args) error {
	h, a, err := r.prepare(args)
	if err != nil {
		return err
	}
	return r.lib.invoke("bao_replica_exec", h, bindings.String(query), a).Err()
}

// Query runs a statement and returns a cursor over its rows.
func (r *Replica) Query(query string, args Args) (*Rows, error) {
	h, a, err := r.prepare(args)
	if err != nil {
		return nil, err
	}
	rh, err := r.lib.opened(r.lib.invoke("bao_replica_query", h, bindings.String(query), a), "bao_replica_closeRows")
	if err != nil {
		return nil, err
	}
	return newRows(r.lib, rh), nil
}

// Fetch returns at most maxRows rows of query.
func (r *Replica) Fetch(query string, args Args, maxRows int) ([][]any, error) {
	h, a, err := r.prepare(args)
	if err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return Value[[][]any](r.lib.invoke("bao_replica_fetch", h, bindings.String(query), a, bindings.Int(maxRows)))
}

// FetchOne returns the first row of query, or nil when there is none.
func (r *Replica) FetchOne(query string, args Args) ([]any, error) {
	h, a, err := r.prepare(args)
	if err != nil {
		return nil, err
	}
	return Value[[]any](r.lib.invoke("bao_replica_fetchOne", h, bindings.String(query), a))
}

// Sync exchanges pending statements with the vault and returns the number of
// updates applied.
func (r *Replica) Sync() (int, error) {
	h, err := r.handle()
	if err != nil {
		return 0, err
	}
	return Value[int](r.lib.invoke("bao_replica_sync", bindings.Long(int64(h))))
}

// Cancel discards the statements executed since the last Sync.
func (r *Replica) Cancel() error {
	h, err := r.handle()
	if err != nil {
		return err
	}
	return r.lib.invoke("bao_replica_cancel", bindings.Long(int64(h))).Err()
}
