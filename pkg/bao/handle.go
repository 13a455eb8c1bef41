package bao

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/stregato/bao-go/internal/bindings"
)

// resource is the handle slot shared by every wrapper. The slot is swapped to
// zero before the native close runs, so explicit and finalizer closes can race
// and at most one of them reaches the library.
type resource struct {
	h        atomic.Uint64
	lib      *Library
	kind     string
	closeSym string
}

func (r *resource) init(lib *Library, h Handle, kind, closeSymbol string) {
	r.lib = lib
	r.kind = kind
	r.closeSym = closeSymbol
	r.h.Store(uint64(h))
}

// handle returns the live handle or ErrNotOpen without touching the library.
func (r *resource) handle() (Handle, error) {
	h := r.h.Load()
	if h == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, r.kind)
	}
	return Handle(h), nil
}

// IsOpen reports whether the wrapper still owns a handle.
func (r *resource) IsOpen() bool { return r.h.Load() != 0 }

// Handle is the raw native handle, zero once closed.
func (r *resource) Handle() Handle { return Handle(r.h.Load()) }

func (r *resource) take() Handle { return Handle(r.h.Swap(0)) }

// release closes the handle once. Later calls are no-ops returning nil. A
// failed native close still leaves the slot zeroed.
func (r *resource) release() error {
	h := r.take()
	if h == 0 || r.closeSym == "" {
		return nil
	}
	return r.lib.invoke(r.closeSym, bindings.Long(int64(h))).Err()
}

// discard closes a handle no wrapper will own. Failures are logged only.
func (l *Library) discard(h Handle, closeSymbol string) {
	if h == 0 {
		return
	}
	if closeSymbol == "" {
		l.log.Warn(context.Background(), "dropping handle without close symbol", "handle", uint64(h))
		return
	}
	if err := l.invoke(closeSymbol, bindings.Long(int64(h))).Err(); err != nil {
		l.log.Warn(context.Background(), "cannot close discarded handle", "symbol", closeSymbol, "handle", uint64(h), "error", err)
	}
}

// finalize is the finalizer body: it must never let a panic escape.
func finalize(c interface{ Close() error }) {
	defer func() { _ = recover() }()
	_ = c.Close()
}
