package bao

import (
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/stregato/bao-go/internal/bindings"
)

// Result owns the envelope returned by one native call until it is consumed.
// Consuming it releases every native buffer exactly once; a second consume
// yields no value and releases nothing. A Result is not safe for concurrent
// use.
type Result struct {
	env    Envelope
	free   func(unsafe.Pointer)
	symbol string
	err    error
}

// NewResult adopts env. free is the native deallocator for its buffers.
func NewResult(env Envelope, free func(unsafe.Pointer)) *Result {
	return &Result{env: env, free: free}
}

func failedResult(symbol string, err error) *Result {
	return &Result{symbol: symbol, err: err}
}

// Handle is the resource handle carried by the envelope, zero if none.
func (r *Result) Handle() Handle { return r.env.Hnd }

// Pending reports whether the envelope still holds native buffers.
func (r *Result) Pending() bool { return r.env.Ptr != nil || r.env.Err != nil }

func (r *Result) release(p unsafe.Pointer) {
	if p != nil && r.free != nil {
		r.free(p)
	}
}

// consume is the single place where envelope buffers are read and freed. The
// payload is released on every branch, including when the error branch wins.
func (r *Result) consume() ([]byte, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	defer func() {
		if p := r.env.Ptr; p != nil {
			r.env.Ptr, r.env.Len = nil, 0
			r.release(p)
		}
	}()

	if p := r.env.Err; p != nil {
		msg := bindings.GoString(p)
		r.env.Err = nil
		r.release(p)
		if msg != "" {
			return nil, false, DecodeError(msg)
		}
	}
	if r.env.Ptr == nil {
		return nil, false, nil
	}
	return bindings.CopyBytes(r.env.Ptr, r.env.Len), true, nil
}

// Err consumes the result, discarding any payload.
func (r *Result) Err() error {
	_, _, err := r.consume()
	return err
}

// Raw consumes the result and returns the payload bytes. A nil slice with a
// nil error means the call produced no value; an empty payload is a non-nil
// empty slice.
func (r *Result) Raw() ([]byte, error) {
	b, _, err := r.consume()
	return b, err
}

// JSON consumes the result and decodes the payload into v. It reports false
// when the call produced no value, leaving v untouched.
func (r *Result) JSON(v any) (bool, error) {
	b, ok, err := r.consume()
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrDecode, r.name(), err)
	}
	return true, nil
}

// Value consumes the result and decodes the payload into a fresh T.
func Value[T any](r *Result) (T, error) {
	var v T
	_, err := r.JSON(&v)
	return v, err
}

func (r *Result) name() string {
	if r.symbol == "" {
		return "result"
	}
	return r.symbol
}
