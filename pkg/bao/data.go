package bao

import (
	"errors"
	"runtime"
	"unsafe"

	"github.com/stregato/bao-go/internal/bindings"
)

// ErrDataReleased is returned when a Data buffer is used after Release.
var ErrDataReleased = errors.New("bao: data buffer released")

// Data is an owned copy of a byte sequence laid out for one native call. The
// native side copies what it needs, so the buffer is released as soon as the
// call returns. After Release the buffer is zeroed and every accessor fails.
type Data struct {
	buf []byte
	n   int
}

// NewData copies b. An empty b still yields a valid, non-nil pointer.
func NewData(b []byte) *Data {
	buf := make([]byte, max(len(b), 1))
	copy(buf, b)
	return &Data{buf: buf, n: len(b)}
}

// Len is the exact length of the copied sequence.
func (d *Data) Len() (int, error) {
	if d.buf == nil {
		return 0, ErrDataReleased
	}
	return d.n, nil
}

// Ptr is the address of the first byte of the copy.
func (d *Data) Ptr() (unsafe.Pointer, error) {
	if d.buf == nil {
		return nil, ErrDataReleased
	}
	return unsafe.Pointer(&d.buf[0]), nil
}

// Bytes returns a view of the copy; it is invalidated by Release.
func (d *Data) Bytes() ([]byte, error) {
	if d.buf == nil {
		return nil, ErrDataReleased
	}
	return d.buf[:d.n], nil
}

// Release zeroes the copy and poisons the descriptor. It is idempotent.
func (d *Data) Release() {
	if d == nil || d.buf == nil {
		return
	}
	zeroize(d.buf)
	d.buf = nil
	d.n = 0
}

func (d *Data) arg() (bindings.Arg, error) {
	p, err := d.Ptr()
	if err != nil {
		return bindings.Arg{}, err
	}
	return bindings.Buffer(p, uintptr(d.n)), nil
}

func zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
