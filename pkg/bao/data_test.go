package bao

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stregato/bao-go/internal/bindings"
)

func echo(t *testing.T, lib *Library, in []byte) []byte {
	t.Helper()
	out, err := lib.withData(in, func(a bindings.Arg) *Result {
		return lib.invoke("bao_echo", a)
	})
	require.NoError(t, err)
	return out
}

func TestDataRoundTrip(t *testing.T) {
	lib, n := newMockLib(t)

	in := bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 1000)
	assert.Equal(t, in, echo(t, lib, in))

	out := echo(t, lib, []byte{})
	assert.NotNil(t, out)
	assert.Empty(t, out)

	assert.Zero(t, n.Live())
}

func TestDataEchoText(t *testing.T) {
	lib, n := newMockLib(t)
	assert.Equal(t, "hello", string(echo(t, lib, []byte("hello"))))
	assert.Equal(t, 1, n.Calls("bao_echo"))
	assert.Zero(t, n.Live())
}

func TestDataEmptyHasValidPointer(t *testing.T) {
	d := NewData(nil)
	defer d.Release()

	p, err := d.Ptr()
	require.NoError(t, err)
	assert.NotNil(t, p)
	l, err := d.Len()
	require.NoError(t, err)
	assert.Zero(t, l)
}

func TestDataCopiesInput(t *testing.T) {
	in := []byte("secret")
	d := NewData(in)
	defer d.Release()
	in[0] = 'S'

	b, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), b)
}

func TestDataReleaseZeroesAndPoisons(t *testing.T) {
	d := NewData([]byte{1, 2, 3})
	view, err := d.Bytes()
	require.NoError(t, err)

	d.Release()
	assert.Equal(t, []byte{0, 0, 0}, view)

	_, err = d.Len()
	assert.ErrorIs(t, err, ErrDataReleased)
	_, err = d.Ptr()
	assert.ErrorIs(t, err, ErrDataReleased)
	_, err = d.Bytes()
	assert.ErrorIs(t, err, ErrDataReleased)
	_, err = d.arg()
	assert.ErrorIs(t, err, ErrDataReleased)

	d.Release()
	var nilData *Data
	nilData.Release()
}
