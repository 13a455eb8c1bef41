package mocknative

import (
	"encoding/json"
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stregato/bao-go/internal/bindings"
)

func TestAllocationAccounting(t *testing.T) {
	n := New()
	env, err := n.Call("bao_echo", bindings.Buffer(unsafe.Pointer(&[]byte("abc")[0]), 3))
	require.NoError(t, err)
	require.NotNil(t, env.Ptr)
	assert.Equal(t, uintptr(3), env.Len)
	assert.Equal(t, "abc", string(bindings.CopyBytes(env.Ptr, env.Len)))
	assert.Equal(t, 1, n.Live())

	n.Free(env.Ptr)
	assert.Zero(t, n.Live())
	assert.Equal(t, 1, n.Frees())

	n.Free(env.Ptr)
	assert.Equal(t, 1, n.DoubleFrees())

	var x byte
	n.Free(unsafe.Pointer(&x))
	assert.Equal(t, 1, n.ForeignFrees())

	n.Free(nil)
	assert.Equal(t, 1, n.Frees())
}

func TestScriptedRepliesComeFirst(t *testing.T) {
	n := New()
	n.Script("bao_test",
		Reply{Payload: []byte("1")},
		Reply{HasErr: true, Err: "boom", Handle: 9},
	)

	env, err := n.Call("bao_test")
	require.NoError(t, err)
	assert.Equal(t, "1", string(bindings.CopyBytes(env.Ptr, env.Len)))
	n.Free(env.Ptr)

	env, err = n.Call("bao_test")
	require.NoError(t, err)
	assert.Nil(t, env.Ptr)
	assert.Equal(t, bindings.Handle(9), env.Hnd)
	assert.Equal(t, "boom", bindings.GoString(env.Err))
	n.Free(env.Err)

	env, err = n.Call("bao_test")
	require.NoError(t, err)
	assert.Equal(t, bindings.Envelope{}, env)
	assert.Equal(t, 3, n.Calls("bao_test"))
	assert.Zero(t, n.Live())
}

func TestCallChecksSymbolAndSignature(t *testing.T) {
	n := New()

	_, err := n.Call("bao_nope")
	assert.ErrorIs(t, err, bindings.ErrSymbolNotFound)

	_, err = n.Call("bao_test", bindings.Int(1))
	assert.ErrorIs(t, err, bindings.ErrSignature)

	require.NoError(t, n.Close())
	_, err = n.Call("bao_test")
	assert.ErrorIs(t, err, bindings.ErrClosed)
}

func TestEveryEntryHasAValidSignature(t *testing.T) {
	n := New()
	for _, name := range n.Symbols() {
		for _, k := range n.entries[name].sig {
			switch bindings.ArgKind(k) {
			case bindings.KindString, bindings.KindInt, bindings.KindLong, bindings.KindData:
			default:
				t.Errorf("%s: unknown kind %q", name, k)
			}
		}
	}
}

func TestErrorsSerialiseAsChains(t *testing.T) {
	n := New()
	env, err := n.Call("bao_store_open", bindings.String(`{"id":"x","type":"ftp"}`))
	require.NoError(t, err)
	require.NotNil(t, env.Err)
	defer n.Free(env.Err)

	var node map[string]any
	require.NoError(t, json.Unmarshal([]byte(bindings.GoString(env.Err)), &node))
	assert.Equal(t, ConfigError, node["code"])
	assert.Equal(t, "store.go", node["file"])
	assert.NotZero(t, node["line"])
}

func TestErrorMarshalling(t *testing.T) {
	inner := errorf(DbError, errors.New("disk full"), "cannot write")
	outer := errorf(FileError, inner, "cannot save %s", "a.txt")

	b, err := json.Marshal(outer)
	require.NoError(t, err)
	var got struct {
		Code  string `json:"code"`
		Msg   string `json:"msg"`
		Cause struct {
			Code  string `json:"code"`
			Cause struct {
				Msg string `json:"msg"`
			} `json:"cause"`
		} `json:"cause"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, FileError, got.Code)
	assert.Equal(t, "cannot save a.txt", got.Msg)
	assert.Equal(t, DbError, got.Cause.Code)
	assert.Equal(t, "disk full", got.Cause.Cause.Msg)

	assert.Same(t, outer, asError(outer))
	assert.Equal(t, GenericError, asError(errors.New("x")).Code)
}

func TestCloseReleasesHandles(t *testing.T) {
	n := New()
	env, err := n.Call("bao_store_open", bindings.String(`{"id":"m","type":"mem"}`))
	require.NoError(t, err)
	require.NotZero(t, env.Hnd)
	assert.Equal(t, 1, n.Opened("store"))
	assert.Equal(t, 1, n.LiveHandles())

	require.NoError(t, n.Close())
	assert.Zero(t, n.LiveHandles())
	require.NoError(t, n.Close())
}

func TestStoreListingAndFilter(t *testing.T) {
	s, err := openBlobStore(storeConfig{ID: "t", Type: "mem"})
	require.NoError(t, err)
	defer s.close()

	for _, name := range []string{"a.txt", "b.log", "dir/c.txt", "dir/sub/d.txt"} {
		require.NoError(t, s.put(name, []byte(name)))
	}

	all, err := s.list("")
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a.txt", "b.log", "dir"}, names)
	assert.True(t, all[2].IsDir)
	assert.Equal(t, int64(5), all[0].Size)

	assert.True(t, storeFilter{Suffix: ".txt"}.match(all[0]))
	assert.False(t, storeFilter{Suffix: ".txt"}.match(all[1]))
	assert.False(t, storeFilter{OnlyFiles: true}.match(all[2]))
	assert.True(t, storeFilter{OnlyFolders: true}.match(all[2]))
	assert.False(t, storeFilter{AfterName: "b.log"}.match(all[1]))

	require.NoError(t, s.remove("dir"))
	all, err = s.list("dir")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Error(t, s.remove("dir"))
}
