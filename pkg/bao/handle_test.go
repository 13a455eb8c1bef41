package bao

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stregato/bao-go/pkg/bao/mocknative"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemStore(t *testing.T, lib *Library) *Store {
	t.Helper()
	s, err := lib.OpenStore(StoreConfig{ID: "test", Type: "mem"})
	require.NoError(t, err)
	return s
}

func TestCloseIsIdempotent(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	require.True(t, s.IsOpen())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.IsOpen())
	assert.Zero(t, s.Handle())
	assert.Equal(t, 1, n.Calls("bao_store_close"))
	assert.Equal(t, 1, n.Closed("store"))
	assert.Zero(t, n.LiveHandles())
}

func TestConcurrentCloseReachesLibraryOnce(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, n.Calls("bao_store_close"))
}

func TestClosedWrapperFailsWithoutNativeCall(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	require.NoError(t, s.Close())

	_, err := s.ReadDir("", Filter{})
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.Stat("x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Delete("x"), ErrNotOpen)
	assert.Zero(t, n.Calls("bao_store_readDir"))
	assert.Zero(t, n.Calls("bao_store_stat"))
	assert.Zero(t, n.Calls("bao_store_delete"))
}

func TestZeroValueWrappers(t *testing.T) {
	var (
		db   DB
		rows Rows
		st   Store
		v    Vault
		rep  Replica
	)
	assert.ErrorIs(t, db.Exec("select 1", nil), ErrNotOpen)
	_, err := rows.Next()
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = st.Stat("x")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = v.Stat("x")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = rep.Sync()
	assert.ErrorIs(t, err, ErrNotOpen)

	assert.NoError(t, db.Close())
	assert.NoError(t, v.Close())
}

func TestNilWrappersClose(t *testing.T) {
	var (
		db  *DB
		s   *Store
		v   *Vault
		r   *Rows
		rep *Replica
	)
	assert.NoError(t, db.Close())
	assert.NoError(t, s.Close())
	assert.NoError(t, v.Close())
	assert.NoError(t, r.Close())
	assert.NoError(t, rep.Close())
}

func TestFinalizerClosesForgottenWrapper(t *testing.T) {
	lib, n := newMockLib(t)
	func() {
		_ = openMemStore(t, lib)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for n.Closed("store") == 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, n.Closed("store"))
}

type panicCloser struct{}

func (panicCloser) Close() error { panic("close") }

func TestFinalizeSwallowsPanics(t *testing.T) {
	assert.NotPanics(t, func() { finalize(panicCloser{}) })
}

func TestCloseAfterLibraryClose(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	require.NoError(t, lib.Close())

	assert.ErrorIs(t, s.Close(), ErrLibraryClosed)
	assert.False(t, s.IsOpen())
	assert.NoError(t, s.Close())
	assert.Zero(t, n.Calls("bao_store_close"))
}

func TestCloseErrorStillZeroesHandle(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	h := s.Handle()
	n.Script("bao_store_close", mocknative.Reply{HasErr: true, Err: `{"code":"FileError","msg":"disk gone"}`})

	err := s.Close()
	require.Error(t, err)
	assert.True(t, HasCode(err, "FileError"))
	assert.False(t, s.IsOpen())
	assert.Zero(t, s.Handle())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, n.Calls("bao_store_close"))

	// The scripted failure left the native side open; release it directly.
	lib.discard(h, "bao_store_close")
	assert.Zero(t, n.LiveHandles())
}

func TestFailedOpenClosesReturnedHandle(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	runtime.SetFinalizer(s, nil)
	h := s.take()
	require.NotZero(t, h)

	n.Script("bao_store_open", mocknative.Reply{Handle: h, HasErr: true, Err: `{"code":"DbError","msg":"half open"}`})
	got, err := lib.OpenStore(StoreConfig{ID: "again", Type: "mem"})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, HasCode(err, "DbError"))
	assert.Equal(t, 1, n.Calls("bao_store_close"))
	assert.Equal(t, 1, n.Closed("store"))
	assert.Zero(t, n.LiveHandles())
}

func TestUndecodableVaultClosesHandle(t *testing.T) {
	lib, n := newMockLib(t)
	s := openMemStore(t, lib)
	defer s.Close()
	db := &DB{}
	db.init(lib, 77, "db", "")

	// A vault payload without an id fails validation after the handle exists.
	n.Script("bao_vault_create", mocknative.Reply{Handle: 99, Payload: []byte(`{"userId":"u"}`)})
	v, err := lib.CreateVault("realm", "priv", s, db, VaultConfig{})
	require.ErrorIs(t, err, ErrDecode)
	assert.Nil(t, v)
	assert.Equal(t, 1, n.Calls("bao_vault_close"))
	assert.Zero(t, n.Live())
}

func TestDiscardWithoutCloseSymbol(t *testing.T) {
	lib, n := newMockLib(t)
	lib.discard(5, "")
	lib.discard(0, "bao_store_close")
	assert.Zero(t, n.Calls("bao_store_close"))
}
