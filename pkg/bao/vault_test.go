//go:build cgo

package bao_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stregato/bao-go/pkg/bao"
	"github.com/stregato/bao-go/pkg/bao/mocknative"
)

type fixture struct {
	lib   *bao.Library
	n     *mocknative.Native
	store *bao.Store
	db    *bao.DB
	owner bao.KeyPair
	vault *bao.Vault
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lib, n := newLib(t)
	f := &fixture{lib: lib, n: n, dir: t.TempDir()}

	var err error
	f.store, err = lib.OpenStore(bao.StoreConfig{ID: "shared", Type: "local", Local: bao.LocalConfig{Base: filepath.Join(f.dir, "store")}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.store.Close() })
	f.db = openDB(t, lib)
	f.owner, err = lib.NewKeyPair()
	require.NoError(t, err)

	f.vault, err = lib.CreateVault(bao.RealmUsers, f.owner.PrivateID, f.store, f.db, bao.VaultConfig{Retention: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.vault.Close() })
	return f
}

func (f *fixture) local(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestCreateVault(t *testing.T) {
	f := newFixture(t)

	assert.NotEmpty(t, f.vault.ID)
	assert.Equal(t, f.owner.PublicID, f.vault.UserID)
	assert.Equal(t, f.owner.PublicID, f.vault.Author)
	assert.Equal(t, bao.RealmUsers, f.vault.Realm)
	assert.JSONEq(t, `{"retention":3600000000000}`, string(f.vault.Config))

	access, err := f.vault.GetAccess(f.owner.PublicID)
	require.NoError(t, err)
	assert.Equal(t, bao.ReadWriteAdmin, access)

	_, err = f.lib.CreateVault(bao.RealmUsers, f.owner.PrivateID, f.store, f.db, bao.VaultConfig{})
	assert.True(t, bao.HasCode(err, bao.FileError), "got %v", err)
}

func TestVaultRequiresOpenResources(t *testing.T) {
	f := newFixture(t)

	_, err := f.lib.CreateVault(bao.RealmHome, f.owner.PrivateID, nil, f.db, bao.VaultConfig{})
	assert.ErrorIs(t, err, bao.ErrNotOpen)
	_, err = f.lib.CreateVault(bao.RealmHome, f.owner.PrivateID, f.store, f.db, bao.VaultConfig{SyncRelay: "not a url"})
	assert.ErrorIs(t, err, bao.ErrInvalidArgument)
	assert.Equal(t, 1, f.n.Calls("bao_vault_create"))
}

func TestVaultWriteReadVersions(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "src.txt", "first")

	w, err := f.vault.Write("docs/note.txt", src, []byte(`{"tag":"a"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, "docs/note.txt", w.Name)
	assert.Equal(t, int64(5), w.Size)
	assert.Equal(t, f.owner.PublicID, w.AuthorID)
	assert.Equal(t, []byte(`{"tag":"a"}`), w.Attrs)

	src = f.local(t, "src.txt", "second version")
	_, err = f.vault.Write("docs/note.txt", src, nil, 0)
	require.NoError(t, err)

	st, err := f.vault.Stat("docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("second version")), st.Size)

	dest := filepath.Join(f.dir, "out.txt")
	got, err := f.vault.Read("docs/note.txt", dest, 0)
	require.NoError(t, err)
	assert.Equal(t, dest, got.LocalCopy)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "second version", string(content))

	versions, err := f.vault.Versions("docs/note.txt")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Greater(t, versions[0].ID, versions[1].ID)

	size, err := f.vault.AllocatedSize()
	require.NoError(t, err)
	assert.Equal(t, versions[0].AllocatedSize+versions[1].AllocatedSize, size)

	author, err := f.vault.GetAuthor("docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, f.owner.PublicID, author)

	blobs, err := f.store.ReadDir("vaults/users", bao.Filter{OnlyFiles: true})
	require.NoError(t, err)
	assert.Len(t, blobs, 2)

	require.NoError(t, f.vault.Delete("docs/note.txt", 0))
	_, err = f.vault.Stat("docs/note.txt")
	assert.True(t, bao.HasCode(err, bao.FileError), "got %v", err)
	blobs, err = f.store.ReadDir("vaults/users", bao.Filter{})
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestVaultReadDir(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "src.txt", "x")
	for _, name := range []string{"a/1", "a/2", "a/3", "b/1", "top"} {
		_, err := f.vault.Write(name, src, nil, 0)
		require.NoError(t, err)
	}

	files, err := f.vault.ReadDir("a", time.Time{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a/1", files[0].Name)

	files, err = f.vault.ReadDir("a", time.Time{}, files[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a/2", files[0].Name)

	files, err = f.vault.ReadDir("", time.Time{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "top", files[0].Name)

	files, err = f.vault.ReadDir("a", time.Now().Add(time.Hour), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestVaultAccessControl(t *testing.T) {
	f := newFixture(t)
	guest, err := f.lib.NewKeyPair()
	require.NoError(t, err)

	require.NoError(t, f.vault.SyncAccess(0, bao.AccessChange{UserID: guest.PublicID, Access: bao.Read}))
	accesses, err := f.vault.GetAccesses()
	require.NoError(t, err)
	assert.Equal(t, map[string]bao.Access{f.owner.PublicID: bao.ReadWriteAdmin, guest.PublicID: bao.Read}, accesses)

	gv, err := f.lib.OpenVault(bao.RealmUsers, guest.PrivateID, f.owner.PublicID, f.store, f.db)
	require.NoError(t, err)
	defer gv.Close()
	assert.Equal(t, guest.PublicID, gv.UserID)
	assert.Equal(t, f.owner.PublicID, gv.Author)
	assert.Equal(t, f.vault.ID, gv.ID)

	f.n.Script("bao_vault_write", mocknative.Reply{HasErr: true, Err: `{"code":"AccessDenied","msg":"no write access","file":"write.go","line":21}`})
	_, err = gv.Write("x", f.local(t, "x", "x"), nil, 0)
	assert.True(t, bao.HasCode(err, bao.AccessDenied), "got %v", err)
	_, err = f.vault.Stat("x")
	assert.True(t, bao.HasCode(err, bao.FileError), "got %v", err)

	_, err = f.lib.OpenVault(bao.RealmHome, guest.PrivateID, f.owner.PublicID, f.store, f.db)
	assert.True(t, bao.HasCode(err, bao.FileError), "got %v", err)
	_, err = f.lib.OpenVault(bao.RealmUsers, "not-an-id", f.owner.PublicID, f.store, f.db)
	assert.True(t, bao.HasCode(err, bao.AuthError), "got %v", err)

	require.NoError(t, f.vault.SyncAccess(0, bao.AccessChange{UserID: guest.PublicID}))
	access, err := f.vault.GetAccess(guest.PublicID)
	require.NoError(t, err)
	assert.Zero(t, access)

	err = f.vault.SyncAccess(0, bao.AccessChange{Access: bao.Read})
	assert.ErrorIs(t, err, bao.ErrInvalidArgument)
}

func TestVaultAttributes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.vault.SetAttribute(0, "nick", "ada"))
	require.NoError(t, f.vault.SetAttribute(0, "lang", "en"))

	v, err := f.vault.GetAttribute("nick", f.owner.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	all, err := f.vault.GetAttributes(f.owner.PublicID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nick": "ada", "lang": "en"}, all)

	_, err = f.vault.GetAttribute("missing", f.owner.PublicID)
	assert.True(t, bao.HasCode(err, bao.DbError), "got %v", err)
}

func TestVaultSyncAndWait(t *testing.T) {
	f := newFixture(t)
	src := f.local(t, "src.txt", "x")

	files, err := f.vault.Sync()
	require.NoError(t, err)
	assert.Empty(t, files)

	a, err := f.vault.Write("a", src, nil, bao.AsyncOperation)
	require.NoError(t, err)
	_, err = f.vault.Write("b", src, nil, bao.ScheduledOperation)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done, err := f.vault.WaitFiles(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "a", done[0].Name)

	done, err = f.vault.WaitFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, done)

	files, err = f.vault.Sync()
	require.NoError(t, err)
	assert.Len(t, files, 2)
	files, err = f.vault.Sync()
	require.NoError(t, err)
	assert.Empty(t, files)

	cancel()
	calls := f.n.Calls("bao_vault_waitFiles")
	_, err = f.vault.WaitFiles(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, calls, f.n.Calls("bao_vault_waitFiles"))
}

func TestMailbox(t *testing.T) {
	f := newFixture(t)
	att := f.local(t, "report.pdf", "%PDF-1.7")

	require.NoError(t, f.vault.Send("inbox", bao.Message{Subject: "hello", Body: "see attached", Attachments: []string{att}}))
	require.NoError(t, f.vault.Send("inbox", bao.Message{Subject: "again"}))

	msgs, err := f.vault.Receive("inbox", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Subject)
	require.NotNil(t, msgs[0].FileInfo)
	require.Len(t, msgs[0].Attachments, 1)

	newer, err := f.vault.Receive("inbox", time.Time{}, msgs[0].FileInfo.ID)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "again", newer[0].Subject)

	dest := filepath.Join(f.dir, "downloaded.pdf")
	require.NoError(t, f.vault.Download("inbox", msgs[0], 0, dest))
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(content))

	err = f.vault.Download("inbox", msgs[0], 3, dest)
	assert.True(t, bao.HasCode(err, bao.GenericError), "got %v", err)

	err = f.vault.Send("inbox", bao.Message{Attachments: []string{""}})
	assert.ErrorIs(t, err, bao.ErrInvalidArgument)
}

func TestReplica(t *testing.T) {
	f := newFixture(t)

	r, err := f.lib.OpenReplica(f.vault, f.db)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Exec("INSERT INTO people (name) VALUES (:name)", bao.Args{"name": "ada"}))
	require.NoError(t, r.Exec("INSERT INTO people (name) VALUES (:name)", bao.Args{"name": "alan"}))
	rows, err := r.Fetch("SELECT name FROM people ORDER BY name", nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	applied, err := r.Sync()
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	require.NoError(t, r.Exec("INSERT INTO people (name) VALUES ('grace')", nil))
	require.NoError(t, r.Cancel())

	row, err := r.FetchOne("SELECT count(*) FROM people", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(2)}, row)

	cur, err := r.Query("SELECT name FROM people ORDER BY name", nil)
	require.NoError(t, err)
	all, err := cur.All()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"ada"}, {"alan"}}, all)

	require.NoError(t, r.Close())
	assert.False(t, r.IsOpen())
	_, err = r.Sync()
	assert.ErrorIs(t, err, bao.ErrNotOpen)

	_, err = f.lib.OpenReplica(nil, f.db)
	assert.ErrorIs(t, err, bao.ErrNotOpen)
}

func TestEverythingReleased(t *testing.T) {
	f := newFixture(t)
	r, err := f.lib.OpenReplica(f.vault, f.db)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.NoError(t, f.vault.Close())
	require.NoError(t, f.db.Close())
	require.NoError(t, f.store.Close())

	// Replicas have no close entry point.
	assert.Equal(t, 1, f.n.LiveHandles())
	assert.Zero(t, f.n.Live())
}
