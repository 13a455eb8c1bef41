//go:build cgo

package bao_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stregato/bao-go/pkg/bao"
)

const peopleDDL = `CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER);`

func openDB(t *testing.T, lib *bao.Library) *bao.DB {
	t.Helper()
	db, err := lib.OpenDB("sqlite3", ":memory:", peopleDDL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDBExecFetch(t *testing.T) {
	lib, n := newLib(t)
	db := openDB(t, lib)

	for i, name := range []string{"ada", "alan", "grace"} {
		require.NoError(t, db.Exec("INSERT INTO people (name, age) VALUES (:name, :age)", bao.Args{"name": name, "age": 30 + i}))
	}

	rows, err := db.Fetch("SELECT name, age FROM people ORDER BY id", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"ada", float64(30)}, rows[0])

	rows, err = db.Fetch("SELECT name FROM people ORDER BY id", nil, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	row, err := db.FetchOne("SELECT age FROM people WHERE name = :name", bao.Args{"name": "grace"})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(32)}, row)

	row, err = db.FetchOne("SELECT age FROM people WHERE name = :name", bao.Args{"name": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, row)

	require.NoError(t, db.Close())
	assert.Equal(t, 1, n.Closed("db"))
}

func TestDBQueryCursor(t *testing.T) {
	lib, n := newLib(t)
	db := openDB(t, lib)
	require.NoError(t, db.Exec("INSERT INTO people (name) VALUES ('ada'), ('alan')", nil))

	cur, err := db.Query("SELECT name FROM people ORDER BY name", nil)
	require.NoError(t, err)
	all, err := cur.All()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"ada"}, {"alan"}}, all)
	assert.False(t, cur.IsOpen())
	assert.Equal(t, 1, n.Closed("rows"))

	cur, err = db.Query("SELECT name FROM people WHERE 0", nil)
	require.NoError(t, err)
	ok, err := cur.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = cur.Current()
	assert.True(t, bao.HasCode(err, bao.DbError), "got %v", err)
	require.NoError(t, cur.Close())
}

func TestDBErrors(t *testing.T) {
	lib, _ := newLib(t)
	db := openDB(t, lib)

	err := db.Exec("INSERT INTO nowhere VALUES (1)", nil)
	assert.True(t, bao.HasCode(err, bao.DbError), "got %v", err)
	assert.Contains(t, err.Error(), "no such table: nowhere")

	_, err = lib.OpenDB("postgres", "x", "")
	assert.True(t, bao.HasCode(err, bao.DbError), "got %v", err)

	err = db.Exec("SELECT 1", bao.Args{"bad": make(chan int)})
	assert.ErrorIs(t, err, bao.ErrInvalidArgument)
}

func TestDBFile(t *testing.T) {
	lib, _ := newLib(t)
	path := filepath.Join(t.TempDir(), "bao.db")

	db, err := lib.OpenDB("sqlite3", path, peopleDDL)
	require.NoError(t, err)
	require.NoError(t, db.Exec("INSERT INTO people (name) VALUES ('ada')", nil))
	require.NoError(t, db.Close())

	db, err = lib.OpenDB("sqlite3", path, "")
	require.NoError(t, err)
	defer db.Close()
	row, err := db.FetchOne("SELECT count(*) FROM people", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1)}, row)
}
