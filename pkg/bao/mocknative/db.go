package mocknative

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var dbEntries = map[string]entry{
	"bao_db_open":      {"sss", dbOpen},
	"bao_db_close":     {"l", dbClose},
	"bao_db_exec":      {"lss", dbExec},
	"bao_db_query":     {"lss", dbQuery},
	"bao_db_fetch":     {"lssi", dbFetch},
	"bao_db_fetch_one": {"lss", dbFetchOne},
}

type database struct {
	db  *sql.DB
	dsn string
}

func (d *database) close() error { return d.db.Close() }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// cursor is a materialised result set walked by next and current.
type cursor struct {
	rows [][]any
	pos  int
}

func (c *cursor) close() error {
	c.rows = nil
	return nil
}

func dbOpen(n *Native, a argv) reply {
	driver, dsn, ddl := a.s(0), a.s(1), a.s(2)
	if driver != "sqlite3" {
		return fail(errorf(DbError, nil, "unsupported driver %q", driver))
	}
	// Each in-memory database is private to its handle but shared by the
	// connections of its pool.
	if dsn == ":memory:" || dsn == "" {
		dsn = "file:bao-mock-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fail(errorf(DbError, err, "cannot open db with url %s", dsn))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fail(errorf(DbError, err, "cannot open db with url %s", dsn))
	}
	if strings.TrimSpace(ddl) != "" {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fail(errorf(DbError, err, "cannot execute ddl"))
		}
	}
	return opened(n.register("db", &database{db: db, dsn: dsn}), nil)
}

func dbClose(n *Native, a argv) reply {
	v, err := n.unregister(a.h(0), "db")
	if err != nil {
		return fail(err)
	}
	if err := v.(*database).close(); err != nil {
		return fail(errorf(DbError, err, "cannot close db"))
	}
	return none()
}

// namedArgs decodes the JSON object of named parameters.
func namedArgs(enc string) ([]any, error) {
	m := map[string]any{}
	dec := json.NewDecoder(strings.NewReader(enc))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, errorf(ParseError, err, "cannot parse args")
	}
	out := make([]any, 0, len(m))
	for k, v := range m {
		if num, ok := v.(json.Number); ok {
			if i, err := num.Int64(); err == nil {
				v = i
			} else if f, err := num.Float64(); err == nil {
				v = f
			}
		}
		out = append(out, sql.Named(k, v))
	}
	return out, nil
}

func execOn(q querier, query, enc string) error {
	args, err := namedArgs(enc)
	if err != nil {
		return err
	}
	if _, err := q.Exec(query, args...); err != nil {
		return errorf(DbError, err, "cannot execute query: %s", query)
	}
	return nil
}

// fetchOn runs query and returns at most max rows; max < 0 means all.
func fetchOn(q querier, query, enc string, max int) ([][]any, error) {
	args, err := namedArgs(enc)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, errorf(DbError, err, "cannot execute query: %s", query)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, errorf(DbError, err, "cannot read columns")
	}
	out := [][]any{}
	for (max < 0 || len(out) < max) && rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errorf(DbError, err, "cannot scan row")
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errorf(DbError, err, "cannot read rows")
	}
	return out, nil
}

func fetchOneOn(q querier, query, enc string) reply {
	rows, err := fetchOn(q, query, enc, 1)
	if err != nil {
		return fail(err)
	}
	if len(rows) == 0 {
		return none()
	}
	return value(rows[0])
}

func queryOn(n *Native, q querier, query, enc string) reply {
	rows, err := fetchOn(q, query, enc, -1)
	if err != nil {
		return fail(err)
	}
	return opened(n.register("rows", &cursor{rows: rows}), nil)
}

func dbExec(n *Native, a argv) reply {
	d, err := lookup[*database](n, a.h(0), "db")
	if err != nil {
		return fail(err)
	}
	if err := execOn(d.db, a.s(1), a.s(2)); err != nil {
		return fail(err)
	}
	return none()
}

func dbQuery(n *Native, a argv) reply {
	d, err := lookup[*database](n, a.h(0), "db")
	if err != nil {
		return fail(err)
	}
	return queryOn(n, d.db, a.s(1), a.s(2))
}

func dbFetch(n *Native, a argv) reply {
	d, err := lookup[*database](n, a.h(0), "db")
	if err != nil {
		return fail(err)
	}
	return result(fetchOn(d.db, a.s(1), a.s(2), a.i(3)))
}

func dbFetchOne(n *Native, a argv) reply {
	d, err := lookup[*database](n, a.h(0), "db")
	if err != nil {
		return fail(err)
	}
	return fetchOneOn(d.db, a.s(1), a.s(2))
}
