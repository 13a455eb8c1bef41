package mocknative

import (
	"database/sql"
)

var replicaEntries = map[string]entry{
	"bao_replica_open":      {"li", replicaOpen},
	"bao_replica_exec":      {"lss", replicaExec},
	"bao_replica_query":     {"lss", replicaQuery},
	"bao_replica_fetch":     {"lssi", replicaFetch},
	"bao_replica_fetchOne":  {"lss", replicaFetchOne},
	"bao_replica_sync":      {"l", replicaSync},
	"bao_replica_cancel":    {"l", replicaCancel},
	"bao_replica_next":      {"l", rowsNext},
	"bao_replica_current":   {"l", rowsCurrent},
	"bao_replica_closeRows": {"l", rowsClose},
}

// replica applies statements inside a transaction that stays open until the
// next sync or cancel. Reads run in the same transaction so they see
// unsynced writes.
type replica struct {
	vault   *vault
	db      *database
	tx      *sql.Tx
	pending int
}

func (r *replica) close() error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback()
	r.tx = nil
	return err
}

func (r *replica) querier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.db
}

func replicaOpen(n *Native, a argv) reply {
	v, err := lookup[*vault](n, a.h(0), "vault")
	if err != nil {
		return fail(err)
	}
	d, err := lookup[*database](n, a.h(1), "db")
	if err != nil {
		return fail(err)
	}
	return opened(n.register("replica", &replica{vault: v, db: d}), nil)
}

func withReplica(fn func(*Native, *replica, argv) reply) func(*Native, argv) reply {
	return func(n *Native, a argv) reply {
		r, err := lookup[*replica](n, a.h(0), "replica")
		if err != nil {
			return fail(err)
		}
		return fn(n, r, a)
	}
}

var (
	replicaExec = withReplica(func(_ *Native, r *replica, a argv) reply {
		if r.tx == nil {
			tx, err := r.db.db.Begin()
			if err != nil {
				return fail(errorf(DbError, err, "cannot begin transaction"))
			}
			r.tx = tx
		}
		if err := execOn(r.tx, a.s(1), a.s(2)); err != nil {
			return fail(err)
		}
		r.pending++
		return none()
	})
	replicaQuery = withReplica(func(n *Native, r *replica, a argv) reply {
		return queryOn(n, r.querier(), a.s(1), a.s(2))
	})
	replicaFetch = withReplica(func(_ *Native, r *replica, a argv) reply {
		return result(fetchOn(r.querier(), a.s(1), a.s(2), a.i(3)))
	})
	replicaFetchOne = withReplica(func(_ *Native, r *replica, a argv) reply {
		return fetchOneOn(r.querier(), a.s(1), a.s(2))
	})
	replicaSync = withReplica(func(_ *Native, r *replica, _ argv) reply {
		applied := r.pending
		r.pending = 0
		if r.tx != nil {
			tx := r.tx
			r.tx = nil
			if err := tx.Commit(); err != nil {
				return fail(errorf(DbError, err, "cannot commit transaction"))
			}
		}
		return value(applied)
	})
	replicaCancel = withReplica(func(_ *Native, r *replica, _ argv) reply {
		r.pending = 0
		if err := r.close(); err != nil {
			return fail(errorf(DbError, err, "cannot rollback transaction"))
		}
		return none()
	})
)

func rowsNext(n *Native, a argv) reply {
	c, err := lookup[*cursor](n, a.h(0), "rows")
	if err != nil {
		return fail(err)
	}
	if c.pos >= len(c.rows) {
		return value(false)
	}
	c.pos++
	return value(true)
}

func rowsCurrent(n *Native, a argv) reply {
	c, err := lookup[*cursor](n, a.h(0), "rows")
	if err != nil {
		return fail(err)
	}
	if c.pos == 0 || c.pos > len(c.rows) {
		return fail(errorf(DbError, nil, "no current row"))
	}
	return value(c.rows[c.pos-1])
}

func rowsClose(n *Native, a argv) reply {
	v, err := n.unregister(a.h(0), "rows")
	if err != nil {
		return fail(err)
	}
	if err := v.(*cursor).close(); err != nil {
		return fail(err)
	}
	return none()
}
