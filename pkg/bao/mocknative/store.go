package mocknative

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var storeEntries = map[string]entry{
	"bao_store_open":    {"s", storeOpen},
	"bao_store_close":   {"l", storeClose},
	"bao_store_readDir": {"lss", storeReadDir},
	"bao_store_stat":    {"ls", storeStat},
	"bao_store_delete":  {"ls", storeDelete},
}

var (
	dataBucket = []byte("data")
	metaBucket = []byte("meta")
)

type storeConfig struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Local struct {
		Base string `json:"base"`
	} `json:"local"`
}

type storeFilter struct {
	Prefix      string    `json:"prefix"`
	Suffix      string    `json:"suffix"`
	AfterName   string    `json:"afterName"`
	After       time.Time `json:"after"`
	MaxResults  int64     `json:"maxResults"`
	OnlyFiles   bool      `json:"onlyFiles"`
	OnlyFolders bool      `json:"onlyFolders"`
}

type storeEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	IsDir   bool      `json:"isDir"`
}

// blobStore keeps objects in a bbolt file: contents in the data bucket and
// the modification time, as unix nanoseconds, in the meta bucket.
type blobStore struct {
	id   string
	db   *bolt.DB
	temp string
}

func openBlobStore(cfg storeConfig) (*blobStore, error) {
	var base, temp string
	switch cfg.Type {
	case "local", "file":
		base = cfg.Local.Base
		if base == "" {
			return nil, errorf(ConfigError, nil, "missing base for local store %s", cfg.ID)
		}
	case "mem":
		dir, err := os.MkdirTemp("", "bao-mock-store-")
		if err != nil {
			return nil, errorf(FileError, err, "cannot create temp dir")
		}
		base, temp = dir, dir
	default:
		return nil, errorf(ConfigError, nil, "unsupported store type %q", cfg.Type)
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, errorf(FileError, err, "cannot create %s", base)
	}
	db, err := bolt.Open(filepath.Join(base, "store.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errorf(FileError, err, "cannot open store %s", cfg.ID)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{dataBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errorf(FileError, err, "cannot initialise store %s", cfg.ID)
	}
	return &blobStore{id: cfg.ID, db: db, temp: temp}, nil
}

func (s *blobStore) close() error {
	err := s.db.Close()
	if s.temp != "" {
		err = errors.Join(err, os.RemoveAll(s.temp))
	}
	return err
}

func (s *blobStore) put(name string, b []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(dataBucket).Put([]byte(name), b); err != nil {
			return err
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(time.Now().UnixNano()))
		return tx.Bucket(metaBucket).Put([]byte(name), ts)
	})
}

func (s *blobStore) get(name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(dataBucket).Get([]byte(name))
		if v == nil {
			return errorf(FileError, nil, "%s not found", name)
		}
		out = append([]byte{}, v...)
		return nil
	})
	return out, err
}

// remove deletes name, or every object below it when name is a directory.
func (s *blobStore) remove(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, meta := tx.Bucket(dataBucket), tx.Bucket(metaBucket)
		if data.Get([]byte(name)) != nil {
			if err := data.Delete([]byte(name)); err != nil {
				return err
			}
			return meta.Delete([]byte(name))
		}
		prefix := []byte(strings.TrimSuffix(name, "/") + "/")
		var keys [][]byte
		c := data.Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		if len(keys) == 0 {
			return errorf(FileError, nil, "%s not found", name)
		}
		for _, k := range keys {
			if err := data.Delete(k); err != nil {
				return err
			}
			if err := meta.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func modTime(meta *bolt.Bucket, key []byte) time.Time {
	v := meta.Get(key)
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC()
}

// list returns the immediate children of dir. Folders are implied by the
// names of the objects below them.
func (s *blobStore) list(dir string) ([]storeEntry, error) {
	dir = strings.Trim(dir, "/")
	prefix := ""
	if dir != "" && dir != "." {
		prefix = dir + "/"
	}
	found := map[string]*storeEntry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		c := tx.Bucket(dataBucket).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			rest := strings.TrimPrefix(string(k), prefix)
			mt := modTime(meta, k)
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				name := rest[:i]
				e, ok := found[name]
				if !ok {
					e = &storeEntry{Name: name, IsDir: true}
					found[name] = e
				}
				if mt.After(e.ModTime) {
					e.ModTime = mt
				}
				continue
			}
			found[rest] = &storeEntry{Name: rest, Size: int64(len(v)), ModTime: mt}
		}
		return nil
	})
	if err != nil {
		return nil, errorf(FileError, err, "cannot list %s", dir)
	}
	out := make([]storeEntry, 0, len(found))
	for _, e := range found {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f storeFilter) match(e storeEntry) bool {
	switch {
	case f.OnlyFiles && e.IsDir, f.OnlyFolders && !e.IsDir:
		return false
	case f.Prefix != "" && !strings.HasPrefix(e.Name, f.Prefix):
		return false
	case f.Suffix != "" && !strings.HasSuffix(e.Name, f.Suffix):
		return false
	case f.AfterName != "" && e.Name <= f.AfterName:
		return false
	case !f.After.IsZero() && !e.ModTime.After(f.After):
		return false
	}
	return true
}

func storeOpen(n *Native, a argv) reply {
	var cfg storeConfig
	if err := json.Unmarshal([]byte(a.s(0)), &cfg); err != nil {
		return fail(errorf(ParseError, err, "cannot parse store config"))
	}
	s, err := openBlobStore(cfg)
	if err != nil {
		return fail(err)
	}
	return opened(n.register("store", s), nil)
}

func storeClose(n *Native, a argv) reply {
	v, err := n.unregister(a.h(0), "store")
	if err != nil {
		return fail(err)
	}
	if err := v.(*blobStore).close(); err != nil {
		return fail(errorf(FileError, err, "cannot close store"))
	}
	return none()
}

func storeReadDir(n *Native, a argv) reply {
	s, err := lookup[*blobStore](n, a.h(0), "store")
	if err != nil {
		return fail(err)
	}
	var f storeFilter
	if err := json.Unmarshal([]byte(a.s(2)), &f); err != nil {
		return fail(errorf(ParseError, err, "cannot parse filter"))
	}
	all, err := s.list(a.s(1))
	if err != nil {
		return fail(err)
	}
	out := []storeEntry{}
	for _, e := range all {
		if f.MaxResults > 0 && int64(len(out)) >= f.MaxResults {
			break
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	return value(out)
}

func storeStat(n *Native, a argv) reply {
	s, err := lookup[*blobStore](n, a.h(0), "store")
	if err != nil {
		return fail(err)
	}
	name := strings.Trim(a.s(1), "/")
	entries, err := s.list(path.Dir(name))
	if err != nil {
		return fail(err)
	}
	base := path.Base(name)
	for _, e := range entries {
		if e.Name == base {
			return value(e)
		}
	}
	return fail(errorf(FileError, os.ErrNotExist, "cannot stat %s", name))
}

func storeDelete(n *Native, a argv) reply {
	s, err := lookup[*blobStore](n, a.h(0), "store")
	if err != nil {
		return fail(err)
	}
	if err := s.remove(strings.Trim(a.s(1), "/")); err != nil {
		return fail(errorf(FileError, err, "cannot delete %s", a.s(1)))
	}
	return none()
}
