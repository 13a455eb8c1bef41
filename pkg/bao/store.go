package bao

import (
	"runtime"

	"github.com/stregato/bao-go/internal/bindings"
)

// Store is an open storage backend (local, S3, SFTP, Azure, WebDAV, relay).
type Store struct {
	resource
	ID string
}

// OpenStore opens the backend described by cfg.
func (l *Library) OpenStore(cfg StoreConfig) (*Store, error) {
	enc, err := checkArg(cfg)
	if err != nil {
		return nil, err
	}
	h, err := l.opened(l.invoke("bao_store_open", bindings.String(enc)), "bao_store_close")
	if err != nil {
		return nil, err
	}
	s := &Store{ID: cfg.ID}
	s.init(l, h, "store", "bao_store_close")
	runtime.SetFinalizer(s, func(s *Store) { finalize(s) })
	return s, nil
}

// Close releases the backend. It is idempotent.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	runtime.SetFinalizer(s, nil)
	return s.release()
}

// ReadDir lists dir, narrowed by filter.
func (s *Store) ReadDir(dir string, filter Filter) ([]StoreEntry, error) {
	h, err := s.handle()
	if err != nil {
		return nil, err
	}
	enc, err := checkArg(filter)
	if err != nil {
		return nil, err
	}
	return decodeList[StoreEntry](s.lib.invoke("bao_store_readDir", bindings.Long(int64(h)), bindings.String(dir), bindings.String(enc)))
}

// Stat describes a single entry.
func (s *Store) Stat(name string) (StoreEntry, error) {
	h, err := s.handle()
	if err != nil {
		return StoreEntry{}, err
	}
	return decodeStruct[StoreEntry](s.lib.invoke("bao_store_stat", bindings.Long(int64(h)), bindings.String(name)))
}

// Delete removes name from the backend.
func (s *Store) Delete(name string) error {
	h, err := s.handle()
	if err != nil {
		return err
	}
	return s.lib.invoke("bao_store_delete", bindings.Long(int64(h)), bindings.String(name)).Err()
}
