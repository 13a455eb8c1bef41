package bao

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/stregato/bao-go/internal/bindings"
	"github.com/stregato/bao-go/pkg/bao/logging"
)

// Vault is an open encrypted vault bound to a store and a local database.
type Vault struct {
	resource
	VaultInfo
}

func newVault(lib *Library, h Handle, info VaultInfo) *Vault {
	v := &Vault{VaultInfo: info}
	v.init(lib, h, "vault", "bao_vault_close")
	runtime.SetFinalizer(v, func(v *Vault) { finalize(v) })
	return v
}

func handles(store *Store, db *DB) (Handle, Handle, error) {
	if store == nil || db == nil {
		return 0, 0, ErrNotOpen
	}
	sh, err := store.handle()
	if err != nil {
		return 0, 0, err
	}
	dh, err := db.handle()
	if err != nil {
		return 0, 0, err
	}
	return sh, dh, nil
}

func (l *Library) openVault(r *Result) (*Vault, error) {
	h := r.Handle()
	info, err := decodeStruct[VaultInfo](r)
	if err != nil {
		l.discard(h, "bao_vault_close")
		return nil, err
	}
	if h == 0 {
		return nil, fmt.Errorf("%w: %s returned no handle", ErrDecode, r.name())
	}
	return newVault(l, h, info), nil
}

// CreateVault initialises a new vault in realm on store, owned by the user
// identified by privateID.
func (l *Library) CreateVault(realm, privateID string, store *Store, db *DB, cfg VaultConfig) (*Vault, error) {
	sh, dh, err := handles(store, db)
	if err != nil {
		return nil, err
	}
	enc, err := checkArg(cfg)
	if err != nil {
		return nil, err
	}
	l.log.Info(context.Background(), "creating vault", "realm", realm, "store", store.ID, logging.Redacted("private_id"))
	return l.openVault(l.invoke("bao_vault_create",
		bindings.String(realm), bindings.String(privateID),
		bindings.Long(int64(sh)), bindings.Long(int64(dh)), bindings.String(enc)))
}

// OpenVault opens the vault created by author in realm on store.
func (l *Library) OpenVault(realm, privateID, author string, store *Store, db *DB) (*Vault, error) {
	sh, dh, err := handles(store, db)
	if err != nil {
		return nil, err
	}
	l.log.Info(context.Background(), "opening vault", "realm", realm, "store", store.ID, "author", author, logging.Redacted("private_id"))
	return l.openVault(l.invoke("bao_vault_open",
		bindings.String(realm), bindings.String(privateID), bindings.String(author),
		bindings.Long(int64(sh)), bindings.Long(int64(dh))))
}

// Close releases the vault. It is idempotent.
func (v *Vault) Close() error {
	if v == nil {
		return nil
	}
	runtime.SetFinalizer(v, nil)
	return v.release()
}

func (v *Vault) call(symbol string, args ...bindings.Arg) *Result {
	h, err := v.handle()
	if err != nil {
		return failedResult(symbol, err)
	}
	return v.lib.invoke(symbol, append([]bindings.Arg{bindings.Long(int64(h))}, args...)...)
}

// SyncAccess applies access changes. Access zero revokes.
func (v *Vault) SyncAccess(options IOOption, changes ...AccessChange) error {
	if _, err := v.handle(); err != nil {
		return err
	}
	enc, err := checkArgs(changes)
	if err != nil {
		return err
	}
	return v.call("bao_vault_syncAccess", bindings.Int(int(options)), bindings.String(enc)).Err()
}

// GetAccesses returns the access of every user, keyed by public ID.
func (v *Vault) GetAccesses() (map[string]Access, error) {
	m, err := Value[map[string]Access](v.call("bao_vault_getAccesses"))
	if m == nil && err == nil {
		m = map[string]Access{}
	}
	return m, err
}

// GetAccess returns the access of user.
func (v *Vault) GetAccess(user string) (Access, error) {
	return Value[Access](v.call("bao_vault_getAccess", bindings.String(user)))
}

// Sync pulls remote changes and returns the files that changed.
func (v *Vault) Sync() ([]File, error) {
	return decodeList[File](v.call("bao_vault_sync"))
}

// WaitFiles blocks until the pending I/O on ids completes, or on all pending
// files when ids is empty. The context deadline becomes the native timeout.
func (v *Vault) WaitFiles(ctx context.Context, ids ...int64) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var timeout int64
	if dl, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(dl).Milliseconds(), 1)
	}
	filter := bindings.NullString()
	if len(ids) > 0 {
		enc, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		filter = bindings.String(string(enc))
	}
	return decodeList[File](v.call("bao_vault_waitFiles", bindings.Long(timeout), filter))
}

// SetAttribute sets a per-user attribute on the vault.
func (v *Vault) SetAttribute(options IOOption, name, value string) error {
	return v.call("bao_vault_setAttribute", bindings.Int(int(options)), bindings.String(name), bindings.String(value)).Err()
}

// GetAttribute returns the attribute name set by author.
func (v *Vault) GetAttribute(name, author string) (string, error) {
	return Value[string](v.call("bao_vault_getAttribute", bindings.String(name), bindings.String(author)))
}

// GetAttributes returns every attribute set by author.
func (v *Vault) GetAttributes(author string) (map[string]string, error) {
	return Value[map[string]string](v.call("bao_vault_getAttributes", bindings.String(author)))
}

// ReadDir lists dir. Entries modified before after, or with an id not greater
// than fromID, are skipped. limit zero means no limit.
func (v *Vault) ReadDir(dir string, after time.Time, fromID int64, limit int) ([]File, error) {
	var since int64
	if !after.IsZero() {
		since = after.Unix()
	}
	return decodeList[File](v.call("bao_vault_readDir", bindings.String(dir), bindings.Long(since), bindings.Long(fromID), bindings.Int(limit)))
}

// Stat describes name.
func (v *Vault) Stat(name string) (File, error) {
	return decodeStruct[File](v.call("bao_vault_stat", bindings.String(name)))
}

// GetAuthor returns the public ID of the last writer of name.
func (v *Vault) GetAuthor(name string) (string, error) {
	return Value[string](v.call("bao_vault_getAuthor", bindings.String(name)))
}

// Read decrypts name into the local file dest.
func (v *Vault) Read(name, dest string, options IOOption) (File, error) {
	return decodeStruct[File](v.call("bao_vault_read", bindings.String(name), bindings.String(dest), bindings.Long(int64(options))))
}

// Write encrypts the local file source into the vault as dest. attrs are
// stored alongside the entry and may be empty.
func (v *Vault) Write(dest, source string, attrs []byte, options IOOption) (File, error) {
	h, err := v.handle()
	if err != nil {
		return File{}, err
	}
	d := NewData(attrs)
	defer d.Release()
	a, err := d.arg()
	if err != nil {
		return File{}, err
	}
	return decodeStruct[File](v.lib.invoke("bao_vault_write",
		bindings.Long(int64(h)), bindings.String(dest), bindings.String(source), a, bindings.Long(int64(options))))
}

// Delete removes name from the vault.
func (v *Vault) Delete(name string, options IOOption) error {
	return v.call("bao_vault_delete", bindings.String(name), bindings.Long(int64(options))).Err()
}

// Versions returns every version of name, newest first.
func (v *Vault) Versions(name string) ([]File, error) {
	return decodeList[File](v.call("bao_vault_versions", bindings.String(name)))
}

// AllocatedSize is the number of bytes the vault occupies on its store.
func (v *Vault) AllocatedSize() (int64, error) {
	return Value[int64](v.call("bao_vault_allocatedSize"))
}
