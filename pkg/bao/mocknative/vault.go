package mocknative

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var vaultEntries = map[string]entry{
	"bao_vault_create":        {"sslls", vaultCreate},
	"bao_vault_open":          {"sssll", vaultOpen},
	"bao_vault_close":         {"l", vaultClose},
	"bao_vault_syncAccess":    {"lis", vaultSyncAccess},
	"bao_vault_getAccesses":   {"l", vaultGetAccesses},
	"bao_vault_getAccess":     {"ls", vaultGetAccess},
	"bao_vault_sync":          {"l", vaultSync},
	"bao_vault_waitFiles":     {"lls", vaultWaitFiles},
	"bao_vault_setAttribute":  {"liss", vaultSetAttribute},
	"bao_vault_getAttribute":  {"lss", vaultGetAttribute},
	"bao_vault_getAttributes": {"ls", vaultGetAttributes},
	"bao_vault_readDir":       {"lslli", vaultReadDir},
	"bao_vault_stat":          {"ls", vaultStat},
	"bao_vault_getAuthor":     {"ls", vaultGetAuthor},
	"bao_vault_read":          {"lssl", vaultRead},
	"bao_vault_write":         {"lssdl", vaultWrite},
	"bao_vault_delete":        {"lsl", vaultDelete},
	"bao_vault_versions":      {"ls", vaultVersions},
	"bao_vault_allocatedSize": {"l", vaultAllocatedSize},
}

// creatorAccess is recorded for the user that creates a vault.
const creatorAccess = 7

type file struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Realm         string    `json:"realm"`
	Size          int64     `json:"size"`
	AllocatedSize int64     `json:"allocatedSize"`
	ModTime       time.Time `json:"modTime"`
	IsDir         bool      `json:"isDir"`
	Flags         uint32    `json:"flags"`
	Attrs         []byte    `json:"attrs,omitempty"`
	LocalCopy     string    `json:"local,omitempty"`
	KeyID         uint64    `json:"keyId"`
	StoreDir      string    `json:"storeDir"`
	StoreName     string    `json:"storeName"`
	AuthorID      string    `json:"authorId"`
}

type accessChange struct {
	UserID string `json:"userId"`
	Access int    `json:"access"`
}

// vaultState is shared by every session opened on the same store and realm.
// It records what the calls carry; no access rule is enforced.
type vaultState struct {
	id       string
	realm    string
	author   string
	config   json.RawMessage
	access   map[string]int
	attrs    map[string]map[string]string
	versions map[string][]file
	nextID   int64
}

func (s *vaultState) latest(name string) (file, bool) {
	vs := s.versions[name]
	if len(vs) == 0 {
		return file{}, false
	}
	return vs[len(vs)-1], true
}

// vault is one open session on a vaultState.
type vault struct {
	state    *vaultState
	user     string
	store    *blobStore
	lastSync int64
}

func (v *vault) info() map[string]any {
	return map[string]any{
		"id":     v.state.id,
		"userId": v.user,
		"author": v.state.author,
		"realm":  v.state.realm,
		"config": v.state.config,
	}
}

func vaultKey(storeID, realm string) string { return storeID + "/" + realm }

func sessionInputs(n *Native, a argv, privateIdx, storeIdx, dbIdx int) (identity, *blobStore, error) {
	id, err := parsePrivate(a.s(privateIdx))
	if err != nil {
		return identity{}, nil, errorf(AuthError, err, "invalid private ID")
	}
	s, err := lookup[*blobStore](n, a.h(storeIdx), "store")
	if err != nil {
		return identity{}, nil, err
	}
	if _, err := lookup[*database](n, a.h(dbIdx), "db"); err != nil {
		return identity{}, nil, err
	}
	return id, s, nil
}

func vaultCreate(n *Native, a argv) reply {
	realm := a.s(0)
	id, s, err := sessionInputs(n, a, 1, 2, 3)
	if err != nil {
		return fail(err)
	}
	k := vaultKey(s.id, realm)
	if _, ok := n.vaults[k]; ok {
		return fail(errorf(FileError, os.ErrExist, "vault %s already exists", k))
	}
	cfg := json.RawMessage(a.s(4))
	if !json.Valid(cfg) {
		return fail(errorf(ParseError, nil, "invalid vault config"))
	}
	user := id.public()
	st := &vaultState{
		id:       uuid.NewString(),
		realm:    realm,
		author:   user,
		config:   cfg,
		access:   map[string]int{user: creatorAccess},
		attrs:    map[string]map[string]string{},
		versions: map[string][]file{},
	}
	n.vaults[k] = st
	v := &vault{state: st, user: user, store: s}
	return opened(n.register("vault", v), v.info())
}

func vaultOpen(n *Native, a argv) reply {
	realm := a.s(0)
	id, s, err := sessionInputs(n, a, 1, 3, 4)
	if err != nil {
		return fail(err)
	}
	st, ok := n.vaults[vaultKey(s.id, realm)]
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "no vault in realm %s on store %s", realm, s.id))
	}
	v := &vault{state: st, user: id.public(), store: s}
	return opened(n.register("vault", v), v.info())
}

func vaultClose(n *Native, a argv) reply {
	if _, err := n.unregister(a.h(0), "vault"); err != nil {
		return fail(err)
	}
	return none()
}

// withVault resolves the session in the first argument.
func withVault(fn func(*Native, *vault, argv) reply) func(*Native, argv) reply {
	return func(n *Native, a argv) reply {
		v, err := lookup[*vault](n, a.h(0), "vault")
		if err != nil {
			return fail(err)
		}
		return fn(n, v, a)
	}
}

var (
	vaultSyncAccess    = withVault(syncAccess)
	vaultGetAccesses   = withVault(getAccesses)
	vaultGetAccess     = withVault(getAccess)
	vaultSync          = withVault(syncFiles)
	vaultWaitFiles     = withVault(waitFiles)
	vaultSetAttribute  = withVault(setAttribute)
	vaultGetAttribute  = withVault(getAttribute)
	vaultGetAttributes = withVault(getAttributes)
	vaultReadDir       = withVault(readDir)
	vaultStat          = withVault(stat)
	vaultGetAuthor     = withVault(getAuthor)
	vaultRead          = withVault(readFile)
	vaultWrite         = withVault(writeFile)
	vaultDelete        = withVault(deleteFile)
	vaultVersions      = withVault(versions)
	vaultAllocatedSize = withVault(allocatedSize)
)

func syncAccess(_ *Native, v *vault, a argv) reply {
	var changes []accessChange
	if err := json.Unmarshal([]byte(a.s(2)), &changes); err != nil {
		return fail(errorf(ParseError, err, "cannot parse access changes"))
	}
	for _, c := range changes {
		if c.Access == 0 {
			delete(v.state.access, c.UserID)
			continue
		}
		v.state.access[c.UserID] = c.Access
	}
	return none()
}

func getAccesses(_ *Native, v *vault, _ argv) reply {
	out := make(map[string]int, len(v.state.access))
	for k, a := range v.state.access {
		out[k] = a
	}
	return value(out)
}

func getAccess(_ *Native, v *vault, a argv) reply {
	return value(v.state.access[a.s(1)])
}

// syncFiles returns the versions written since the session last synced.
func syncFiles(_ *Native, v *vault, _ argv) reply {
	out := []file{}
	for _, vs := range v.state.versions {
		for _, f := range vs {
			if f.ID > v.lastSync {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > 0 {
		v.lastSync = out[len(out)-1].ID
	}
	return value(out)
}

// waitFiles returns the versions named by the id filter. Every write
// completes inline, so a NULL filter has nothing to wait for.
func waitFiles(_ *Native, v *vault, a argv) reply {
	out := []file{}
	if a.null(2) {
		return value(out)
	}
	var ids []int64
	if err := json.Unmarshal([]byte(a.s(2)), &ids); err != nil {
		return fail(errorf(ParseError, err, "cannot parse file ids"))
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, vs := range v.state.versions {
		for _, f := range vs {
			if want[f.ID] {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return value(out)
}

func setAttribute(_ *Native, v *vault, a argv) reply {
	m := v.state.attrs[v.user]
	if m == nil {
		m = map[string]string{}
		v.state.attrs[v.user] = m
	}
	m[a.s(2)] = a.s(3)
	return none()
}

func getAttribute(_ *Native, v *vault, a argv) reply {
	name, author := a.s(1), a.s(2)
	val, ok := v.state.attrs[author][name]
	if !ok {
		return fail(errorf(DbError, nil, "attribute %s not set", name))
	}
	return value(val)
}

func getAttributes(_ *Native, v *vault, a argv) reply {
	out := map[string]string{}
	for k, val := range v.state.attrs[a.s(1)] {
		out[k] = val
	}
	return value(out)
}

func cleanName(name string) string {
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// parentDir is the directory of a clean vault name, "" for the root.
func parentDir(name string) string {
	if d := path.Dir(name); d != "." {
		return d
	}
	return ""
}

func readDir(_ *Native, v *vault, a argv) reply {
	dir := cleanName(a.s(1))
	since, fromID, limit := a.l(2), a.l(3), a.i(4)
	out := []file{}
	for name := range v.state.versions {
		if parentDir(name) != dir {
			continue
		}
		f, _ := v.state.latest(name)
		if since > 0 && f.ModTime.Unix() < since {
			continue
		}
		if f.ID <= fromID {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return value(out)
}

func stat(_ *Native, v *vault, a argv) reply {
	f, ok := v.state.latest(cleanName(a.s(1)))
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "cannot stat %s", a.s(1)))
	}
	return value(f)
}

func getAuthor(_ *Native, v *vault, a argv) reply {
	f, ok := v.state.latest(cleanName(a.s(1)))
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "cannot find %s", a.s(1)))
	}
	return value(f.AuthorID)
}

func (v *vault) blobName(id int64) string {
	return path.Join("vaults", v.state.realm, strconv.FormatInt(id, 10))
}

// put stores body as a new version of name. Bodies are kept as sent.
func (v *vault) put(name string, body, attrs []byte) (file, error) {
	v.state.nextID++
	f := file{
		ID:            v.state.nextID,
		Name:          name,
		Realm:         v.state.realm,
		Size:          int64(len(body)),
		AllocatedSize: int64(len(body)),
		ModTime:       time.Now().UTC(),
		Attrs:         attrs,
		StoreDir:      path.Join("vaults", v.state.realm),
		StoreName:     strconv.FormatInt(v.state.nextID, 10),
		AuthorID:      v.user,
	}
	if err := v.store.put(v.blobName(f.ID), body); err != nil {
		return file{}, errorf(FileError, err, "cannot store %s", name)
	}
	v.state.versions[name] = append(v.state.versions[name], f)
	return f, nil
}

func (v *vault) get(f file) ([]byte, error) {
	body, err := v.store.get(v.blobName(f.ID))
	if err != nil {
		return nil, errorf(FileError, err, "cannot load %s", f.Name)
	}
	return body, nil
}

func readFile(_ *Native, v *vault, a argv) reply {
	name, dest := cleanName(a.s(1)), a.s(2)
	f, ok := v.state.latest(name)
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "cannot find %s", a.s(1)))
	}
	body, err := v.get(f)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(dest, body, 0o600); err != nil {
		return fail(errorf(FileError, err, "cannot write %s", dest))
	}
	f.LocalCopy = dest
	return value(f)
}

func writeFile(_ *Native, v *vault, a argv) reply {
	dest, source := cleanName(a.s(1)), a.s(2)
	if dest == "" {
		return fail(errorf(FileError, nil, "empty destination"))
	}
	body, err := os.ReadFile(source)
	if err != nil {
		return fail(errorf(FileError, err, "cannot read %s", source))
	}
	attrs := a.d(3)
	if len(attrs) == 0 {
		attrs = nil
	}
	f, err := v.put(dest, body, attrs)
	if err != nil {
		return fail(err)
	}
	return value(f)
}

func deleteFile(_ *Native, v *vault, a argv) reply {
	name := cleanName(a.s(1))
	vs, ok := v.state.versions[name]
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "cannot find %s", a.s(1)))
	}
	for _, f := range vs {
		if err := v.store.remove(v.blobName(f.ID)); err != nil {
			return fail(errorf(FileError, err, "cannot delete %s", name))
		}
	}
	delete(v.state.versions, name)
	return none()
}

func versions(_ *Native, v *vault, a argv) reply {
	vs := v.state.versions[cleanName(a.s(1))]
	out := make([]file, 0, len(vs))
	for i := len(vs) - 1; i >= 0; i-- {
		out = append(out, vs[i])
	}
	return value(out)
}

func allocatedSize(_ *Native, v *vault, _ argv) reply {
	var total int64
	for _, vs := range v.state.versions {
		for _, f := range vs {
			total += f.AllocatedSize
		}
	}
	return value(total)
}
