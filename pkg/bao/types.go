package bao

import (
	"encoding/json"
	"time"
)

// Access is the permission bitmask granted to a user on a vault.
type Access int

const (
	Read           Access = 1
	Write          Access = 2
	Admin          Access = 4
	ReadWrite             = Read | Write
	ReadWriteAdmin        = Read | Write | Admin
)

// IOOption selects how a vault operation is carried out.
type IOOption int

const (
	// AsyncOperation returns as soon as the request is queued.
	AsyncOperation IOOption = 1
	// ScheduledOperation defers the operation to the next housekeeping pass.
	ScheduledOperation IOOption = 2
)

// FileFlags describes the state of a vault entry.
type FileFlags uint32

const (
	PendingWrite FileFlags = 1 << iota
	PendingRead
	Deleted
)

// Well known vault realms.
const (
	RealmUsers = "users"
	RealmHome  = "home"
	RealmAll   = "all"
)

// AccessChange grants or revokes access for one user.
type AccessChange struct {
	UserID string `json:"userId" validate:"required"`
	Access Access `json:"access" validate:"gte=0,lte=7"`
}

// File is a vault entry as reported by the native library.
type File struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Realm         string    `json:"realm"`
	Size          int64     `json:"size" validate:"gte=0"`
	AllocatedSize int64     `json:"allocatedSize" validate:"gte=0"`
	ModTime       time.Time `json:"modTime"`
	IsDir         bool      `json:"isDir"`
	Flags         FileFlags `json:"flags"`
	Attrs         []byte    `json:"attrs,omitempty"`
	LocalCopy     string    `json:"local,omitempty"`
	KeyID         uint64    `json:"keyId"`
	StoreDir      string    `json:"storeDir"`
	StoreName     string    `json:"storeName"`
	AuthorID      string    `json:"authorId"`
}

// Message is a mailbox message. Attachments are local paths on send and
// vault names on receive.
type Message struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments" validate:"dive,required"`
	FileInfo    *File    `json:"fileInfo,omitempty"`
}

// VaultConfig tunes a vault at creation time. Zero fields select the native
// defaults.
type VaultConfig struct {
	SyncRelay            string        `json:"syncRelay,omitempty" validate:"omitempty,url"`
	Retention            time.Duration `json:"retention,omitempty" validate:"gte=0"`
	MaxStorage           int64         `json:"maxStorage,omitempty" validate:"gte=0"`
	SegmentInterval      time.Duration `json:"segmentInterval,omitempty" validate:"gte=0"`
	SyncCooldown         time.Duration `json:"syncCooldown,omitempty" validate:"gte=0"`
	WaitTimeout          time.Duration `json:"waitTimeout,omitempty" validate:"gte=0"`
	FilesSyncPeriod      time.Duration `json:"filesSyncPeriod,omitempty" validate:"gte=0"`
	CleanupPeriod        time.Duration `json:"cleanupPeriod,omitempty" validate:"gte=0"`
	BlockChainSyncPeriod time.Duration `json:"blockChainSyncPeriod,omitempty" validate:"gte=0"`
	IoThrottle           int64         `json:"ioThrottle,omitempty" validate:"gte=0"`
}

// VaultInfo is the description returned when a vault is created or opened.
type VaultInfo struct {
	ID     string          `json:"id" validate:"required"`
	UserID string          `json:"userId"`
	Author string          `json:"author"`
	Realm  string          `json:"realm"`
	Config json.RawMessage `json:"config,omitempty"`
}

// StoreConfig selects and configures a storage backend.
type StoreConfig struct {
	ID     string       `json:"id" validate:"required"`
	Type   string       `json:"type" validate:"required,oneof=s3 sftp azure local file dav webdav mem relay"`
	S3     S3Config     `json:"s3"`
	SFTP   SFTPConfig   `json:"sftp"`
	Azure  AzureConfig  `json:"azure"`
	Local  LocalConfig  `json:"local"`
	WebDAV WebDAVConfig `json:"webdav"`
	Relay  RelayConfig  `json:"relay"`
}

type S3Config struct {
	Endpoint string       `json:"endpoint"`
	Region   string       `json:"region"`
	Bucket   string       `json:"bucket"`
	Prefix   string       `json:"prefix"`
	Auth     S3ConfigAuth `json:"auth"`
	Verbose  int          `json:"verbose"`
	Proxy    string       `json:"proxy"`
}

type S3ConfigAuth struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

type SFTPConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	KeyFile  string `json:"keyFile"`
	BasePath string `json:"basePath"`
	Verbose  int    `json:"verbose"`
}

type AzureConfig struct {
	AccountName string `json:"accountName"`
	AccountKey  string `json:"accountKey"`
	Share       string `json:"share"`
	BasePath    string `json:"basePath"`
	Verbose     int    `json:"verbose"`
}

type LocalConfig struct {
	Base string `json:"base"`
}

type WebDAVConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	BasePath string `json:"basePath"`
	Verbose  int    `json:"verbose"`
	HTTPS    bool   `json:"https"`
}

type RelayConfig struct {
	URL       string `json:"url"`
	PrivateID string `json:"privateId"`
}

// Filter narrows a store directory listing.
type Filter struct {
	Prefix      string    `json:"prefix,omitempty"`
	Suffix      string    `json:"suffix,omitempty"`
	AfterName   string    `json:"afterName,omitempty"`
	After       time.Time `json:"after,omitempty"`
	MaxResults  int64     `json:"maxResults,omitempty" validate:"gte=0"`
	OnlyFiles   bool      `json:"onlyFiles,omitempty" validate:"excluded_with=OnlyFolders"`
	OnlyFolders bool      `json:"onlyFolders,omitempty"`
}

// StoreEntry is one item of a store listing.
type StoreEntry struct {
	Name    string    `json:"name" validate:"required"`
	Size    int64     `json:"size" validate:"gte=0"`
	ModTime time.Time `json:"modTime"`
	IsDir   bool      `json:"isDir"`
}

// KeyPair is a freshly generated identity.
type KeyPair struct {
	PublicID  string `json:"publicID" validate:"required"`
	PrivateID string `json:"privateID" validate:"required"`
}

// Keys are the raw key bytes inside an identity: the secp256k1 encryption
// key and the ed25519 signing key.
type Keys struct {
	CryptKey []byte
	SignKey  []byte
}

type wireKeys struct {
	CryptKey string `json:"cryptKey" validate:"required,base64url"`
	SignKey  string `json:"signKey" validate:"required,base64url"`
}
