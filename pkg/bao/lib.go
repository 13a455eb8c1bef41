package bao

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stregato/bao-go/internal/bindings"
	"github.com/stregato/bao-go/pkg/bao/logging"
)

var (
	// ErrNotBuilt reports a binary compiled without the cgo backend.
	ErrNotBuilt = bindings.ErrNotBuilt

	// ErrSymbolNotFound reports an entry point missing from the loaded library.
	ErrSymbolNotFound = bindings.ErrSymbolNotFound
)

// Library is an opened bao backend. Every adapter method performs exactly one
// native call and consumes its Result before returning.
type Library struct {
	native Native
	log    logging.Logger
	closed atomic.Bool
}

// Open loads the native library described by cfg.
func Open(cfg Config) (*Library, error) {
	n, err := bindings.Open(cfg.toBindings())
	if err != nil {
		return nil, err
	}
	lib, err := New(n, cfg)
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	return lib, nil
}

// New wraps an already loaded backend. cfg.LibraryPath is ignored.
func New(native Native, cfg Config) (*Library, error) {
	if native == nil {
		return nil, ErrNilNative
	}
	l := &Library{native: native, log: cfg.logger()}
	if cfg.LogLevel != "" {
		if err := l.SetLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Close unloads the backend. Wrappers still holding handles fail with
// ErrLibraryClosed afterwards. A second Close returns ErrLibraryClosed.
func (l *Library) Close() error {
	if l == nil {
		return nil
	}
	if !l.closed.CompareAndSwap(false, true) {
		return ErrLibraryClosed
	}
	return l.native.Close()
}

// Logger returns the logger the library reports native calls to.
func (l *Library) Logger() logging.Logger { return l.log }

func (l *Library) invoke(symbol string, args ...bindings.Arg) *Result {
	if l.closed.Load() {
		return failedResult(symbol, ErrLibraryClosed)
	}
	start := time.Now()
	env, err := l.native.Call(symbol, args...)
	if err != nil {
		l.log.Debug(context.Background(), "native call failed", "symbol", symbol, "error", err)
		return failedResult(symbol, err)
	}
	l.log.Debug(context.Background(), "native call",
		"symbol", symbol,
		"signature", bindings.Signature(args),
		"elapsed", time.Since(start),
		"handle", uint64(env.Hnd),
		"native_error", env.Err != nil,
	)
	return &Result{env: env, free: l.native.Free, symbol: symbol}
}

// SetLogLevel changes the verbosity of the native logger.
func (l *Library) SetLogLevel(level string) error {
	if _, err := logging.ParseLevel(level); err != nil {
		return err
	}
	return l.invoke("bao_setLogLevel", bindings.String(level)).Err()
}

// SetHttpLog exposes the native recent-log buffer over HTTP at addr. An empty
// addr stops the listener.
func (l *Library) SetHttpLog(addr string) error {
	return l.invoke("bao_core_setHttpLog", bindings.String(addr)).Err()
}

// RecentLog returns up to n of the most recent native log lines.
func (l *Library) RecentLog(n int) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("bao: negative log count %d", n)
	}
	return Value[[]string](l.invoke("bao_core_getRecentLog", bindings.Int(n)))
}

// Ping calls the native self test, a round trip that returns no value.
func (l *Library) Ping() error {
	return l.invoke("bao_test").Err()
}

// Snapshot is the native diagnostic dump: a YAML document describing open
// resources and runtime statistics.
type Snapshot struct {
	YAML   string
	Values map[string]any
}

// Snapshot fetches and parses the diagnostic dump.
func (l *Library) Snapshot() (*Snapshot, error) {
	text, err := Value[string](l.invoke("bao_snapshot"))
	if err != nil {
		return nil, err
	}
	s := &Snapshot{YAML: text, Values: map[string]any{}}
	if err := yaml.Unmarshal([]byte(text), &s.Values); err != nil {
		return nil, fmt.Errorf("%w: bao_snapshot: %v", ErrDecode, err)
	}
	return s, nil
}
