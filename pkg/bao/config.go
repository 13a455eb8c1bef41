package bao

import (
	"github.com/stregato/bao-go/internal/bindings"
	"github.com/stregato/bao-go/pkg/bao/logging"
)

// Config expresses the knobs required to load the native bao library.
type Config struct {
	// LibraryPath is the shared object passed to dlopen. Leaving it empty lets
	// the dynamic loader search for libbao.so.
	LibraryPath string

	// LogLevel, when set, is forwarded to the native logger right after the
	// library is loaded.
	LogLevel string

	// Logger receives one debug record per native call. Nil selects
	// slog.Default().
	Logger logging.Logger
}

func (c Config) toBindings() bindings.Config {
	return bindings.Config{Path: c.LibraryPath}
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.New(nil)
	}
	return c.Logger
}
