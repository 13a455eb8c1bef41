package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stregato/bao-go/pkg/bao"
	"github.com/stregato/bao-go/pkg/bao/logging"
	"github.com/stregato/bao-go/pkg/bao/mocknative"
)

// rootOptions holds the global flags, merged with the config file before any
// command runs.
type rootOptions struct {
	configPath string
	library    string
	mock       bool
	logLevel   string
	logFile    string
	db         string

	log    logging.Logger
	closer io.Closer
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "bao-go",
		Short:         "Command line access to the bao library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.closer != nil {
				return opts.closer.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+defaultConfigPath()+")")
	flags.StringVar(&opts.library, "lib", "", "path of the native library")
	flags.BoolVar(&opts.mock, "mock", false, "use the in-process mock backend")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	flags.StringVar(&opts.logFile, "log-file", "", "write JSON logs to a rotating file")

	cmd.AddCommand(newVersionCommand(opts))
	cmd.AddCommand(newPingCommand(opts))
	cmd.AddCommand(newIDCommand(opts))
	cmd.AddCommand(newDBCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))
	cmd.AddCommand(newLogCommand(opts))
	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	path, explicit := o.configPath, o.configPath != ""
	if !explicit {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("lib") {
		o.library = cfg.Library
	}
	if !flags.Changed("mock") {
		o.mock = cfg.Mock
	}
	if !flags.Changed("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if !flags.Changed("log-file") {
		o.logFile = cfg.LogFile
	}
	o.db = cfg.DB

	if o.logFile != "" {
		l, c, err := logging.NewFile(o.logFile, logging.FileOptions{Level: o.logLevel, MaxSizeMB: 10, MaxBackups: 3})
		if err != nil {
			return err
		}
		o.log, o.closer = l, c
		return nil
	}
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	o.log = logging.New(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

// open loads the backend selected by the flags. The caller closes it.
func (o *rootOptions) open() (*bao.Library, error) {
	cfg := bao.Config{LibraryPath: o.library, LogLevel: o.logLevel, Logger: o.log}
	if o.mock {
		return bao.New(mocknative.New(), cfg)
	}
	lib, err := bao.Open(cfg)
	if errors.Is(err, bao.ErrNotBuilt) {
		return nil, fmt.Errorf("%w; rebuild with CGO_ENABLED=1 or pass --mock", err)
	}
	return lib, err
}

// withLibrary runs fn on a freshly opened library and closes it afterwards.
func (o *rootOptions) withLibrary(fn func(*bao.Library) error) error {
	lib, err := o.open()
	if err != nil {
		return err
	}
	return errors.Join(fn(lib), lib.Close())
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the binding version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib := opts.library
			if lib == "" {
				lib = "libbao.so (loader search path)"
			}
			if opts.mock {
				lib = "mock"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bao-go %s\nlibrary: %s\n", bao.Version, lib)
			return nil
		},
	}
}

func newPingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Load the library and run its self test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLibrary(func(lib *bao.Library) error {
				if err := lib.Ping(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newSnapshotCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the diagnostic dump of the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLibrary(func(lib *bao.Library) error {
				s, err := lib.Snapshot()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), s.YAML)
				return nil
			})
		},
	}
}

func newLogCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the native log",
	}
	var count int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent native log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLibrary(func(lib *bao.Library) error {
				lines, err := lib.RecentLog(count)
				if err != nil {
					return err
				}
				for _, l := range lines {
					fmt.Fprintln(cmd.OutOrStdout(), l)
				}
				return nil
			})
		},
	}
	recent.Flags().IntVarP(&count, "count", "n", 50, "number of lines")
	cmd.AddCommand(recent)
	return cmd
}
