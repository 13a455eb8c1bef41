package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stregato/bao-go/pkg/bao"
)

type dbOptions struct {
	path string
	args []string
	max  int
}

func newDBCommand(opts *rootOptions) *cobra.Command {
	dbo := &dbOptions{}
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Run SQL on a local bao database",
	}
	cmd.PersistentFlags().StringVar(&dbo.path, "db", "", "sqlite3 database (default from config, then the user config dir)")
	cmd.PersistentFlags().StringArrayVar(&dbo.args, "arg", nil, "named parameter as name=value, repeatable")

	cmd.AddCommand(&cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a statement that returns no rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dbo.run(opts, func(db *bao.DB, sqlArgs bao.Args) error {
				return db.Exec(args[0], sqlArgs)
			})
		},
	})

	fetch := &cobra.Command{
		Use:   "fetch <sql>",
		Short: "Run a query and print one JSON array per row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dbo.run(opts, func(db *bao.DB, sqlArgs bao.Args) error {
				rows, err := db.Fetch(args[0], sqlArgs, dbo.max)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range rows {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	fetch.Flags().IntVar(&dbo.max, "max", 0, "maximum number of rows (0 selects the library default)")
	cmd.AddCommand(fetch)
	return cmd
}

func (d *dbOptions) run(opts *rootOptions, fn func(*bao.DB, bao.Args) error) error {
	sqlArgs, err := parseArgs(d.args)
	if err != nil {
		return err
	}
	return opts.withLibrary(func(lib *bao.Library) error {
		db, err := d.open(opts, lib)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db, sqlArgs)
	})
}

func (d *dbOptions) open(opts *rootOptions, lib *bao.Library) (*bao.DB, error) {
	path := d.path
	if path == "" {
		path = opts.db
	}
	if path == "" {
		return lib.DefaultDB()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	return lib.OpenDB("sqlite3", path, "")
}

// parseArgs turns name=value pairs into SQL parameters. Values that parse as
// integers or floats are bound as numbers.
func parseArgs(pairs []string) (bao.Args, error) {
	out := bao.Args{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q, want name=value", p)
		}
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[name] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[name] = f
		} else {
			out[name] = value
		}
	}
	return out, nil
}
