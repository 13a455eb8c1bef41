package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/stregato/bao-go/pkg/bao"
)

const keyringService = "bao-go"

func newIDCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Create and manage identities",
	}
	cmd.AddCommand(newIDNewCommand(opts))
	cmd.AddCommand(newIDPublicCommand(opts))
	cmd.AddCommand(newIDSaveCommand(opts))
	cmd.AddCommand(newIDShowCommand(opts))
	return cmd
}

func newIDNewCommand(opts *rootOptions) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withLibrary(func(lib *bao.Library) error {
				kp, err := lib.NewKeyPair()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "public:  %s\n", kp.PublicID)
				if save != "" {
					if err := keyring.Set(keyringService, save, kp.PrivateID); err != nil {
						return fmt.Errorf("save %s to keyring: %w", save, err)
					}
					fmt.Fprintf(out, "private: saved to keyring as %s\n", save)
					return nil
				}
				fmt.Fprintf(out, "private: %s\n", kp.PrivateID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "store the private ID in the OS keyring under this name instead of printing it")
	return cmd
}

func newIDPublicCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "public [private-id]",
		Short: "Derive the public ID of a private ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := privateIDArg(cmd, args)
			if err != nil {
				return err
			}
			return opts.withLibrary(func(lib *bao.Library) error {
				return printPublic(cmd.OutOrStdout(), lib, priv)
			})
		},
	}
}

func newIDSaveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name>",
		Short: "Store a private ID in the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := privateIDArg(cmd, nil)
			if err != nil {
				return err
			}
			return opts.withLibrary(func(lib *bao.Library) error {
				if _, err := lib.DecodePrivateID(priv); err != nil {
					return err
				}
				if err := keyring.Set(keyringService, args[0], priv); err != nil {
					return fmt.Errorf("save %s to keyring: %w", args[0], err)
				}
				return printPublic(cmd.OutOrStdout(), lib, priv)
			})
		},
	}
}

func newIDShowCommand(opts *rootOptions) *cobra.Command {
	var private bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the public ID of an identity stored in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := keyring.Get(keyringService, args[0])
			if err != nil {
				return fmt.Errorf("read %s from keyring: %w", args[0], err)
			}
			if private {
				fmt.Fprintln(cmd.OutOrStdout(), priv)
				return nil
			}
			return opts.withLibrary(func(lib *bao.Library) error {
				return printPublic(cmd.OutOrStdout(), lib, priv)
			})
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "print the private ID instead of the public one")
	return cmd
}

func printPublic(w io.Writer, lib *bao.Library, priv string) error {
	pub, err := lib.PublicID(priv)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, pub)
	return nil
}

// privateIDArg returns the private ID given on the command line, or reads it
// from stdin without echo when stdin is a terminal.
func privateIDArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "private ID: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return "", fmt.Errorf("no private ID on stdin")
	}
	return line, nil
}
