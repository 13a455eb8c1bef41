package main

import (
	"fmt"
	"os"

	"github.com/stregato/bao-go/pkg/bao"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if bao.HasCode(err, bao.AccessDenied, bao.AuthError) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
