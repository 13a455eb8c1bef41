package check

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

const target = "github.com/stregato/bao-go/pkg/bao"

func load(t *testing.T) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles | packages.NeedName,
	}
	pkgs, err := packages.Load(cfg, target)
	if err != nil {
		t.Fatalf("load package: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("package %s has errors", target)
	}
	return pkgs
}
