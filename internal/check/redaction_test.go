package check

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"
	"testing"
)

const loggingPkg = target + "/logging"

// TestPrivateIDsNeverLogged fails when a value whose name mentions a private
// identity is passed to a logger. Such attributes must go through
// logging.Redacted, which takes only the key.
func TestPrivateIDsNeverLogged(t *testing.T) {
	var findings []string

	for _, pkg := range load(t) {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok || !isLoggerMethod(pkg.TypesInfo.Uses[sel.Sel]) {
					return true
				}
				for _, arg := range call.Args {
					if name := privateName(arg); name != "" {
						pos := pkg.Fset.Position(arg.Pos())
						findings = append(findings, fmt.Sprintf("%s: %s logged in clear; use logging.Redacted", pos, name))
					}
				}
				return true
			})
		}
	}

	if len(findings) > 0 {
		t.Fatalf("redaction policy violation:\n%s", strings.Join(findings, "\n"))
	}
}

func isLoggerMethod(obj types.Object) bool {
	fn, ok := obj.(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != loggingPkg {
		return false
	}
	switch fn.Name() {
	case "Debug", "Info", "Warn", "Error", "With":
		return true
	}
	return false
}

func privateName(e ast.Expr) string {
	var name string
	switch v := e.(type) {
	case *ast.Ident:
		name = v.Name
	case *ast.SelectorExpr:
		name = v.Sel.Name
	default:
		return ""
	}
	if strings.Contains(strings.ToLower(name), "private") {
		return name
	}
	return ""
}
