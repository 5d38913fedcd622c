// Package testutil holds import-boundary assertions shared by package tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// ModulePath is the import path prefix of this repository.
const ModulePath = "drugsecure"

// DomainImportForbidden matches imports of the shared domain package.
func DomainImportForbidden(path string) bool {
	return path == ModulePath+"/pkg/domain" || strings.HasSuffix(path, "/pkg/domain")
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// ModuleImportForbidden matches any package of this repository.
func ModuleImportForbidden(path string) bool {
	return path == ModulePath || strings.HasPrefix(path, ModulePath+"/")
}

// AssertNoDirectImports fails if any non-test file in dir imports a path
// matching forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	imports, err := directImports(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var viols []string
	for _, imp := range imports {
		if forbidden(imp.path) {
			viols = append(viols, imp.path+" (in "+imp.file+")")
		}
	}
	failIfViolations(t, "forbidden direct imports detected", reason, viols)
}

// AssertNoTransitiveDependency follows module-local imports starting at dir
// (resolved against root, the directory holding go.mod) and fails if any
// reachable import matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, root, dir string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, err := ImportClosure(root, dir)
	if err != nil {
		t.Fatalf("import closure of %s: %v", dir, err)
	}
	var viols []string
	for _, dep := range deps {
		if forbidden(dep) {
			viols = append(viols, dep)
		}
	}
	failIfViolations(t, "forbidden transitive dependency detected", reason, viols)
}

// ImportClosure returns every import path reachable from the package in dir,
// descending only into packages of this module. The result is sorted.
func ImportClosure(root, dir string) ([]string, error) {
	seen := map[string]bool{}
	visited := map[string]bool{}
	queue := []string{dir}
	for len(queue) > 0 {
		cur := filepath.Clean(queue[0])
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		imports, err := directImports(cur)
		if err != nil {
			return nil, err
		}
		for _, imp := range imports {
			seen[imp.path] = true
			if ModuleImportForbidden(imp.path) {
				rel := strings.TrimPrefix(strings.TrimPrefix(imp.path, ModulePath), "/")
				queue = append(queue, filepath.Join(root, filepath.FromSlash(rel)))
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

type importRef struct {
	path string
	file string
}

func directImports(dir string) ([]importRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var refs []importRef
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			refs = append(refs, importRef{path: strings.Trim(imp.Path.Value, `"`), file: name})
		}
	}
	return refs, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
