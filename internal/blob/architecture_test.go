package blob

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// TestOnlyBlobPackageImportsInfra keeps callers on the blob.Store interface:
// only internal/blob may import the infra backends.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	const infraPrefix = "drugsecure/internal/infra/blob"
	root := filepath.Join("..", "..")
	allowed := []string{
		filepath.Join(root, "internal", "blob"),
		filepath.Join(root, "internal", "infra", "blob"),
	}

	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || (strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			for _, a := range allowed {
				if path == a {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range f.Imports {
			p, _ := strconv.Unquote(imp.Path.Value)
			if p == infraPrefix || strings.HasPrefix(p, infraPrefix+"/") {
				t.Errorf("%s: forbidden import of %s", path, p)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk module: %v", err)
	}
}
