package cluster

import (
	"testing"

	"drugsecure/testutil"
)

func TestClusterHasNoModuleImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportForbidden, "k-means works on plain float matrices")
}
