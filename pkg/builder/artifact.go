package builder

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/exeforge/exeforge/pkg/types"
)

// ArtifactPath computes where the packaging tool places its output.
// Single-file mode produces <outDir>/<name><suffix>; directory mode
// produces <outDir>/<name>/<name><suffix>.
func ArtifactPath(singleFile bool, outDir, name string) string {
	exe := name + types.ExecutableSuffix()
	if singleFile {
		return filepath.Join(outDir, exe)
	}
	return filepath.Join(outDir, name, exe)
}

// ArtifactSizeMB measures the artifact in whole megabytes, rounded down.
// Single-file mode measures the file itself; directory mode sums the
// artifact's directory recursively.
func ArtifactSizeMB(artifactPath string, singleFile bool) (int64, error) {
	var total int64

	if singleFile {
		info, err := os.Stat(artifactPath)
		if err != nil {
			return 0, err
		}
		total = info.Size()
		return total / (1 << 20), nil
	}

	root := filepath.Dir(artifactPath)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total / (1 << 20), nil
}
