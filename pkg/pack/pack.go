// Package pack shapes the final package tree: license placement, artifact
// renames to platform conventions, and removal of non-redistributable build
// byproducts.
package pack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrArtifactMissing reports that an expected artifact was absent during
// packaging. Packaging inconsistencies are fatal; the output tree is left
// for inspection.
var ErrArtifactMissing = errors.New("expected artifact missing")

// CopyLicense copies a license file from the source tree into the package's
// licenses/ directory.
func CopyLicense(sourceDir, fileName, packageDir string) error {
	src := filepath.Join(sourceDir, fileName)
	dstDir := filepath.Join(packageDir, "licenses")
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	return copyFile(src, filepath.Join(dstDir, fileName))
}

// Rename moves an artifact to its platform-conventional name. A missing
// source artifact is a packaging inconsistency, not a no-op.
func Rename(oldPath, newPath string) error {
	if _, err := os.Stat(oldPath); err != nil {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, oldPath)
	}
	return os.Rename(oldPath, newPath)
}

// RemoveDir deletes a directory tree. Removing an absent directory is fine.
func RemoveDir(path string) error {
	return os.RemoveAll(path)
}

// RemoveByMask deletes every file under root whose base name matches the
// glob pattern, returning the removed paths.
func RemoveByMask(root, pattern string) ([]string, error) {
	var removed []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed = append(removed, path)
		}
		return nil
	})
	return removed, err
}

// CollectLibs scans the package's lib directory and returns the produced
// library names with platform prefixes and suffixes stripped, sorted and
// deduplicated.
func CollectLibs(packageDir string) []string {
	libDir := filepath.Join(packageDir, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := libName(entry.Name())
		if ok {
			seen[name] = true
		}
	}

	libs := make([]string, 0, len(seen))
	for name := range seen {
		libs = append(libs, name)
	}
	sort.Strings(libs)
	return libs
}

// libName maps a library file name to its link name, or ok=false for
// non-library files.
func libName(file string) (string, bool) {
	switch {
	case strings.HasSuffix(file, ".dll.a"):
		return strings.TrimSuffix(strings.TrimPrefix(file, "lib"), ".dll.a"), true
	case strings.HasSuffix(file, ".a"):
		return strings.TrimSuffix(strings.TrimPrefix(file, "lib"), ".a"), true
	case strings.HasSuffix(file, ".lib"):
		return strings.TrimSuffix(file, ".lib"), true
	case strings.HasSuffix(file, ".dylib"):
		return strings.TrimSuffix(strings.TrimPrefix(file, "lib"), ".dylib"), true
	case strings.Contains(file, ".so"):
		name := strings.TrimPrefix(file, "lib")
		if idx := strings.Index(name, ".so"); idx >= 0 {
			return name[:idx], true
		}
		return "", false
	default:
		return "", false
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
