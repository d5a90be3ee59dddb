package pack

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestCopyLicense verifies the license lands under licenses/.
func TestCopyLicense(t *testing.T) {
	sourceDir := t.TempDir()
	packageDir := t.TempDir()
	writeFiles(t, sourceDir, "COPYING.LIB")

	if err := CopyLicense(sourceDir, "COPYING.LIB", packageDir); err != nil {
		t.Fatalf("CopyLicense failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(packageDir, "licenses", "COPYING.LIB"))
	if err != nil {
		t.Fatalf("license missing: %v", err)
	}
	if string(got) != "COPYING.LIB" {
		t.Errorf("license content = %q", got)
	}
}

// TestCopyLicenseMissingSource verifies a missing license file fails.
func TestCopyLicenseMissingSource(t *testing.T) {
	if err := CopyLicense(t.TempDir(), "COPYING", t.TempDir()); err == nil {
		t.Fatal("CopyLicense succeeded without a source file")
	}
}

// TestRename verifies the import-library rename and the missing-artifact
// failure mode.
func TestRename(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "iconv.dll.lib")

	oldPath := filepath.Join(dir, "iconv.dll.lib")
	newPath := filepath.Join(dir, "iconv.lib")
	if err := Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(oldPath); err == nil {
		t.Error("old file still present")
	}

	err := Rename(filepath.Join(dir, "charset.dll.lib"), filepath.Join(dir, "charset.lib"))
	if err == nil {
		t.Fatal("Rename succeeded on a missing artifact")
	}
	if !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("got %v, want ErrArtifactMissing", err)
	}
}

// TestRemoveDir verifies removal and the absent-directory no-op.
func TestRemoveDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "share/doc/readme.txt")

	if err := RemoveDir(filepath.Join(dir, "share")); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "share")); err == nil {
		t.Error("share/ still present")
	}

	if err := RemoveDir(filepath.Join(dir, "absent")); err != nil {
		t.Errorf("RemoveDir on absent dir failed: %v", err)
	}
}

// TestRemoveByMask verifies glob-based cleanup of build byproducts.
func TestRemoveByMask(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"lib/libiconv.la",
		"lib/libcharset.la",
		"lib/libiconv.a",
		"bin/iconv.pdb",
	)

	removed, err := RemoveByMask(filepath.Join(dir, "lib"), "*.la")
	if err != nil {
		t.Fatalf("RemoveByMask failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %d files, want 2: %v", len(removed), removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "lib", "libiconv.a")); err != nil {
		t.Error("non-matching file was removed")
	}

	// An absent root removes nothing and does not fail.
	removed, err = RemoveByMask(filepath.Join(dir, "absent"), "*.la")
	if err != nil {
		t.Fatalf("RemoveByMask on absent root failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed %v from an absent root", removed)
	}
}

// TestCollectLibs verifies link-name extraction across platform suffixes.
func TestCollectLibs(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{
			name:  "static unix",
			files: []string{"lib/libgdk_pixbuf-2.0.a"},
			want:  []string{"gdk_pixbuf-2.0"},
		},
		{
			name:  "shared unix with version suffix",
			files: []string{"lib/libiconv.so.2.6.1", "lib/libiconv.so", "lib/libcharset.so"},
			want:  []string{"charset", "iconv"},
		},
		{
			name:  "msvc import libs",
			files: []string{"lib/iconv.lib", "lib/charset.lib"},
			want:  []string{"charset", "iconv"},
		},
		{
			name:  "mingw import libs",
			files: []string{"lib/libiconv.dll.a"},
			want:  []string{"iconv"},
		},
		{
			name:  "macos",
			files: []string{"lib/libiconv.dylib"},
			want:  []string{"iconv"},
		},
		{
			name:  "ignores non-libraries",
			files: []string{"lib/libiconv.a", "lib/pkgconfig-notes.txt"},
			want:  []string{"iconv"},
		},
		{
			name:  "no lib dir",
			files: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files...)

			got := CollectLibs(dir)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CollectLibs = %v, want %v", got, tt.want)
			}
		})
	}
}
