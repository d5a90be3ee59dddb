package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestReplaceInFile verifies all occurrences are replaced.
func TestReplaceInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meson.build")
	content := "subdir('tests')\nsubdir('docs')\nsubdir('tests')\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceInFile(path, "subdir('tests')", "#subdir('tests')"); err != nil {
		t.Fatalf("ReplaceInFile failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "#subdir('tests')\nsubdir('docs')\n#subdir('tests')\n"
	if string(got) != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

// TestReplaceInFileMissingMatch verifies the edit fails hard when the match
// target is absent.
func TestReplaceInFileMissingMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure")
	if err := os.WriteFile(path, []byte("nothing to see here\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := ReplaceInFile(path, "-install_name \\$rpath/", "-install_name @rpath/")
	if err == nil {
		t.Fatal("ReplaceInFile succeeded with an absent match")
	}
	if !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("got %v, want ErrMatchNotFound", err)
	}

	// The file must be untouched after a failed edit.
	got, _ := os.ReadFile(path)
	if string(got) != "nothing to see here\n" {
		t.Errorf("file modified after failed edit: %q", got)
	}
}

// TestReplaceInFilePreservesMode verifies the file mode survives the rewrite.
func TestReplaceInFilePreservesMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure")
	if err := os.WriteFile(path, []byte("-install_name \\$rpath/\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceInFile(path, "\\$rpath/", "@rpath/"); err != nil {
		t.Fatalf("ReplaceInFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

// TestReplaceInFileMissingFile verifies a missing file surfaces as an error.
func TestReplaceInFileMissingFile(t *testing.T) {
	err := ReplaceInFile(filepath.Join(t.TempDir(), "absent"), "a", "b")
	if err == nil {
		t.Fatal("ReplaceInFile succeeded on a missing file")
	}
	if errors.Is(err, ErrMatchNotFound) {
		t.Error("missing file misreported as missing match")
	}
}
