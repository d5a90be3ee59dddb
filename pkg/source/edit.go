package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMatchNotFound reports that a textual edit's match target is absent from
// the file. Edits never no-op silently: a vanished workaround target means
// the workaround itself must be revisited.
var ErrMatchNotFound = errors.New("edit target not found")

// ReplaceInFile replaces every occurrence of match in the file at path.
// The match text must be present; otherwise the edit fails with
// ErrMatchNotFound.
func ReplaceInFile(path, match, replace string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(raw)
	if !strings.Contains(content, match) {
		return fmt.Errorf("%w: %q in %s", ErrMatchNotFound, match, filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	content = strings.ReplaceAll(content, match, replace)
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}
