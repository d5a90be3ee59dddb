package buildsys

import "strings"

// UnixPath converts a Windows path to the MSYS form expected by
// POSIX-oriented build tooling: C:\a\b becomes /c/a/b.
func UnixPath(path string) string {
	if path == "" {
		return path
	}
	path = strings.ReplaceAll(path, `\`, "/")
	if len(path) >= 2 && path[1] == ':' {
		drive := strings.ToLower(path[:1])
		path = "/" + drive + path[2:]
	}
	return path
}
