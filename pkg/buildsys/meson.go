package buildsys

import (
	"context"
	"fmt"
	"sort"
)

// Meson drives a Meson build: setup with -D option definitions, then ninja
// for build and install. Parallelism is ninja's own; Meson itself is never
// parallelized here.
type Meson struct {
	// Exec runs the meson and ninja invocations.
	Exec Executor

	// SourceDir is the project source directory.
	SourceDir string

	// BuildDir is the out-of-tree build directory.
	BuildDir string

	// Prefix is the install prefix passed to meson setup.
	Prefix string

	// Defs are the -Dname=value option definitions, emitted in sorted order.
	Defs map[string]string

	// Args are extra setup arguments, such as --wrap-mode=nofallback.
	Args []string

	// PkgConfigPath is prepended to PKG_CONFIG_PATH for dependency lookup
	// during setup, when set.
	PkgConfigPath string
}

// Configure runs meson setup.
func (m *Meson) Configure(ctx context.Context) error {
	args := []string{"setup"}
	if m.Prefix != "" {
		args = append(args, "--prefix="+m.Prefix)
	}
	args = append(args, m.Args...)

	names := make([]string, 0, len(m.Defs))
	for name := range m.Defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, fmt.Sprintf("-D%s=%s", name, m.Defs[name]))
	}

	args = append(args, m.BuildDir, m.SourceDir)

	var env map[string]string
	if m.PkgConfigPath != "" {
		env = map[string]string{"PKG_CONFIG_PATH": m.PkgConfigPath}
	}
	return m.Exec.Run(ctx, Command{Name: "meson", Args: args, Env: env})
}

// Build runs ninja in the build directory.
func (m *Meson) Build(ctx context.Context) error {
	return m.Exec.Run(ctx, Command{Name: "ninja", Args: []string{"-C", m.BuildDir}})
}

// Install runs ninja install with the given environment overrides. The
// overrides let just-built shared libraries resolve while install-time
// helpers run.
func (m *Meson) Install(ctx context.Context, env map[string]string) error {
	return m.Exec.Run(ctx, Command{
		Name: "ninja",
		Args: []string{"-C", m.BuildDir, "install"},
		Env:  env,
	})
}
