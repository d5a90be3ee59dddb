package buildsys

import (
	"context"
	"path/filepath"
	"strings"
)

// Autotools drives a configure/make build inside the source tree. Toolchain
// substitution (wrapper scripts, target triples) is expressed through Env
// and the Host/Build triples; the driver itself stays platform-agnostic.
type Autotools struct {
	// Exec runs the configure and make invocations.
	Exec Executor

	// SourceDir is the directory holding the configure script. configure
	// and make run with it as the working directory.
	SourceDir string

	// Prefix is the install prefix passed to configure.
	Prefix string

	// ConfigureArgs are the --enable/--disable/--with flags.
	ConfigureArgs []string

	// Host is the --host triple for cross-compilation, empty to omit.
	Host string

	// Build is the --build triple, empty to omit.
	Build string

	// CFlags are appended to CFLAGS for the configure invocation.
	CFlags []string

	// Env are toolchain overrides (CC, AR, RANLIB, RC, ...) applied to
	// every invocation.
	Env map[string]string

	// Bash, when set, wraps invocations in a POSIX shell. Needed when the
	// build host is Windows and the configure script cannot run natively.
	Bash string
}

// Configure runs the configure script.
func (a *Autotools) Configure(ctx context.Context) error {
	args := []string{}
	if a.Prefix != "" {
		args = append(args, "--prefix="+UnixPath(a.Prefix))
	}
	args = append(args, a.ConfigureArgs...)
	if a.Host != "" {
		args = append(args, "--host="+a.Host)
	}
	if a.Build != "" {
		args = append(args, "--build="+a.Build)
	}

	env := a.commandEnv()
	if len(a.CFlags) > 0 {
		env["CFLAGS"] = strings.Join(a.CFlags, " ")
	}

	return a.run(ctx, "./configure", args, env)
}

// Make runs make. The external tool owns its own parallelism.
func (a *Autotools) Make(ctx context.Context) error {
	return a.run(ctx, "make", nil, a.commandEnv())
}

// Install runs make install with additional environment overrides merged
// over the toolchain environment.
func (a *Autotools) Install(ctx context.Context, env map[string]string) error {
	merged := a.commandEnv()
	for k, v := range env {
		merged[k] = v
	}
	return a.run(ctx, "make", []string{"install"}, merged)
}

func (a *Autotools) run(ctx context.Context, name string, args []string, env map[string]string) error {
	if a.Bash != "" {
		// Run through the configured shell so shell scripts work on a
		// Windows build host.
		line := strings.Join(append([]string{name}, args...), " ")
		return a.Exec.Run(ctx, Command{
			Dir:  a.SourceDir,
			Env:  env,
			Name: a.Bash,
			Args: []string{"-c", line},
		})
	}
	if name == "./configure" {
		name = filepath.Join(a.SourceDir, "configure")
	}
	return a.Exec.Run(ctx, Command{Dir: a.SourceDir, Env: env, Name: name, Args: args})
}

func (a *Autotools) commandEnv() map[string]string {
	env := make(map[string]string, len(a.Env))
	for k, v := range a.Env {
		env[k] = v
	}
	return env
}
