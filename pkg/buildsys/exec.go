// Package buildsys invokes external build systems. It provides a generic
// command executor plus thin drivers for the two build systems the built-in
// recipes orchestrate: Meson/ninja and autotools configure/make.
package buildsys

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

// Command is one external tool invocation.
type Command struct {
	// Dir is the working directory, empty for the current directory.
	Dir string

	// Env are environment overrides applied on top of the process
	// environment for this invocation only.
	Env map[string]string

	// Name is the executable to run.
	Name string

	// Args are the command arguments.
	Args []string
}

// String renders the command line for logging.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor runs external build tools. Tests substitute a recording fake.
type Executor interface {
	// Run executes the command and waits for it to finish. A non-zero exit
	// status is returned verbatim as the error; no retry or recovery is
	// attempted.
	Run(ctx context.Context, cmd Command) error
}

// CommandRunner is the default Executor backed by os/exec. Tool output is
// streamed through, not captured: build logs belong to the operator.
type CommandRunner struct {
	// Log receives one debug line per invocation.
	Log *telemetry.Logger

	// Stdout and Stderr default to the process streams when nil.
	Stdout, Stderr *os.File
}

// NewCommandRunner creates an executor that streams tool output to the
// process streams.
func NewCommandRunner(log *telemetry.Logger) *CommandRunner {
	return &CommandRunner{Log: log}
}

// Run implements Executor.
func (r *CommandRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)

	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if r.Stdout != nil {
		c.Stdout = r.Stdout
	}
	if r.Stderr != nil {
		c.Stderr = r.Stderr
	}

	if r.Log != nil {
		r.Log.WithField("dir", cmd.Dir).Debugf("running: %s", cmd)
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}

// mergeEnv overlays overrides onto a base environment, replacing existing
// variables rather than appending duplicates.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[name]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
