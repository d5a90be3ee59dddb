// Package profile loads build profiles written in CUE. A profile pins the
// host and build platforms, requested option values, and tool locations for
// a recipe run.
package profile

import (
	"fmt"
	"strconv"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
)

// CompilerConfig describes the compiler of a platform.
type CompilerConfig struct {
	// Name is the compiler family, such as gcc or msvc.
	Name string `json:"name" validate:"required"`

	// Version is the compiler version.
	Version string `json:"version,omitempty"`

	// Runtime is the MSVC runtime library selection.
	Runtime string `json:"runtime,omitempty"`

	// Libcxx is the C++ standard library implementation.
	Libcxx string `json:"libcxx,omitempty"`

	// Cppstd is the C++ language standard.
	Cppstd string `json:"cppstd,omitempty"`
}

// PlatformConfig describes one platform in a profile.
type PlatformConfig struct {
	// OS is the operating system name.
	OS string `json:"os" validate:"required,oneof=Linux Windows Macos FreeBSD"`

	// Arch is the processor architecture.
	Arch string `json:"arch" validate:"required,oneof=x86 x86_64 armv8"`

	// Compiler describes the toolchain.
	Compiler *CompilerConfig `json:"compiler,omitempty"`

	// BuildType is the build configuration, such as Release or Debug.
	BuildType string `json:"build_type,omitempty"`
}

// ToolsConfig locates external tools the build may need.
type ToolsConfig struct {
	// Bash is the POSIX shell used for autotools builds on Windows hosts.
	Bash string `json:"bash,omitempty"`
}

// Profile is a fully parsed build profile.
type Profile struct {
	// Settings is the host platform the package is built for.
	Settings PlatformConfig `json:"settings" validate:"required"`

	// SettingsBuild is the build machine, set only when cross-building.
	SettingsBuild *PlatformConfig `json:"settings_build,omitempty"`

	// Options are requested option values keyed by option name. CUE booleans
	// are normalized to the "true"/"false" domain values.
	Options map[string]string `json:"options,omitempty"`

	// Tools locates external tools.
	Tools ToolsConfig `json:"tools,omitempty"`
}

// HostSettings converts the host platform to runner settings.
func (p *Profile) HostSettings() *recipe.Settings {
	return platformSettings(&p.Settings)
}

// BuildSettings converts the build platform to runner settings, nil when the
// profile does not cross-build.
func (p *Profile) BuildSettings() *recipe.Settings {
	if p.SettingsBuild == nil {
		return nil
	}
	return platformSettings(p.SettingsBuild)
}

func platformSettings(pc *PlatformConfig) *recipe.Settings {
	s := &recipe.Settings{
		OS:        pc.OS,
		Arch:      pc.Arch,
		BuildType: pc.BuildType,
	}
	if pc.Compiler != nil {
		s.Compiler = recipe.Compiler{
			Name:    pc.Compiler.Name,
			Version: pc.Compiler.Version,
			Runtime: pc.Compiler.Runtime,
			Libcxx:  pc.Compiler.Libcxx,
			Cppstd:  pc.Compiler.Cppstd,
		}
	}
	return s
}

// normalizeOptions converts the raw CUE option values to the string domain
// the option sets use.
func normalizeOptions(raw map[string]interface{}) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	options := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case bool:
			options[name] = strconv.FormatBool(v)
		case string:
			options[name] = v
		default:
			return nil, fmt.Errorf("option %s: unsupported value type %T", name, value)
		}
	}
	return options, nil
}
