package recipe

import (
	"context"

	"github.com/pkgsmith/pkgsmith/pkg/buildsys"
	"github.com/pkgsmith/pkgsmith/pkg/source"
	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

// Stage identifies one step of the fixed recipe lifecycle.
type Stage string

const (
	// StageConfigureOptions prunes the declared option domain based on the
	// ambient settings (target OS, package version).
	StageConfigureOptions Stage = "configure-options"

	// StageConfigure finalizes the option set and validates that the
	// settings/option combination is supported at all.
	StageConfigure Stage = "configure"

	// StageRequirements declares build-time and link-time dependencies.
	StageRequirements Stage = "requirements"

	// StageSource fetches, unpacks, and patches the upstream source tree.
	StageSource Stage = "source"

	// StageBuild invokes the external build system.
	StageBuild Stage = "build"

	// StagePackage installs and prunes the final package tree.
	StagePackage Stage = "package"

	// StagePackageInfo publishes the manifest consumed by downstream recipes.
	StagePackageInfo Stage = "package-info"
)

// Stages lists the lifecycle stages in execution order.
var Stages = []Stage{
	StageConfigureOptions,
	StageConfigure,
	StageRequirements,
	StageSource,
	StageBuild,
	StagePackage,
	StagePackageInfo,
}

// Metadata is the static descriptor of a recipe.
type Metadata struct {
	// Name is the package name.
	Name string `json:"name"`

	// Description is a one-line description of the packaged library.
	Description string `json:"description"`

	// License is the SPDX license identifier of the packaged library.
	License string `json:"license"`

	// Homepage is the upstream project homepage.
	Homepage string `json:"homepage"`

	// Topics are free-form tags for discovery.
	Topics []string `json:"topics,omitempty"`

	// Options is the declared option domain with defaults.
	Options map[string]Domain `json:"options"`
}

// Requirement is an exact-version dependency pin declared by a recipe.
type Requirement struct {
	// Name is the upstream package name.
	Name string `json:"name"`

	// Version is the exact pinned version.
	Version string `json:"version"`
}

// String returns the conventional name/version form.
func (r Requirement) String() string {
	return r.Name + "/" + r.Version
}

// PackageInfo is the manifest a recipe publishes for downstream consumers.
type PackageInfo struct {
	// Libs are the produced library names, without platform prefix/suffix.
	Libs []string `json:"libs"`

	// IncludeDirs are include directories relative to the package root.
	IncludeDirs []string `json:"include_dirs"`

	// Defines are preprocessor defines required by consumers.
	Defines []string `json:"defines,omitempty"`

	// SystemLibs are system libraries consumers must link on this target.
	SystemLibs []string `json:"system_libs,omitempty"`

	// PkgConfigName is the legacy pkg-config alias for the package.
	PkgConfigName string `json:"pkg_config_name,omitempty"`

	// CMakeFileName is the find_package file name, when published.
	CMakeFileName string `json:"cmake_file_name,omitempty"`

	// CMakeTargetName is the imported CMake target name, when published.
	CMakeTargetName string `json:"cmake_target_name,omitempty"`

	// Env are named environment contributions for downstream consumers,
	// such as the path to a built helper executable.
	Env map[string]string `json:"env,omitempty"`

	// PathAppend are directories to append to the consumer PATH.
	PathAppend []string `json:"path_append,omitempty"`
}

// Folders is the on-disk layout of one recipe run.
type Folders struct {
	// Source is the staging directory the upstream archive is unpacked into.
	Source string `json:"source"`

	// Build is the out-of-tree build directory.
	Build string `json:"build"`

	// Package is the final install prefix.
	Package string `json:"package"`

	// Download is the archive download cache directory.
	Download string `json:"download"`
}

// Context carries the state of one recipe run through the lifecycle stages.
// It is created by the Runner and must not be shared between runs.
type Context struct {
	// Version is the package version being built.
	Version string

	// Settings identifies the host platform the package is built for.
	// Read-only for recipes except for narrow sub-field stripping.
	Settings *Settings

	// SettingsBuild identifies the build machine. Nil when not
	// cross-building; resolve through BuildSettings.
	SettingsBuild *Settings

	// Options is the live option set. Pruning happens during the two
	// configure stages, before any consumer reads an option.
	Options *OptionSet

	// Data holds the version-keyed upstream source descriptors.
	Data *Data

	// Folders is the on-disk layout of this run.
	Folders Folders

	// Exec runs external build tools.
	Exec buildsys.Executor

	// Fetcher downloads and verifies upstream archives.
	Fetcher *source.Fetcher

	// BashPath is the POSIX shell configured for builds on Windows hosts,
	// empty when none is configured.
	BashPath string

	// Log is the per-run logger.
	Log *telemetry.Logger
}

// BuildSettings returns the settings of the build machine, falling back to
// the host settings when not cross-building.
func (c *Context) BuildSettings() *Settings {
	if c.SettingsBuild != nil {
		return c.SettingsBuild
	}
	return c.Settings
}

// CrossBuilding reports whether the build and host platforms differ.
func (c *Context) CrossBuilding() bool {
	if c.SettingsBuild == nil {
		return false
	}
	return c.SettingsBuild.OS != c.Settings.OS || c.SettingsBuild.Arch != c.Settings.Arch
}

// DataProvider is implemented by recipes that carry an embedded data file.
// The Runner publishes the data on the run context.
type DataProvider interface {
	Data() *Data
}

// Recipe describes how to fetch, build, and package one upstream library.
// The Runner drives the stages in the fixed lifecycle order; recipes never
// schedule, retry, or parallelize on their own.
type Recipe interface {
	// Metadata returns the static descriptor and declared option domain.
	Metadata() Metadata

	// ConfigureOptions prunes the option domain based on ambient settings.
	// It runs exactly once, before requested option values are applied.
	ConfigureOptions(rc *Context) error

	// Configure finalizes the option set after requested values are applied
	// and rejects unsupported settings combinations.
	Configure(rc *Context) error

	// BuildRequirements declares tools that must be available at build time.
	// Must be a pure function of the option state.
	BuildRequirements(rc *Context) ([]Requirement, error)

	// Requirements declares packages linked into the result.
	// Must be a pure function of the option state.
	Requirements(rc *Context) ([]Requirement, error)

	// Source populates and patches the source tree for rc.Version.
	Source(ctx context.Context, rc *Context) error

	// Build invokes the external build system.
	Build(ctx context.Context, rc *Context) error

	// Package installs into the package folder and prunes non-redistributable
	// byproducts.
	Package(ctx context.Context, rc *Context) error

	// PackageInfo computes the published manifest from the package folder.
	PackageInfo(rc *Context) (*PackageInfo, error)
}
