// Package libiconv builds the GNU libiconv text-encoding conversion library
// with autotools, including the toolchain wrapping needed to drive its
// POSIX-oriented build on MSVC and clang-cl.
package libiconv

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/pkgsmith/pkgsmith/pkg/buildsys"
	"github.com/pkgsmith/pkgsmith/pkg/pack"
	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/source"
)

//go:embed data.yml
var dataFile []byte

// msys2Ref is the shell environment required on Windows build hosts that
// have no POSIX shell configured.
var msys2Ref = recipe.Requirement{Name: "msys2", Version: "cci.latest"}

// Recipe builds libiconv.
type Recipe struct {
	data *recipe.Data
}

// New creates the libiconv recipe with its embedded data file.
func New() (*Recipe, error) {
	data, err := recipe.LoadData(dataFile)
	if err != nil {
		return nil, err
	}
	return &Recipe{data: data}, nil
}

// Data implements recipe.DataProvider.
func (r *Recipe) Data() *recipe.Data {
	return r.data
}

// Metadata implements recipe.Recipe.
func (r *Recipe) Metadata() recipe.Metadata {
	return recipe.Metadata{
		Name:        "libiconv",
		Description: "Convert text to and from Unicode",
		License:     "LGPL-2.1",
		Homepage:    "https://www.gnu.org/software/libiconv/",
		Topics:      []string{"libiconv", "iconv", "text", "encoding", "locale", "unicode", "conversion"},
		Options: map[string]recipe.Domain{
			"shared": recipe.BoolDomain(false),
			"fPIC":   recipe.BoolDomain(true),
		},
	}
}

// ConfigureOptions implements recipe.Recipe.
func (r *Recipe) ConfigureOptions(rc *recipe.Context) error {
	if rc.Settings.IsWindows() {
		rc.Options.Delete("fPIC")
	}
	return nil
}

// Configure implements recipe.Recipe.
func (r *Recipe) Configure(rc *recipe.Context) error {
	if rc.Options.Bool("shared") {
		rc.Options.Delete("fPIC")
	}
	// Pure C; the C++ standard library must not affect the package identity.
	rc.Settings.ClearCxxABI()
	return nil
}

// BuildRequirements implements recipe.Recipe.
func (r *Recipe) BuildRequirements(rc *recipe.Context) ([]recipe.Requirement, error) {
	if rc.BuildSettings().OS == recipe.OSWindows && rc.BashPath == "" {
		return []recipe.Requirement{msys2Ref}, nil
	}
	return nil, nil
}

// Requirements implements recipe.Recipe.
func (r *Recipe) Requirements(rc *recipe.Context) ([]recipe.Requirement, error) {
	return nil, nil
}

// Source implements recipe.Recipe. After unpacking it applies the recorded
// patches and rewrites the install_name flag in both configure scripts so
// shared libraries are relocatable on macOS.
func (r *Recipe) Source(ctx context.Context, rc *recipe.Context) error {
	entry, err := rc.Data.Source(rc.Version)
	if err != nil {
		return err
	}
	archive, err := rc.Fetcher.Fetch(ctx, entry.URL, entry.SHA256)
	if err != nil {
		return err
	}
	if err := source.ExtractStripRoot(archive, rc.Folders.Source); err != nil {
		return err
	}
	for _, e := range rc.Data.PatchesFor(rc.Version) {
		if err := source.ReplaceInFile(filepath.Join(rc.Folders.Source, e.File), e.Match, e.Replace); err != nil {
			return err
		}
	}
	return r.applySourceEdits(rc)
}

// applySourceEdits rewrites the install_name flag in both configure scripts.
func (r *Recipe) applySourceEdits(rc *recipe.Context) error {
	for _, configure := range []string{"configure", filepath.Join("libcharset", "configure")} {
		if err := source.ReplaceInFile(filepath.Join(rc.Folders.Source, configure),
			"-install_name \\$rpath/", "-install_name @rpath/"); err != nil {
			return err
		}
	}
	return nil
}

// Build implements recipe.Recipe.
func (r *Recipe) Build(ctx context.Context, rc *recipe.Context) error {
	autotools := r.autotools(rc)
	if err := autotools.Configure(ctx); err != nil {
		return err
	}
	return autotools.Make(ctx)
}

// Package implements recipe.Recipe.
func (r *Recipe) Package(ctx context.Context, rc *recipe.Context) error {
	if err := pack.CopyLicense(rc.Folders.Source, "COPYING.LIB", rc.Folders.Package); err != nil {
		return err
	}

	if err := r.autotools(rc).Install(ctx, nil); err != nil {
		return err
	}

	libDir := filepath.Join(rc.Folders.Package, "lib")
	if _, err := pack.RemoveByMask(libDir, "*.la"); err != nil {
		return err
	}
	if err := pack.RemoveDir(filepath.Join(rc.Folders.Package, "share")); err != nil {
		return err
	}

	// The MSVC toolchains emit import libraries named <lib>.dll.lib; the
	// platform convention consumers link against is <lib>.lib.
	if (rc.Settings.IsMSVC() || rc.Settings.IsClangCl()) && rc.Options.Bool("shared") {
		for _, importLib := range []string{"iconv", "charset"} {
			if err := pack.Rename(
				filepath.Join(libDir, importLib+".dll.lib"),
				filepath.Join(libDir, importLib+".lib")); err != nil {
				return err
			}
		}
	}
	return nil
}

// PackageInfo implements recipe.Recipe.
func (r *Recipe) PackageInfo(rc *recipe.Context) (*recipe.PackageInfo, error) {
	binDir := filepath.Join(rc.Folders.Package, "bin")
	rc.Log.Infof("appending PATH environment var: %s", binDir)
	return &recipe.PackageInfo{
		Libs:            []string{"iconv", "charset"},
		IncludeDirs:     []string{"include"},
		CMakeFileName:   "Iconv",
		CMakeTargetName: "Iconv::Iconv",
		PathAppend:      []string{binDir},
	}, nil
}

// useWinBash reports whether the build must run inside a POSIX shell on a
// Windows build host.
func (r *Recipe) useWinBash(rc *recipe.Context) bool {
	return rc.BuildSettings().OS == recipe.OSWindows &&
		(rc.Settings.Compiler.Name == recipe.CompilerGCC || rc.CrossBuilding())
}

// toolchainEnv substitutes the compiler, archiver, and resource-compiler
// invocations so the POSIX-oriented configure/make flow can drive the MSVC
// and clang-cl toolchains, and selects the windres target by architecture.
func (r *Recipe) toolchainEnv(rc *recipe.Context) map[string]string {
	env := map[string]string{}
	isMSVC := rc.Settings.IsMSVC()
	isClangCl := rc.Settings.IsClangCl() && !isMSVC

	if isMSVC || isClangCl {
		cc, cxx, lib := "cl", "cl", "lib"
		if isClangCl {
			cc = envDefault("CC", "clang-cl")
			cxx = envDefault("CXX", "clang-cl")
			lib = envDefault("AR", "llvm-lib")
		}
		buildAux := filepath.Join(rc.Folders.Source, "build-aux")
		ltCompile := buildsys.UnixPath(filepath.Join(buildAux, "compile"))
		ltAr := buildsys.UnixPath(filepath.Join(buildAux, "ar-lib"))
		env["CC"] = ltCompile + " " + cc + " -nologo"
		env["CXX"] = ltCompile + " " + cxx + " -nologo"
		env["LD"] = "link"
		env["STRIP"] = ":"
		env["AR"] = ltAr + " " + lib
		env["RANLIB"] = ":"
		env["NM"] = "dumpbin -symbols"
		env["win32_target"] = "_WIN32_WINNT_VISTA"
	}

	if !rc.CrossBuilding() || isMSVC || isClangCl {
		var rcTool string
		switch rc.Settings.Arch {
		case recipe.ArchX86:
			rcTool = "windres --target=pe-i386"
		case recipe.ArchX86_64:
			rcTool = "windres --target=pe-x86-64"
		}
		if rcTool != "" {
			env["RC"] = rcTool
			env["WINDRES"] = rcTool
		}
	}

	if r.useWinBash(rc) {
		env["RANLIB"] = ":"
	}
	return env
}

// autotools builds the configure/make driver for the current configuration.
func (r *Recipe) autotools(rc *recipe.Context) *buildsys.Autotools {
	var configureArgs []string
	if rc.Options.Bool("shared") {
		configureArgs = append(configureArgs, "--disable-static", "--enable-shared")
	} else {
		configureArgs = append(configureArgs, "--enable-static", "--disable-shared")
	}

	var host string
	if rc.Settings.IsMSVC() || rc.Settings.IsClangCl() {
		switch rc.Settings.Arch {
		case recipe.ArchX86:
			host = "i686-w64-mingw32"
		case recipe.ArchX86_64:
			host = "x86_64-w64-mingw32"
		}
	}

	var cflags []string
	if msvcAtLeast12(rc.Settings) {
		cflags = append(cflags, "-FS")
	}

	var bash string
	if rc.BuildSettings().OS == recipe.OSWindows {
		bash = rc.BashPath
	}

	return &buildsys.Autotools{
		Exec:          rc.Exec,
		SourceDir:     rc.Folders.Source,
		Prefix:        rc.Folders.Package,
		ConfigureArgs: configureArgs,
		Host:          host,
		CFlags:        cflags,
		Env:           r.toolchainEnv(rc),
		Bash:          bash,
	}
}

// msvcAtLeast12 reports whether the toolchain needs -FS for parallel PDB
// writes: msvc always, Visual Studio from version 12 on.
func msvcAtLeast12(s *recipe.Settings) bool {
	if s.Compiler.Name == recipe.CompilerMSVC {
		return true
	}
	return s.Compiler.Name == recipe.CompilerVisualStudio &&
		recipe.Version(s.Compiler.Version).AtLeast("12")
}

func envDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
