// Package gdkpixbuf builds the GDK-Pixbuf image-loading toolkit with Meson.
package gdkpixbuf

import (
	"context"
	_ "embed"
	"path/filepath"

	"github.com/pkgsmith/pkgsmith/pkg/buildsys"
	"github.com/pkgsmith/pkgsmith/pkg/pack"
	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/source"
)

//go:embed data.yml
var dataFile []byte

// Pinned dependency versions.
const (
	glibRef                 = "glib/2.70.4"
	libpngRef               = "libpng/1.6.37"
	libtiffRef              = "libtiff/4.3.0"
	libjpegRef              = "libjpeg/9d"
	libjpegTurboRef         = "libjpeg-turbo/2.1.2"
	jasperRef               = "jasper/2.0.33"
	mesonRef                = "meson/0.61.2"
	pkgconfRef              = "pkgconf/1.7.4"
	gobjectIntrospectionRef = "gobject-introspection/1.70.0"
)

// Version thresholds for upstream build-system changes.
const (
	// jasperRemovedVersion is the release that dropped the optional JPEG2000
	// loader upstream.
	jasperRemovedVersion = recipe.Version("2.42.0")

	// pkgconfigProbeVersion is the release that switched the gmodule
	// capability probe to the new Meson dependency API.
	pkgconfigProbeVersion = recipe.Version("2.42.6")
)

// Recipe builds gdk-pixbuf.
type Recipe struct {
	data *recipe.Data
}

// New creates the gdk-pixbuf recipe with its embedded data file.
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
		Name:        "gdk-pixbuf",
		Description: "toolkit for image loading and pixel buffer manipulation",
		License:     "LGPL-2.1-or-later",
		Homepage:    "https://developer.gnome.org/gdk-pixbuf/",
		Topics:      []string{"gdk-pixbuf", "image"},
		Options: map[string]recipe.Domain{
			"shared":             recipe.BoolDomain(false),
			"fPIC":               recipe.BoolDomain(true),
			"with_libpng":        recipe.BoolDomain(true),
			"with_libtiff":       recipe.BoolDomain(true),
			"with_libjpeg":       recipe.EnumDomain("libjpeg", "libjpeg-turbo", "false"),
			"with_jasper":        recipe.BoolDomain(false),
			"with_introspection": recipe.BoolDomain(false),
		},
	}
}

// ConfigureOptions implements recipe.Recipe.
func (r *Recipe) ConfigureOptions(rc *recipe.Context) error {
	if rc.Settings.IsWindows() {
		rc.Options.Delete("fPIC")
	}
	if recipe.Version(rc.Version).AtLeast(jasperRemovedVersion) {
		rc.Options.Delete("with_jasper")
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
	if rc.Settings.OS == recipe.OSMacos {
		// gdk-pixbuf-query-loaders crashes at install time:
		// dyld: malformed mach-o: load commands size (97560) > 32768
		return recipe.NewInvalidConfigurationError(
			"gdk-pixbuf does not support Macos currently", nil).
			WithCode(recipe.ErrCodeUnsupportedOS)
	}
	return nil
}

// BuildRequirements implements recipe.Recipe.
func (r *Recipe) BuildRequirements(rc *recipe.Context) ([]recipe.Requirement, error) {
	reqs := []recipe.Requirement{
		ref(mesonRef),
		ref(pkgconfRef),
	}
	if rc.Options.Bool("with_introspection") {
		reqs = append(reqs, ref(gobjectIntrospectionRef))
	}
	return reqs, nil
}

// Requirements implements recipe.Recipe.
func (r *Recipe) Requirements(rc *recipe.Context) ([]recipe.Requirement, error) {
	reqs := []recipe.Requirement{ref(glibRef)}
	if rc.Options.Bool("with_libpng") {
		reqs = append(reqs, ref(libpngRef))
	}
	if rc.Options.Bool("with_libtiff") {
		reqs = append(reqs, ref(libtiffRef))
	}
	switch jpeg, _ := rc.Options.GetSafe("with_libjpeg"); jpeg {
	case "libjpeg-turbo":
		reqs = append(reqs, ref(libjpegTurboRef))
	case "libjpeg":
		reqs = append(reqs, ref(libjpegRef))
	}
	if jasper, ok := rc.Options.GetSafe("with_jasper"); ok && jasper == recipe.OptionTrue {
		reqs = append(reqs, ref(jasperRef))
	}
	return reqs, nil
}

// Source implements recipe.Recipe. Beyond fetching and unpacking, it
// disables the test and thumbnailer subprojects, forces the broken gmodule
// capability probe, and patches the post-install helper that breaks on
// non-POSIX platforms.
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

// applySourceEdits rewrites the unpacked build system for an orchestrated
// build: no tests or thumbnailer, a forced gmodule probe, and a post-install
// helper that works off POSIX.
func (r *Recipe) applySourceEdits(rc *recipe.Context) error {
	v := recipe.Version(rc.Version)
	meson := filepath.Join(rc.Folders.Source, "meson.build")
	if err := source.ReplaceInFile(meson, "subdir('tests')", "#subdir('tests')"); err != nil {
		return err
	}
	if err := source.ReplaceInFile(meson, "subdir('thumbnailer')", "#subdir('thumbnailer')"); err != nil {
		return err
	}

	probe := "gmodule_dep.get_pkgconfig_variable('gmodule_supported')"
	if v.AtLeast(pkgconfigProbeVersion) {
		probe = "gmodule_dep.get_variable(pkgconfig: 'gmodule_supported')"
	}
	if err := source.ReplaceInFile(meson, probe, "'true'"); err != nil {
		return err
	}

	// workaround https://gitlab.gnome.org/GNOME/gdk-pixbuf/-/issues/203
	if v.AtLeast(pkgconfigProbeVersion) {
		postInstall := filepath.Join(rc.Folders.Source, "build-aux", "post-install.py")
		if err := source.ReplaceInFile(postInstall,
			"close_fds=True", "close_fds=(sys.platform != 'win32')"); err != nil {
			return err
		}
	}
	return nil
}

// Build implements recipe.Recipe.
func (r *Recipe) Build(ctx context.Context, rc *recipe.Context) error {
	meson := r.meson(rc)
	if err := meson.Configure(ctx); err != nil {
		return err
	}
	return meson.Build(ctx)
}

// Package implements recipe.Recipe.
func (r *Recipe) Package(ctx context.Context, rc *recipe.Context) error {
	if err := pack.CopyLicense(rc.Folders.Source, "COPYING", rc.Folders.Package); err != nil {
		return err
	}

	libDir := filepath.Join(rc.Folders.Package, "lib")

	// The install step runs gdk-pixbuf-query-loaders, which must resolve
	// the just-built shared libraries.
	meson := r.meson(rc)
	if err := meson.Install(ctx, map[string]string{"LD_LIBRARY_PATH": libDir}); err != nil {
		return err
	}

	if rc.Settings.IsMSVC() && !rc.Options.Bool("shared") {
		if err := pack.Rename(
			filepath.Join(libDir, "libgdk_pixbuf-2.0.a"),
			filepath.Join(libDir, "gdk_pixbuf-2.0.lib")); err != nil {
			return err
		}
	}

	if err := pack.RemoveDir(filepath.Join(libDir, "pkgconfig")); err != nil {
		return err
	}
	if err := pack.RemoveDir(filepath.Join(rc.Folders.Package, "share")); err != nil {
		return err
	}
	_, err := pack.RemoveByMask(rc.Folders.Package, "*.pdb")
	return err
}

// PackageInfo implements recipe.Recipe.
func (r *Recipe) PackageInfo(rc *recipe.Context) (*recipe.PackageInfo, error) {
	info := &recipe.PackageInfo{
		Libs:          pack.CollectLibs(rc.Folders.Package),
		IncludeDirs:   []string{"include/gdk-pixbuf-2.0"},
		PkgConfigName: "gdk-pixbuf-2.0",
		Env: map[string]string{
			"GDK_PIXBUF_PIXDATA": filepath.Join(rc.Folders.Package, "bin", "gdk-pixbuf-pixdata"),
		},
	}
	if !rc.Options.Bool("shared") {
		info.Defines = append(info.Defines, "GDK_PIXBUF_STATIC_COMPILATION")
	}
	if rc.Settings.OS == recipe.OSLinux || rc.Settings.OS == recipe.OSFreeBSD {
		info.SystemLibs = append(info.SystemLibs, "m")
	}
	return info, nil
}

// meson translates the option set into the Meson invocation. Fixed switches
// keep documentation, man pages, and installed self-tests out of the build,
// and --wrap-mode=nofallback makes Meson fail rather than silently vendor a
// dependency.
func (r *Recipe) meson(rc *recipe.Context) *buildsys.Meson {
	v := recipe.Version(rc.Version)

	defs := map[string]string{
		"docs":            "false",
		"man":             "false",
		"installed_tests": "false",
		"builtin_loaders": "all",
		"gio_sniffing":    "false",
	}
	defs["png"] = boolDef(rc.Options.Bool("with_libpng"))
	defs["tiff"] = boolDef(rc.Options.Bool("with_libtiff"))
	jpeg, _ := rc.Options.GetSafe("with_libjpeg")
	defs["jpeg"] = boolDef(jpeg != "false" && jpeg != "")
	if jasper, ok := rc.Options.GetSafe("with_jasper"); ok {
		defs["jasper"] = boolDef(jasper == recipe.OptionTrue)
	}
	if v.Less(jasperRemovedVersion) {
		defs["gir"] = "false"
		defs["x11"] = "false"
	}
	if rc.Options.Bool("with_introspection") {
		defs["introspection"] = "enabled"
	} else {
		defs["introspection"] = "disabled"
	}

	return &buildsys.Meson{
		Exec:          rc.Exec,
		SourceDir:     rc.Folders.Source,
		BuildDir:      rc.Folders.Build,
		Prefix:        rc.Folders.Package,
		Defs:          defs,
		Args:          []string{"--wrap-mode=nofallback"},
		PkgConfigPath: ".",
	}
}

func boolDef(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func ref(s string) recipe.Requirement {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return recipe.Requirement{Name: s[:i], Version: s[i+1:]}
		}
	}
	return recipe.Requirement{Name: s}
}
