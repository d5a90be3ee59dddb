package gdkpixbuf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgsmith/pkgsmith/pkg/buildsys"
	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

// fakeExecutor records build-tool invocations.
type fakeExecutor struct {
	commands []buildsys.Command
}

func (f *fakeExecutor) Run(ctx context.Context, cmd buildsys.Command) error {
	f.commands = append(f.commands, cmd)
	return nil
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func newTestRecipe(t *testing.T) *Recipe {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func testContext(t *testing.T, version string, settings *recipe.Settings) *recipe.Context {
	t.Helper()
	r := newTestRecipe(t)
	return &recipe.Context{
		Version:  version,
		Settings: settings,
		Options:  recipe.NewOptionSet(r.Metadata().Options),
		Data:     r.Data(),
		Log:      testLogger(t),
	}
}

func linuxSettings() *recipe.Settings {
	return &recipe.Settings{
		OS:   recipe.OSLinux,
		Arch: recipe.ArchX86_64,
		Compiler: recipe.Compiler{
			Name:    recipe.CompilerGCC,
			Version: "11",
			Libcxx:  "libstdc++11",
		},
		BuildType: "Release",
	}
}

func windowsMSVCSettings() *recipe.Settings {
	return &recipe.Settings{
		OS:   recipe.OSWindows,
		Arch: recipe.ArchX86_64,
		Compiler: recipe.Compiler{
			Name:    recipe.CompilerMSVC,
			Version: "193",
			Runtime: "dynamic",
		},
		BuildType: "Release",
	}
}

// TestConfigureOptionsPruning covers the OS and version dependent option
// domain: fPIC exists only off Windows, with_jasper only before 2.42.0.
func TestConfigureOptionsPruning(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		settings   *recipe.Settings
		wantFPIC   bool
		wantJasper bool
	}{
		{"linux old", "2.41.0", linuxSettings(), true, true},
		{"linux current", "2.42.8", linuxSettings(), true, false},
		{"windows old", "2.41.0", windowsMSVCSettings(), false, true},
		{"windows current", "2.42.8", windowsMSVCSettings(), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecipe(t)
			rc := testContext(t, tt.version, tt.settings)

			if err := r.ConfigureOptions(rc); err != nil {
				t.Fatalf("ConfigureOptions failed: %v", err)
			}
			if got := rc.Options.Has("fPIC"); got != tt.wantFPIC {
				t.Errorf("fPIC present = %v, want %v", got, tt.wantFPIC)
			}
			if got := rc.Options.Has("with_jasper"); got != tt.wantJasper {
				t.Errorf("with_jasper present = %v, want %v", got, tt.wantJasper)
			}
		})
	}
}

// TestRequestJasperOnCurrentVersion reproduces the pruned-option failure: a
// request for with_jasper on a version that removed it must fail, not
// silently no-op.
func TestRequestJasperOnCurrentVersion(t *testing.T) {
	r := newTestRecipe(t)
	rc := testContext(t, "2.42.8", linuxSettings())

	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatalf("ConfigureOptions failed: %v", err)
	}

	err := rc.Options.Set("with_jasper", "true")
	if err == nil {
		t.Fatal("Set(with_jasper) succeeded on 2.42.8")
	}
	var re *recipe.RecipeError
	if !errors.As(err, &re) || re.Code != recipe.ErrCodeUnknownOption {
		t.Errorf("got %v, want code %s", err, recipe.ErrCodeUnknownOption)
	}
}

// TestConfigureSharedDropsFPIC verifies shared builds prune fPIC.
func TestConfigureSharedDropsFPIC(t *testing.T) {
	r := newTestRecipe(t)
	rc := testContext(t, "2.42.8", linuxSettings())

	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatal(err)
	}
	if err := rc.Options.Set("shared", "true"); err != nil {
		t.Fatal(err)
	}
	if err := r.Configure(rc); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if rc.Options.Has("fPIC") {
		t.Error("fPIC survived a shared build")
	}
	if rc.Settings.Compiler.Libcxx != "" || rc.Settings.Compiler.Cppstd != "" {
		t.Error("C++ ABI sub-fields not stripped for a pure-C package")
	}
}

// TestConfigureRejectsMacos verifies the Macos hard stop.
func TestConfigureRejectsMacos(t *testing.T) {
	r := newTestRecipe(t)
	settings := linuxSettings()
	settings.OS = recipe.OSMacos
	rc := testContext(t, "2.42.8", settings)

	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatal(err)
	}
	err := r.Configure(rc)
	if err == nil {
		t.Fatal("Configure accepted Macos")
	}
	if !recipe.IsInvalidConfiguration(err) {
		t.Errorf("wrong class: %v", err)
	}
	var re *recipe.RecipeError
	if !errors.As(err, &re) || re.Code != recipe.ErrCodeUnsupportedOS {
		t.Errorf("got %v, want code %s", err, recipe.ErrCodeUnsupportedOS)
	}
}

// TestRequirementsFollowOptions verifies the dependency set is a pure
// function of the option state.
func TestRequirementsFollowOptions(t *testing.T) {
	tests := []struct {
		name    string
		version string
		set     map[string]string
		want    []string
		without []string
	}{
		{
			name:    "defaults",
			version: "2.42.8",
			want:    []string{"glib/2.70.4", "libpng/1.6.37", "libtiff/4.3.0", "libjpeg/9d"},
			without: []string{"jasper/2.0.33", "libjpeg-turbo/2.1.2"},
		},
		{
			name:    "turbo jpeg",
			version: "2.42.8",
			set:     map[string]string{"with_libjpeg": "libjpeg-turbo"},
			want:    []string{"libjpeg-turbo/2.1.2"},
			without: []string{"libjpeg/9d"},
		},
		{
			name:    "no jpeg",
			version: "2.42.8",
			set:     map[string]string{"with_libjpeg": "false"},
			without: []string{"libjpeg/9d", "libjpeg-turbo/2.1.2"},
		},
		{
			name:    "codecs off",
			version: "2.42.8",
			set:     map[string]string{"with_libpng": "false", "with_libtiff": "false"},
			want:    []string{"glib/2.70.4"},
			without: []string{"libpng/1.6.37", "libtiff/4.3.0"},
		},
		{
			name:    "jasper on old version",
			version: "2.41.0",
			set:     map[string]string{"with_jasper": "true"},
			want:    []string{"jasper/2.0.33"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecipe(t)
			rc := testContext(t, tt.version, linuxSettings())
			if err := r.ConfigureOptions(rc); err != nil {
				t.Fatal(err)
			}
			for name, value := range tt.set {
				if err := rc.Options.Set(name, value); err != nil {
					t.Fatal(err)
				}
			}

			reqs, err := r.Requirements(rc)
			if err != nil {
				t.Fatalf("Requirements failed: %v", err)
			}
			got := make(map[string]bool)
			for _, req := range reqs {
				got[req.String()] = true
			}
			for _, want := range tt.want {
				if !got[want] {
					t.Errorf("missing requirement %s in %v", want, reqs)
				}
			}
			for _, not := range tt.without {
				if got[not] {
					t.Errorf("unexpected requirement %s", not)
				}
			}

			// Requirements must be idempotent.
			again, err := r.Requirements(rc)
			if err != nil || len(again) != len(reqs) {
				t.Errorf("Requirements not idempotent: %v vs %v (%v)", reqs, again, err)
			}
		})
	}
}

// TestBuildRequirements verifies the tool set and the introspection extra.
func TestBuildRequirements(t *testing.T) {
	r := newTestRecipe(t)
	rc := testContext(t, "2.42.8", linuxSettings())
	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatal(err)
	}

	reqs, err := r.BuildRequirements(rc)
	if err != nil {
		t.Fatalf("BuildRequirements failed: %v", err)
	}
	if len(reqs) != 2 || reqs[0].String() != "meson/0.61.2" || reqs[1].String() != "pkgconf/1.7.4" {
		t.Errorf("build requirements = %v", reqs)
	}

	if err := rc.Options.Set("with_introspection", "true"); err != nil {
		t.Fatal(err)
	}
	reqs, err = r.BuildRequirements(rc)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, req := range reqs {
		if req.String() == "gobject-introspection/1.70.0" {
			found = true
		}
	}
	if !found {
		t.Errorf("introspection tool missing from %v", reqs)
	}
}

// TestMesonDefs verifies the option-to-definition mapping across versions.
func TestMesonDefs(t *testing.T) {
	r := newTestRecipe(t)

	t.Run("current version", func(t *testing.T) {
		rc := testContext(t, "2.42.8", linuxSettings())
		if err := r.ConfigureOptions(rc); err != nil {
			t.Fatal(err)
		}
		if err := rc.Options.Set("with_libtiff", "false"); err != nil {
			t.Fatal(err)
		}

		m := r.meson(rc)
		wantDefs := map[string]string{
			"docs":            "false",
			"man":             "false",
			"installed_tests": "false",
			"builtin_loaders": "all",
			"gio_sniffing":    "false",
			"png":             "true",
			"tiff":            "false",
			"jpeg":            "true",
			"introspection":   "disabled",
		}
		for name, want := range wantDefs {
			if got := m.Defs[name]; got != want {
				t.Errorf("def %s = %q, want %q", name, got, want)
			}
		}
		if _, ok := m.Defs["jasper"]; ok {
			t.Error("jasper def emitted for a version without the option")
		}
		if _, ok := m.Defs["gir"]; ok {
			t.Error("gir def emitted for a current version")
		}
		if len(m.Args) != 1 || m.Args[0] != "--wrap-mode=nofallback" {
			t.Errorf("args = %v", m.Args)
		}
	})

	t.Run("old version", func(t *testing.T) {
		rc := testContext(t, "2.41.0", linuxSettings())
		if err := r.ConfigureOptions(rc); err != nil {
			t.Fatal(err)
		}

		m := r.meson(rc)
		if m.Defs["jasper"] != "false" {
			t.Errorf("jasper def = %q, want false", m.Defs["jasper"])
		}
		if m.Defs["gir"] != "false" || m.Defs["x11"] != "false" {
			t.Errorf("gir/x11 defs = %q/%q, want false/false", m.Defs["gir"], m.Defs["x11"])
		}
	})
}

// TestSourceEdits verifies the build-system patches applied to an unpacked
// tree: test/thumbnailer subprojects disabled, the gmodule probe forced,
// and the post-install helper fixed on current versions.
func TestSourceEdits(t *testing.T) {
	tests := []struct {
		version     string
		probe       string
		postInstall bool
	}{
		{version: "2.42.8", probe: "gmodule_dep.get_variable(pkgconfig: 'gmodule_supported')", postInstall: true},
		{version: "2.41.0", probe: "gmodule_dep.get_pkgconfig_variable('gmodule_supported')", postInstall: false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			r := newTestRecipe(t)
			rc := testContext(t, tt.version, linuxSettings())
			rc.Folders.Source = t.TempDir()

			meson := "project('gdk-pixbuf')\n" +
				"gmodule_supported = " + tt.probe + "\n" +
				"subdir('gdk-pixbuf')\nsubdir('tests')\nsubdir('thumbnailer')\n"
			writeSourceFile(t, rc.Folders.Source, "meson.build", meson)
			if tt.postInstall {
				writeSourceFile(t, rc.Folders.Source, filepath.Join("build-aux", "post-install.py"),
					"subprocess.call(cmd, close_fds=True)\n")
			}

			if err := r.applySourceEdits(rc); err != nil {
				t.Fatalf("source edits failed: %v", err)
			}

			got := readSourceFile(t, rc.Folders.Source, "meson.build")
			if !strings.Contains(got, "#subdir('tests')") {
				t.Error("tests subproject not disabled")
			}
			if !strings.Contains(got, "#subdir('thumbnailer')") {
				t.Error("thumbnailer subproject not disabled")
			}
			if strings.Contains(got, "gmodule_dep.get") {
				t.Error("gmodule probe not replaced")
			}
			if !strings.Contains(got, "gmodule_supported = 'true'") {
				t.Errorf("probe replacement wrong:\n%s", got)
			}

			if tt.postInstall {
				pi := readSourceFile(t, rc.Folders.Source, filepath.Join("build-aux", "post-install.py"))
				if !strings.Contains(pi, "close_fds=(sys.platform != 'win32')") {
					t.Errorf("post-install not patched:\n%s", pi)
				}
			}
		})
	}
}

func writeSourceFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readSourceFile(t *testing.T, root, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

// TestPackageMSVCStaticRename verifies the static archive is renamed to the
// MSVC convention during packaging.
func TestPackageMSVCStaticRename(t *testing.T) {
	r := newTestRecipe(t)
	rc := testContext(t, "2.42.8", windowsMSVCSettings())
	rc.Exec = &fakeExecutor{}
	rc.Folders.Source = t.TempDir()
	rc.Folders.Build = t.TempDir()
	rc.Folders.Package = t.TempDir()
	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatal(err)
	}

	writeSourceFile(t, rc.Folders.Source, "COPYING", "license text\n")
	writeSourceFile(t, rc.Folders.Package, filepath.Join("lib", "libgdk_pixbuf-2.0.a"), "archive")
	writeSourceFile(t, rc.Folders.Package, filepath.Join("lib", "pkgconfig", "gdk-pixbuf-2.0.pc"), "pc")
	writeSourceFile(t, rc.Folders.Package, filepath.Join("share", "man", "page.1"), "man")
	writeSourceFile(t, rc.Folders.Package, filepath.Join("bin", "gdk-pixbuf.pdb"), "pdb")

	if err := r.Package(context.Background(), rc); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(rc.Folders.Package, "lib", "gdk_pixbuf-2.0.lib")); err != nil {
		t.Error("static archive not renamed to .lib")
	}
	if _, err := os.Stat(filepath.Join(rc.Folders.Package, "lib", "pkgconfig")); err == nil {
		t.Error("pkgconfig directory survived packaging")
	}
	if _, err := os.Stat(filepath.Join(rc.Folders.Package, "share")); err == nil {
		t.Error("share directory survived packaging")
	}
	if _, err := os.Stat(filepath.Join(rc.Folders.Package, "bin", "gdk-pixbuf.pdb")); err == nil {
		t.Error("pdb survived packaging")
	}
	if _, err := os.Stat(filepath.Join(rc.Folders.Package, "licenses", "COPYING")); err != nil {
		t.Error("license missing from package")
	}
}

// TestPackageInfo verifies the published manifest.
func TestPackageInfo(t *testing.T) {
	r := newTestRecipe(t)
	rc := testContext(t, "2.42.8", linuxSettings())
	rc.Folders.Package = t.TempDir()
	writeSourceFile(t, rc.Folders.Package, filepath.Join("lib", "libgdk_pixbuf-2.0.a"), "archive")
	if err := r.ConfigureOptions(rc); err != nil {
		t.Fatal(err)
	}

	info, err := r.PackageInfo(rc)
	if err != nil {
		t.Fatalf("PackageInfo failed: %v", err)
	}

	if len(info.Libs) != 1 || info.Libs[0] != "gdk_pixbuf-2.0" {
		t.Errorf("libs = %v", info.Libs)
	}
	if info.PkgConfigName != "gdk-pixbuf-2.0" {
		t.Errorf("pkg-config name = %s", info.PkgConfigName)
	}
	if len(info.IncludeDirs) != 1 || info.IncludeDirs[0] != "include/gdk-pixbuf-2.0" {
		t.Errorf("include dirs = %v", info.IncludeDirs)
	}

	// Static default: the consumer define must be present.
	found := false
	for _, def := range info.Defines {
		if def == "GDK_PIXBUF_STATIC_COMPILATION" {
			found = true
		}
	}
	if !found {
		t.Error("static define missing")
	}

	// Linux links libm.
	if len(info.SystemLibs) != 1 || info.SystemLibs[0] != "m" {
		t.Errorf("system libs = %v", info.SystemLibs)
	}

	if _, ok := info.Env["GDK_PIXBUF_PIXDATA"]; !ok {
		t.Error("GDK_PIXBUF_PIXDATA env missing")
	}

	// Shared build drops the define.
	if err := rc.Options.Set("shared", "true"); err != nil {
		t.Fatal(err)
	}
	info, err = r.PackageInfo(rc)
	if err != nil {
		t.Fatal(err)
	}
	for _, def := range info.Defines {
		if def == "GDK_PIXBUF_STATIC_COMPILATION" {
			t.Error("static define present for a shared build")
		}
	}
}
