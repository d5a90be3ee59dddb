package recipe

// Operating system identifiers, following the conventional platform names
// used in build profiles.
const (
	OSLinux   = "Linux"
	OSWindows = "Windows"
	OSMacos   = "Macos"
	OSFreeBSD = "FreeBSD"
)

// Architecture identifiers.
const (
	ArchX86    = "x86"
	ArchX86_64 = "x86_64"
	ArchArmV8  = "armv8"
)

// Compiler identifiers.
const (
	CompilerGCC          = "gcc"
	CompilerClang        = "clang"
	CompilerAppleClang   = "apple-clang"
	CompilerMSVC         = "msvc"
	CompilerVisualStudio = "Visual Studio"
)

// Compiler identifies the toolchain a package is built with.
type Compiler struct {
	// Name is the compiler identity (gcc, clang, msvc, Visual Studio, ...).
	Name string `json:"name"`

	// Version is the compiler version.
	Version string `json:"version,omitempty"`

	// Runtime is the C runtime selection on MSVC-like toolchains.
	Runtime string `json:"runtime,omitempty"`

	// Libcxx is the C++ standard library selection. Irrelevant for pure-C
	// packages and stripped before configuration-identity computation.
	Libcxx string `json:"libcxx,omitempty"`

	// Cppstd is the C++ standard selection. Stripped like Libcxx.
	Cppstd string `json:"cppstd,omitempty"`
}

// Settings is the externally supplied platform identification for one build.
// Recipes read it to branch; the only permitted mutation is stripping
// sub-fields that must not participate in the configuration identity.
type Settings struct {
	// OS is the target operating system.
	OS string `json:"os"`

	// Arch is the target CPU architecture.
	Arch string `json:"arch"`

	// Compiler identifies the toolchain.
	Compiler Compiler `json:"compiler"`

	// BuildType is the build flavor (Release, Debug).
	BuildType string `json:"build_type"`
}

// Clone returns an independent copy of the settings.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// ClearCxxABI strips the C++ standard-library sub-fields. Pure-C recipes
// call this so the fields do not participate in the package identity.
func (s *Settings) ClearCxxABI() {
	s.Compiler.Libcxx = ""
	s.Compiler.Cppstd = ""
}

// IsWindows reports whether the target OS is Windows.
func (s *Settings) IsWindows() bool {
	return s.OS == OSWindows
}

// IsMSVC reports whether the toolchain is MSVC, under either of its two
// compiler identities.
func (s *Settings) IsMSVC() bool {
	return s.Compiler.Name == CompilerMSVC || s.Compiler.Name == CompilerVisualStudio
}

// IsClangCl reports whether the toolchain is clang targeting the MSVC ABI.
func (s *Settings) IsClangCl() bool {
	return s.Compiler.Name == CompilerClang && s.OS == OSWindows
}
