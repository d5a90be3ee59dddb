package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// PackageID computes the configuration identity of a run: a stable hash over
// the settings and the final option values. Sub-fields stripped from the
// settings (ClearCxxABI) are empty at this point and do not contribute, so a
// pure-C package hashes identically across C++ standard-library variants.
func PackageID(name, version string, settings *Settings, options *OptionSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name=%s\nversion=%s\n", name, version)

	fields := map[string]string{
		"settings.os":               settings.OS,
		"settings.arch":             settings.Arch,
		"settings.build_type":       settings.BuildType,
		"settings.compiler":         settings.Compiler.Name,
		"settings.compiler.version": settings.Compiler.Version,
		"settings.compiler.runtime": settings.Compiler.Runtime,
		"settings.compiler.libcxx":  settings.Compiler.Libcxx,
		"settings.compiler.cppstd":  settings.Compiler.Cppstd,
	}
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, fields[k])
	}

	for _, name := range options.Names() {
		v, _ := options.Get(name)
		fmt.Fprintf(&b, "options.%s=%s\n", name, v)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
