package recipe

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// SourceEntry describes one upstream archive, keyed by version in the
// recipe data file.
type SourceEntry struct {
	// URL is the upstream archive URL.
	URL string `yaml:"url" json:"url"`

	// SHA256 is the recorded archive checksum, hex encoded.
	SHA256 string `yaml:"sha256" json:"sha256"`
}

// Edit is a narrow textual substitution applied to the unpacked source tree
// to work around a known upstream build-system defect.
type Edit struct {
	// File is the path of the file to edit, relative to the source root.
	File string `yaml:"file" json:"file"`

	// Match is the exact text to replace. An absent match fails the run.
	Match string `yaml:"match" json:"match"`

	// Replace is the replacement text.
	Replace string `yaml:"replace" json:"replace"`
}

// Data is the external per-recipe data file: the version to archive/checksum
// mapping plus version-keyed source patches.
type Data struct {
	Sources map[string]SourceEntry `yaml:"sources"`
	Patches map[string][]Edit      `yaml:"patches,omitempty"`
}

// LoadData parses a recipe data file.
func LoadData(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing recipe data: %w", err)
	}
	if len(d.Sources) == 0 {
		return nil, fmt.Errorf("recipe data declares no sources")
	}
	for version, src := range d.Sources {
		if src.URL == "" || src.SHA256 == "" {
			return nil, fmt.Errorf("recipe data for version %s is missing url or sha256", version)
		}
	}
	return &d, nil
}

// Source returns the archive descriptor for a version.
func (d *Data) Source(version string) (SourceEntry, error) {
	src, ok := d.Sources[version]
	if !ok {
		return SourceEntry{}, NewAcquisitionError(
			fmt.Sprintf("no source recorded for version %s", version), nil).
			WithCode(ErrCodeUnknownVersion)
	}
	return src, nil
}

// PatchesFor returns the source patches recorded for a version, which may
// be empty.
func (d *Data) PatchesFor(version string) []Edit {
	return d.Patches[version]
}

// Versions returns the versions with a recorded source, highest first.
func (d *Data) Versions() []string {
	versions := make([]string, 0, len(d.Sources))
	for v := range d.Sources {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return Version(versions[j]).Less(Version(versions[i]))
	})
	return versions
}
