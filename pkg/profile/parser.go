package profile

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
)

// builtinProfileSchema constrains profile documents before decoding. The
// option map deliberately admits both booleans and strings; normalization to
// the string domain happens after decoding.
const builtinProfileSchema = `
#Platform: {
	os:   "Linux" | "Windows" | "Macos" | "FreeBSD"
	arch: "x86" | "x86_64" | "armv8"
	compiler?: {
		name:     string
		version?: string
		runtime?: string
		libcxx?:  string
		cppstd?:  string
	}
	build_type?: string
}

settings: #Platform
settings_build?: #Platform
options?: [string]: bool | string
tools?: {
	bash?: string
}
`

// rawProfile is the decode target before option normalization.
type rawProfile struct {
	Settings      PlatformConfig         `json:"settings"`
	SettingsBuild *PlatformConfig        `json:"settings_build"`
	Options       map[string]interface{} `json:"options"`
	Tools         ToolsConfig            `json:"tools"`
}

// Parser parses and validates CUE profile files.
type Parser struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewParser creates a profile parser with the built-in schema compiled.
func NewParser() (*Parser, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(builtinProfileSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile profile schema: %w", err)
	}
	return &Parser{
		ctx:       ctx,
		schema:    schema,
		validator: validator.New(),
	}, nil
}

// ParseFile parses a profile from a CUE file on disk.
func (p *Parser) ParseFile(path string) (*Profile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return p.parse(string(content), path)
}

// Parse parses a profile from inline CUE content.
func (p *Parser) Parse(content string) (*Profile, error) {
	return p.parse(content, "inline")
}

func (p *Parser) parse(content, filename string) (*Profile, error) {
	val := p.ctx.CompileString(content, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %s", filename, cueerrors.Details(err, nil))
	}

	// Unifying with the schema rejects unknown platforms and malformed
	// option values with CUE's own positions.
	unified := p.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("profile %s failed validation: %s", filename, cueerrors.Details(err, nil))
	}

	var raw rawProfile
	if err := unified.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", filename, err)
	}

	options, err := normalizeOptions(raw.Options)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", filename, err)
	}

	profile := &Profile{
		Settings:      raw.Settings,
		SettingsBuild: raw.SettingsBuild,
		Options:       options,
		Tools:         raw.Tools,
	}

	if err := p.validator.Struct(profile); err != nil {
		return nil, fmt.Errorf("profile %s failed validation: %w", filename, err)
	}
	if profile.SettingsBuild != nil {
		if err := p.validator.Struct(profile.SettingsBuild); err != nil {
			return nil, fmt.Errorf("profile %s failed validation: %w", filename, err)
		}
	}

	return profile, nil
}
