// Package recipe provides the core types and interfaces for the pkgsmith
// recipe engine. It defines the fixed 7-stage recipe lifecycle:
// ConfigureOptions -> Configure -> Requirements -> Source -> Build -> Package -> PackageInfo.
package recipe

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a recipe failure by the stage family that produced it.
type ErrorClass string

const (
	// ErrorClassInvalidConfiguration indicates an unsupported settings/option
	// combination detected during environment probing. The run aborts before
	// any source is fetched.
	ErrorClassInvalidConfiguration ErrorClass = "invalid-configuration"

	// ErrorClassAcquisition indicates a source acquisition failure.
	// Examples: checksum mismatch, download failure, missing edit target.
	ErrorClassAcquisition ErrorClass = "acquisition"

	// ErrorClassBuild indicates a build or install failure propagated verbatim
	// from the external build tool's exit status.
	ErrorClassBuild ErrorClass = "build"

	// ErrorClassPackaging indicates a packaging inconsistency, such as an
	// expected artifact missing. Always fatal; the output tree is left in
	// place for inspection.
	ErrorClassPackaging ErrorClass = "packaging"
)

// RecipeError is a classified error carrying recipe and stage context.
// nolint:revive // RecipeError is intentionally named to distinguish from standard errors
type RecipeError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Recipe is the recipe name, if known.
	Recipe string `json:"recipe,omitempty"`

	// Stage is the lifecycle stage that failed, if known.
	Stage Stage `json:"stage,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *RecipeError) Error() string {
	ctx := ""
	if e.Recipe != "" && e.Stage != "" {
		ctx = fmt.Sprintf(" (recipe=%s, stage=%s)", e.Recipe, e.Stage)
	} else if e.Recipe != "" {
		ctx = fmt.Sprintf(" (recipe=%s)", e.Recipe)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s%s: %v", e.Class, e.Message, ctx, e.Err)
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, ctx)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *RecipeError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *RecipeError) Is(target error) bool {
	t, ok := target.(*RecipeError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewInvalidConfigurationError creates a new invalid-configuration error.
func NewInvalidConfigurationError(message string, err error) *RecipeError {
	return &RecipeError{Class: ErrorClassInvalidConfiguration, Message: message, Err: err}
}

// NewAcquisitionError creates a new acquisition error.
func NewAcquisitionError(message string, err error) *RecipeError {
	return &RecipeError{Class: ErrorClassAcquisition, Message: message, Err: err}
}

// NewBuildError creates a new build error.
func NewBuildError(message string, err error) *RecipeError {
	return &RecipeError{Class: ErrorClassBuild, Message: message, Err: err}
}

// NewPackagingError creates a new packaging error.
func NewPackagingError(message string, err error) *RecipeError {
	return &RecipeError{Class: ErrorClassPackaging, Message: message, Err: err}
}

// WithRecipe adds recipe context to an error.
func (e *RecipeError) WithRecipe(name string) *RecipeError {
	e.Recipe = name
	return e
}

// WithStage adds stage context to an error.
func (e *RecipeError) WithStage(stage Stage) *RecipeError {
	e.Stage = stage
	return e
}

// WithCode adds an error code to an error.
func (e *RecipeError) WithCode(code string) *RecipeError {
	e.Code = code
	return e
}

// IsInvalidConfiguration returns true if the error is classified as an
// invalid configuration.
func IsInvalidConfiguration(err error) bool {
	return classOf(err) == ErrorClassInvalidConfiguration
}

// IsAcquisition returns true if the error is classified as an acquisition
// failure.
func IsAcquisition(err error) bool {
	return classOf(err) == ErrorClassAcquisition
}

// IsBuild returns true if the error is classified as a build failure.
func IsBuild(err error) bool {
	return classOf(err) == ErrorClassBuild
}

// IsPackaging returns true if the error is classified as a packaging failure.
func IsPackaging(err error) bool {
	return classOf(err) == ErrorClassPackaging
}

func classOf(err error) ErrorClass {
	var e *RecipeError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeUnknownOption      = "UNKNOWN_OPTION"
	ErrCodeInvalidOptionValue = "INVALID_OPTION_VALUE"
	ErrCodeUnsupportedOS      = "UNSUPPORTED_OS"
	ErrCodeChecksumMismatch   = "CHECKSUM_MISMATCH"
	ErrCodeEditTargetMissing  = "EDIT_TARGET_MISSING"
	ErrCodeUnknownVersion     = "UNKNOWN_VERSION"
	ErrCodeToolFailed         = "TOOL_FAILED"
	ErrCodeArtifactMissing    = "ARTIFACT_MISSING"
)
