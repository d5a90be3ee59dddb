package recipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pkgsmith/pkgsmith/pkg/buildsys"
	"github.com/pkgsmith/pkgsmith/pkg/source"
	"github.com/pkgsmith/pkgsmith/pkg/telemetry"
)

// RunRecord is the persisted record of one recipe run.
type RunRecord struct {
	ID        string    `json:"id"`
	Recipe    string    `json:"recipe"`
	Version   string    `json:"version"`
	PackageID string    `json:"package_id"`
	StartedAt time.Time `json:"started_at"`
}

// RunRecorder persists runs and their stage events. Implemented by the
// stores package; nil disables recording.
type RunRecorder interface {
	// CreateRun records the start of a run.
	CreateRun(ctx context.Context, run *RunRecord) error

	// SetRunPackageID records the package ID once the configuration is final.
	SetRunPackageID(ctx context.Context, runID, packageID string) error

	// CompleteRun records the terminal status of a run.
	CompleteRun(ctx context.Context, runID, status, errMsg string) error

	// RecordStageEvent records one stage transition.
	RecordStageEvent(ctx context.Context, runID string, stage, status, message string) error
}

// RunRequest describes one recipe run.
type RunRequest struct {
	// Recipe is the recipe to run.
	Recipe Recipe

	// Version is the upstream version to build.
	Version string

	// Settings identifies the host platform.
	Settings *Settings

	// SettingsBuild identifies the build machine when cross-building.
	SettingsBuild *Settings

	// Options are the requested option values, applied after the recipe
	// prunes its option domain. Requesting a pruned option fails the run.
	Options map[string]string

	// WorkDir is the root directory for this run's source, build, package,
	// and download folders.
	WorkDir string

	// Exec runs external build tools; defaults to a CommandRunner.
	Exec buildsys.Executor

	// Fetcher downloads upstream archives; defaults to a fetcher caching
	// under WorkDir.
	Fetcher *source.Fetcher

	// BashPath is the POSIX shell for Windows build hosts, optional.
	BashPath string

	// ConfigureOnly stops the run after the requirements stage. Used by
	// inspection commands that need the resolved configuration without
	// touching the network or the toolchain.
	ConfigureOnly bool
}

// RunResult is the outcome of a completed (or configure-only) run.
type RunResult struct {
	// RunID is the unique identifier of this run.
	RunID string `json:"run_id"`

	// PackageID is the configuration identity of the produced package.
	PackageID string `json:"package_id"`

	// Options are the final option values after pruning.
	Options map[string]string `json:"options"`

	// BuildRequirements are the declared build-time tool dependencies.
	BuildRequirements []Requirement `json:"build_requirements"`

	// Requirements are the declared link-time dependencies.
	Requirements []Requirement `json:"requirements"`

	// Info is the published manifest, nil for configure-only runs.
	Info *PackageInfo `json:"info,omitempty"`

	// StageDurations records how long each executed stage took.
	StageDurations map[Stage]time.Duration `json:"stage_durations"`
}

// Runner drives recipes through the fixed lifecycle order. A Runner is
// stateless across runs; each run gets its own Context and folders, so
// independent runs can proceed concurrently without shared mutable state.
type Runner struct {
	tel      *telemetry.Telemetry
	recorder RunRecorder
}

// NewRunner creates a runner. The recorder may be nil.
func NewRunner(tel *telemetry.Telemetry, recorder RunRecorder) *Runner {
	return &Runner{tel: tel, recorder: recorder}
}

// Run executes the lifecycle for one recipe. The first failing stage aborts
// the run; its error carries the recipe, stage, and error class.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	md := req.Recipe.Metadata()
	runID := uuid.NewString()

	log := r.tel.Logger.NewComponentLogger("runner").
		WithRecipe(md.Name, req.Version).
		WithRunID(runID)

	rc := &Context{
		Version:  req.Version,
		Settings: req.Settings.Clone(),
		Options:  NewOptionSet(md.Options),
		Folders:  runFolders(req.WorkDir),
		Exec:     req.Exec,
		Fetcher:  req.Fetcher,
		BashPath: req.BashPath,
		Log:      log,
	}
	if req.SettingsBuild != nil {
		rc.SettingsBuild = req.SettingsBuild.Clone()
	}
	if rc.Exec == nil {
		rc.Exec = buildsys.NewCommandRunner(log)
	}
	if rc.Fetcher == nil {
		rc.Fetcher = source.NewFetcher(rc.Folders.Download, log)
	}
	if rc.Fetcher.Metrics == nil {
		rc.Fetcher.Metrics = r.tel.Metrics
	}
	if dp, ok := req.Recipe.(DataProvider); ok {
		rc.Data = dp.Data()
	}

	ctx, span := r.tel.Tracer.StartRunSpan(ctx, runID, md.Name, req.Version)
	defer span.End()

	started := time.Now()
	r.tel.Metrics.RecordRunStarted(md.Name)
	if r.recorder != nil {
		rec := &RunRecord{ID: runID, Recipe: md.Name, Version: req.Version, StartedAt: started}
		if err := r.recorder.CreateRun(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to record run start")
		}
	}

	result := &RunResult{RunID: runID, StageDurations: make(map[Stage]time.Duration)}

	err := r.execute(ctx, req, rc, result, log)

	status := "succeeded"
	if err != nil {
		status = "failed"
		r.tel.Metrics.RecordError(md.Name, string(classOf(err)))
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	r.tel.Metrics.RecordRunCompleted(md.Name, status, time.Since(started))
	if r.recorder != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if rerr := r.recorder.CompleteRun(ctx, runID, status, msg); rerr != nil {
			log.WithError(rerr).Warn("failed to record run completion")
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, req RunRequest, rc *Context, result *RunResult, log *telemetry.Logger) error {
	rec := req.Recipe
	md := rec.Metadata()

	// The option domain must be pruned before requested values are applied:
	// a request for an option that does not exist for this OS/version is a
	// configuration error, never a silent no-op.
	err := r.stage(ctx, md.Name, StageConfigureOptions, result, log, func(context.Context) error {
		if err := rec.ConfigureOptions(rc); err != nil {
			return err
		}
		return applyRequestedOptions(rc.Options, req.Options)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, md.Name, StageConfigure, result, log, func(context.Context) error {
		return rec.Configure(rc)
	})
	if err != nil {
		return err
	}

	result.Options = rc.Options.Values()
	result.PackageID = PackageID(md.Name, req.Version, rc.Settings, rc.Options)
	if r.recorder != nil {
		if rerr := r.recorder.SetRunPackageID(ctx, result.RunID, result.PackageID); rerr != nil {
			log.WithError(rerr).Warn("failed to record package id")
		}
	}

	// The requirement set is fully determined here, before any source is
	// acquired or built.
	err = r.stage(ctx, md.Name, StageRequirements, result, log, func(context.Context) error {
		var serr error
		result.BuildRequirements, serr = rec.BuildRequirements(rc)
		if serr != nil {
			return serr
		}
		result.Requirements, serr = rec.Requirements(rc)
		return serr
	})
	if err != nil {
		return err
	}

	if req.ConfigureOnly {
		return nil
	}

	for _, dir := range []string{rc.Folders.Source, rc.Folders.Build, rc.Folders.Package, rc.Folders.Download} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating run folders: %w", err)
		}
	}

	err = r.stage(ctx, md.Name, StageSource, result, log, func(sctx context.Context) error {
		return rec.Source(sctx, rc)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, md.Name, StageBuild, result, log, func(sctx context.Context) error {
		return rec.Build(sctx, rc)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, md.Name, StagePackage, result, log, func(sctx context.Context) error {
		return rec.Package(sctx, rc)
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, md.Name, StagePackageInfo, result, log, func(context.Context) error {
		var serr error
		result.Info, serr = rec.PackageInfo(rc)
		return serr
	})
}

// stage runs one lifecycle stage with tracing, timing, and recording.
func (r *Runner) stage(ctx context.Context, recipeName string, s Stage, result *RunResult, log *telemetry.Logger, fn func(context.Context) error) error {
	sctx, span := r.tel.Tracer.StartStageSpan(ctx, string(s))
	defer span.End()

	slog := log.WithStage(string(s))
	slog.Debug("stage started")
	if r.recorder != nil {
		_ = r.recorder.RecordStageEvent(ctx, result.RunID, string(s), "started", "")
	}

	started := time.Now()
	err := fn(sctx)
	duration := time.Since(started)
	result.StageDurations[s] = duration
	r.tel.Metrics.RecordStage(recipeName, string(s), duration)

	if err != nil {
		err = classify(err, recipeName, s)
		telemetry.RecordError(span, err)
		slog.WithError(err).Error("stage failed")
		if r.recorder != nil {
			_ = r.recorder.RecordStageEvent(ctx, result.RunID, string(s), "failed", err.Error())
		}
		return err
	}

	telemetry.RecordSuccess(span)
	slog.WithField("duration", duration.String()).Debug("stage completed")
	if r.recorder != nil {
		_ = r.recorder.RecordStageEvent(ctx, result.RunID, string(s), "completed", "")
	}
	return nil
}

// applyRequestedOptions assigns the requested values in a deterministic
// order so validation failures are stable.
func applyRequestedOptions(options *OptionSet, requested map[string]string) error {
	names := make([]string, 0, len(requested))
	for name := range requested {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := options.Set(name, requested[name]); err != nil {
			return err
		}
	}
	return nil
}

// classify wraps a stage error in a RecipeError with the class implied by
// the stage, preserving an existing classification.
func classify(err error, recipeName string, s Stage) error {
	var re *RecipeError
	if errors.As(err, &re) {
		if re.Recipe == "" {
			re.Recipe = recipeName
		}
		if re.Stage == "" {
			re.Stage = s
		}
		return err
	}

	var wrapped *RecipeError
	switch s {
	case StageConfigureOptions, StageConfigure, StageRequirements:
		wrapped = NewInvalidConfigurationError("configuration failed", err)
	case StageSource:
		wrapped = NewAcquisitionError("source acquisition failed", err)
		if errors.Is(err, source.ErrChecksumMismatch) {
			wrapped.Code = ErrCodeChecksumMismatch
		}
		if errors.Is(err, source.ErrMatchNotFound) {
			wrapped.Code = ErrCodeEditTargetMissing
		}
	case StageBuild:
		wrapped = NewBuildError("build failed", err).WithCode(ErrCodeToolFailed)
	default:
		wrapped = NewPackagingError("packaging failed", err)
	}
	return wrapped.WithRecipe(recipeName).WithStage(s)
}

// runFolders lays out the per-run directories under the work directory.
func runFolders(workDir string) Folders {
	return Folders{
		Source:   filepath.Join(workDir, "src"),
		Build:    filepath.Join(workDir, "build"),
		Package:  filepath.Join(workDir, "package"),
		Download: filepath.Join(workDir, "downloads"),
	}
}
