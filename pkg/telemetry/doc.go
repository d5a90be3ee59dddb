// Package telemetry provides observability instrumentation for pkgsmith.
//
// It combines structured logging (zerolog), stage tracing (OpenTelemetry),
// and metrics (Prometheus) behind a single Telemetry bundle that travels
// through the context.
//
// Initialize at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// Loggers carry recipe context through the run:
//
//	logger := tel.Logger.NewComponentLogger("runner")
//	logger = logger.WithRecipe("libiconv", "1.16").WithRunID(runID)
//	logger.Info("starting build")
//
// The runner opens one span per recipe run and one per lifecycle stage, and
// records stage durations and failure classes as metrics. Metrics are
// exposed at /metrics when a listen address is configured; in the default
// CLI configuration both tracing and the metrics endpoint are off.
package telemetry
