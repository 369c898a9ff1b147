package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/knowledgekitchen/pagecheck/browserprocess"
	"github.com/knowledgekitchen/pagecheck/check"
	"github.com/knowledgekitchen/pagecheck/chromium"
	"github.com/knowledgekitchen/pagecheck/fixture"
	"github.com/knowledgekitchen/pagecheck/log"
	"github.com/knowledgekitchen/pagecheck/otel"
	"github.com/knowledgekitchen/pagecheck/settings"
	"github.com/knowledgekitchen/pagecheck/storage"
)

const (
	envPrefix = "PAGECHECK"

	// exitUsage is returned for bad flags and options, like any other
	// failure to run the battery.
	exitUsage = check.ExitFatal

	// shutdownGrace is how long an interrupted run may take to tear its
	// browser down before the process is killed.
	shutdownGrace = 5 * time.Second
)

// Flag names. Each is also read from PAGECHECK_<NAME> with dashes replaced
// by underscores.
const (
	flagSettings          = "settings"
	flagTimeout           = "timeout"
	flagNavigationTimeout = "navigation-timeout"
	flagHeadless          = "headless"
	flagExecPath          = "exec-path"
	flagArtifacts         = "artifacts"
	flagReport            = "report"
	flagRun               = "run"
	flagLogLevel          = "log-level"
	flagNoColor           = "no-color"
	flagTraceEndpoint     = "trace-endpoint"
	flagTraceInsecure     = "trace-insecure"

	keyLogCategoryFilter = "log-category-filter"
)

func newRootCommand(code *int, stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "pagecheck",
		Short: "Run browser acceptance checks against a static web page",
		Long: `Run browser acceptance checks against a static web page.

pagecheck reads site_url and name from a settings file, loads site_url in a
Chrome browser and checks the page title, heading, colors, hover styles,
links and responsive widths.

Example:
  pagecheck --settings ./settings.json
  PAGECHECK_HEADLESS=false pagecheck --run '_width$'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := runBattery(cmd.Context(), v, stdout, stderr)
			*code = c
			return err
		},
	}

	fs := cmd.Flags()
	fs.String(flagSettings, settings.DefaultPath, "path to the settings file (JSON or YAML)")
	fs.Duration(flagTimeout, check.DefaultCheckTimeout, "timeout for each check")
	fs.Duration(flagNavigationTimeout, fixture.DefaultNavigationTimeout, "timeout for launching the browser and loading the site")
	fs.Bool(flagHeadless, true, "run the browser without a window")
	fs.String(flagExecPath, "", "path to the Chrome executable")
	fs.String(flagArtifacts, "", "directory to save screenshots of failed checks to")
	fs.String(flagReport, "", "path to write a JSON report to (default <artifacts>/<run id>/report.json when --artifacts is set)")
	fs.String(flagRun, "", "only run checks whose name matches this regular expression")
	fs.String(flagLogLevel, logrus.WarnLevel.String(), "log level (trace, debug, info, warn, error)")
	fs.Bool(flagNoColor, false, "disable colored output")
	fs.String(flagTraceEndpoint, "", "OTLP/HTTP collector to export traces to, host:port or an http(s) URL")
	fs.Bool(flagTraceInsecure, false, "export to a host:port collector without TLS")
	_ = v.BindPFlags(fs)
	_ = v.BindEnv(keyLogCategoryFilter)

	return cmd
}

func newLogger(v *viper.Viper, w io.Writer) (*log.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	filter, err := log.CategoryFilter(v.GetString(keyLogCategoryFilter))
	if err != nil {
		return nil, err
	}
	logger := log.New(l, false, filter)
	if err := logger.SetLevel(v.GetString(flagLogLevel)); err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flagLogLevel, err)
	}

	return logger, nil
}

func runBattery(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) (int, error) {
	logger, err := newLogger(v, stderr)
	if err != nil {
		return exitUsage, err
	}

	var opts []check.RunnerOption
	if expr := v.GetString(flagRun); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return exitUsage, fmt.Errorf("invalid --%s: %w", flagRun, err)
		}
		opts = append(opts, check.WithFilter(re))
	}

	runID := uuid.NewString()
	ctx = browserprocess.WithRunID(ctx, runID)
	logger.Debugf("pagecheck", "run:%s", runID)

	tp, err := otel.Install(ctx, otel.Exporter{
		Endpoint: v.GetString(flagTraceEndpoint),
		Insecure: v.GetBool(flagTraceInsecure),
		RunID:    runID,
	})
	if err != nil {
		return exitUsage, fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warnf("pagecheck", "shutting down tracing: %v", err)
		}
	}()

	artifactsDir := v.GetString(flagArtifacts)
	artifacts := storage.NewArtifacts(artifactsDir, runID, &storage.LocalFilePersister{})
	if artifactsDir != "" {
		opts = append(opts, check.WithArtifacts(artifacts))
	}
	opts = append(opts, check.WithCheckTimeout(v.GetDuration(flagTimeout)), check.WithLogger(logger))

	launch := chromium.DefaultLaunchOptions()
	launch.Headless = v.GetBool(flagHeadless)
	launch.ExecutablePath = v.GetString(flagExecPath)
	driver := chromium.NewDriver(launch, logger)

	f := fixture.New(driver, v.GetString(flagSettings),
		fixture.WithLogger(logger),
		fixture.WithNavigationTimeout(v.GetDuration(flagNavigationTimeout)),
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go killOnInterrupt(ctx, runCtx, done, logger)
	defer func() {
		if p := recover(); p != nil {
			browserprocess.ForceProcessShutdown(ctx)
			panic(p)
		}
	}()

	rep := check.NewRunner(f, opts...).Run(runCtx, check.Battery())

	if err := check.NewTextPrinter(v.GetBool(flagNoColor)).Print(stdout, rep); err != nil {
		logger.Errorf("pagecheck", "printing report: %v", err)
	}
	if err := writeReport(ctx, artifacts, v.GetString(flagReport), artifactsDir != "", rep); err != nil {
		logger.Errorf("pagecheck", "writing report: %v", err)
	}
	if runCtx.Err() != nil && ctx.Err() == nil {
		return check.ExitFatal, nil
	}

	return rep.ExitCode(), nil
}

// killOnInterrupt kills the run's browser processes when an interrupted run
// has not torn its session down within shutdownGrace.
func killOnInterrupt(ctx, runCtx context.Context, done <-chan struct{}, logger *log.Logger) {
	select {
	case <-runCtx.Done():
	case <-done:
		return
	}
	logger.Warnf("pagecheck", "interrupted, closing the browser")

	select {
	case <-time.After(shutdownGrace):
		n := browserprocess.ForceProcessShutdown(ctx)
		logger.Warnf("pagecheck", "killed %d browser processes", n)
	case <-done:
	}
}

// writeReport writes the JSON report to path, or to report.json next to the
// screenshots when only an artifacts directory is set.
func writeReport(ctx context.Context, a *storage.Artifacts, path string, inArtifacts bool, rep *check.Report) error {
	render := func(w io.Writer) error { return check.WriteJSON(w, rep) }
	switch {
	case path != "":
		return a.RenderTo(ctx, path, render)
	case inArtifacts:
		_, err := a.Render(ctx, "report", "json", render)
		return err
	default:
		return nil
	}
}
