package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/qaprobe/api"
	"github.com/use-agent/qaprobe/api/handler"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/report"
	"github.com/use-agent/qaprobe/runner"
	"github.com/use-agent/qaprobe/store"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// exitCode is what main exits with once the command returns.
var exitCode = report.ExitClean

var (
	targetFlag    string
	reportDirFlag string
	formatFlag    string
)

var rootCmd = &cobra.Command{
	Use:           "qaprobe",
	Short:         "Website QA harness",
	Long:          "qaprobe drives a headless browser and HTTP probes against a website, then reports functional and non-functional issues.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every probe once and write the report",
	Long: `Run the functional and non-functional probes against the target website,
print a summary and save the report.

Exit codes: 0 no issues, 1 critical issues or failure, 2 high issues, 3 other issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&targetFlag, "target", "", "website to test (default $TARGET_WEBSITE)")
	runCmd.Flags().StringVar(&reportDirFlag, "report-dir", "", "directory for report files (default $QA_REPORT_DIR)")
	runCmd.Flags().StringVar(&formatFlag, "format", "", "comma-separated report formats: json, html, markdown (default $QA_REPORT_FORMATS)")
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Testing interrupted by user.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(report.ExitFailure)
	}
	os.Exit(exitCode)
}

func runOnce(ctx context.Context, out io.Writer) error {
	cfg := config.Load()
	initLogger(cfg.Log, os.Stderr)

	if targetFlag != "" {
		cfg.Target = targetFlag
	}
	if reportDirFlag != "" {
		cfg.Report.Dir = reportDirFlag
	}
	if formatFlag != "" {
		cfg.Report.Formats = strings.Split(formatFlag, ",")
	}

	fmt.Fprintln(out, "Website Testing QA Application")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Target Website: %s\n", cfg.Target)
	fmt.Fprintf(out, "Test Date: %s\n", time.Now().Format(time.DateTime))
	fmt.Fprintln(out, strings.Repeat("=", 50))

	rep, err := runner.New(cfg).Run(ctx, cfg.Target)
	if err != nil {
		return err
	}

	report.PrintSummary(out, rep)

	files, err := report.Save(rep, cfg.Report.Dir, cfg.Report.Formats)
	if err != nil {
		slog.Error("failed to save report", "error", err)
	}
	for _, f := range files {
		fmt.Fprintf(out, "\nDetailed report saved to: %s\n", f)
	}

	exitCode = report.ExitCode(rep.Summary)
	fmt.Fprintf(out, "\n%s\n", report.Verdict(rep.Summary))
	return nil
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	initLogger(cfg.Log, os.Stdout)
	slog.Info("qaprobe starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"max_runs", cfg.Server.MaxRuns,
		"target", cfg.Target,
	)

	st := store.New(cfg.Server.RunTTL, 1000)
	defer st.Close()

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	runs := handler.NewRuns(runCtx, st, runner.New(cfg), cfg.Target, cfg.Server.MaxRuns, cfg.Report)

	router := api.NewRouter(runs, st, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	cancelRuns()
	runs.Wait()
	slog.Info("qaprobe stopped")
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(h))
}
