// Command propose reads a build or test error log, explores the repository
// with an agentic tool loop, and prints exactly one JSON fix proposal on
// stdout. All diagnostics go to stderr; stdout carries nothing but the
// proposal so the output can be piped straight into other tooling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/buildmedic/buildmedic/internal/engine"
	"github.com/buildmedic/buildmedic/internal/prompts"
)

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	repoFlag := fs.String("repo", "", "Path to repository root (default: current directory)")
	watchFlag := fs.Bool("watch", false, "Keep the search index fresh while the session runs")
	verboseFlag := fs.Bool("v", false, "Verbose diagnostics on stderr")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: propose [flags] <error-log-file>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	logPath := fs.Arg(0)

	logger := newLogger(*verboseFlag)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logPath, *repoFlag, *watchFlag, logger); err != nil {
		logger.Error("session failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logPath, repoFlag string, watch bool, logger *zap.Logger) error {
	errorText, err := engine.ReadErrorLog(logPath)
	if err != nil {
		// Even a bad invocation emits a valid proposal on stdout.
		emit(engine.FallbackProposal(fmt.Sprintf("could not read error log: %v", err)))
		return err
	}

	env, err := prepareRuntimeEnv(repoFlag, watch, logger)
	if err != nil {
		emit(engine.FallbackProposal(fmt.Sprintf("startup failed: %v", err)))
		return err
	}
	defer env.Close()

	systemPrompt, err := prompts.SystemPrompt(env.RepoRoot)
	if err != nil {
		emit(engine.FallbackProposal(fmt.Sprintf("prompt unavailable: %v", err)))
		return err
	}

	seed := buildSeed(env.RepoRoot, errorText)

	session := engine.NewSession(env.Model, engine.DefaultLoopConfig().MaxIterations)
	loop := engine.NewLoop(env.LLM, env.Registry, engine.Hooks{engine.LoggerHook{L: logger}})

	proposal, runErr := loop.Run(ctx, session, systemPrompt, seed)
	emit(proposal)
	return runErr
}

// buildSeed composes the first user message: the error log followed by
// excerpts of the files it references.
func buildSeed(repoRoot, errorText string) string {
	var b strings.Builder
	b.WriteString("A build or test run failed. Error log:\n\n")
	b.WriteString(errorText)

	if excerpts := engine.SeedContext(repoRoot, errorText); excerpts != "" {
		b.WriteString("\n\nSource around the locations the log references:\n\n")
		b.WriteString(excerpts)
	}

	b.WriteString("\n\nDiagnose the failure and propose a fix.")
	return b.String()
}

// emit writes the proposal JSON to stdout. This is the only stdout write in
// the program.
func emit(p engine.Proposal) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(p); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not encode proposal: %v\n", err)
	}
}

// newLogger builds a console logger on stderr so stdout stays clean for the
// proposal JSON.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
