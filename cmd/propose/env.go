package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic/internal/config"
	"github.com/buildmedic/buildmedic/internal/engine"
	"github.com/buildmedic/buildmedic/internal/index"
	"github.com/buildmedic/buildmedic/internal/providers"
	"github.com/buildmedic/buildmedic/internal/sandbox"
	"github.com/buildmedic/buildmedic/internal/tools"
	"github.com/buildmedic/buildmedic/internal/tools/synth"
)

// runtimeEnv wires together everything a diagnosis session needs.
type runtimeEnv struct {
	RepoRoot string
	LLM      engine.LLMClient
	Model    string
	Registry engine.ToolRegistry

	idx     *index.Index
	watcher *index.Watcher
	cache   *synth.CacheStore
	logger  *zap.Logger
}

func (r *runtimeEnv) Close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.idx != nil {
		r.idx.Close()
	}
	if r.cache != nil {
		r.cache.Close()
	}
}

func prepareRuntimeEnv(repoFlag string, watch bool, logger *zap.Logger) (*runtimeEnv, error) {
	repoRoot := repoFlag
	if repoRoot == "" {
		var err error
		repoRoot, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	absRepoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	if info, err := os.Stat(absRepoRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repository path is not a valid directory: %s", absRepoRoot)
	}
	logger.Info("repository root", zap.String("path", absRepoRoot))

	cfg := loadUserConfig(logger)

	llm, model, err := providers.NewLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("inference client ready", zap.String("model", model))

	env := &runtimeEnv{
		RepoRoot: absRepoRoot,
		LLM:      llm,
		Model:    model,
		logger:   logger,
	}

	// The index is best-effort: without it, semantic_search degrades to its
	// structured unavailable result and the session continues.
	idx, err := index.Open(absRepoRoot, logger)
	if err != nil {
		logger.Warn("semantic index unavailable", zap.Error(err))
	} else {
		env.idx = idx
		if watch {
			if w, err := index.NewWatcher(absRepoRoot, idx, logger); err != nil {
				logger.Warn("index watcher unavailable", zap.Error(err))
			} else if err := w.Start(); err != nil {
				logger.Warn("index watcher failed to start", zap.Error(err))
			} else {
				env.watcher = w
			}
		}
	}

	// Same story for the synthesized-tool cache.
	var synthesizer *synth.Synthesizer
	cachePath := filepath.Join(absRepoRoot, ".ai_tools_cache", "tools.db")
	cache, err := synth.OpenCacheStore(cachePath)
	if err != nil {
		logger.Warn("tool cache unavailable, synthesis will not persist", zap.Error(err))
		synthesizer = synth.NewSynthesizer(nil)
	} else {
		env.cache = cache
		synthesizer = synth.NewSynthesizer(cache)
	}

	manager := sandbox.NewManager(absRepoRoot, sandbox.NewDefaultRunner())

	var searcher index.Searcher
	if env.idx != nil {
		searcher = env.idx
	}
	registry, err := tools.NewRegistry(tools.Deps{
		RepoRoot:    absRepoRoot,
		Searcher:    searcher,
		Synthesizer: synthesizer,
		Sandboxes:   manager,
		Logger:      logger,
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}
	env.Registry = registry

	return env, nil
}

// loadUserConfig reads the persistent configuration. Any failure degrades to
// an empty config; environment variables still apply.
func loadUserConfig(logger *zap.Logger) *config.Config {
	mgr, err := config.NewManager()
	if err != nil {
		logger.Warn("config manager unavailable", zap.Error(err))
		return &config.Config{}
	}
	cfg, err := mgr.Load()
	if err != nil {
		logger.Warn("failed to load user config", zap.Error(err))
		return &config.Config{}
	}
	if mgr.Exists() {
		logger.Info("user config loaded", zap.String("path", mgr.GetConfigPath()))
	}
	return cfg
}
