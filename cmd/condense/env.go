package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/dodo-context/internal/condense"
	"github.com/ChamsBouzaiene/dodo-context/internal/config"
	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/journal"
	"github.com/ChamsBouzaiene/dodo-context/internal/project"
	"github.com/ChamsBouzaiene/dodo-context/internal/providers"
	"github.com/ChamsBouzaiene/dodo-context/internal/session"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

// indexDirName is the bleve index kept next to the task data.
const indexDirName = "journal.bleve"

type runtimeEnv struct {
	Config   *config.Config
	Dir      string
	Backend  string
	Blobs    storage.BlobStore
	Sessions *session.Store
	Journal  *journal.Store
	Index    *journal.Index
	Hooks    engine.Hook
	watcher  *journal.Watcher

	MinimumCondenseTokens int
}

func (r *runtimeEnv) Close() {
	if r.watcher != nil {
		if err := r.watcher.Stop(); err != nil {
			log.Printf("⚠️  Failed to stop journal watcher: %v", err)
		}
	}
	if r.Index != nil {
		r.Index.Close()
	}
	if r.Blobs != nil {
		r.Blobs.Close()
	}
}

// loadConfig merges the user config with the project's .dodo overrides.
func loadConfig(repoRoot string) (*config.Manager, *config.Config, *project.Policy) {
	var cfgManager *config.Manager
	if configFlag != "" {
		cfgManager = config.NewManagerAt(configFlag)
	} else {
		m, err := config.NewManager()
		if err != nil {
			log.Printf("⚠️  Failed to initialize config manager: %v", err)
			m = config.NewManagerAt(filepath.Join(os.TempDir(), config.AppDir))
		}
		cfgManager = m
	}

	userConfig, err := cfgManager.Load()
	if err != nil {
		log.Printf("⚠️  Failed to load user config: %v", err)
		userConfig = &config.Config{} // Fallback to empty
	}

	policy, err := project.LoadPolicy(repoRoot)
	if err != nil {
		log.Printf("⚠️  Failed to load project policy: %v (ignoring it)", err)
		policy = nil
	}
	prompt, err := project.LoadCondensePrompt(repoRoot)
	if err != nil {
		log.Printf("⚠️  Failed to load project condense prompt: %v", err)
	}

	return cfgManager, policy.Apply(userConfig, prompt), policy
}

func prepareRuntimeEnv(ctx context.Context) (*runtimeEnv, error) {
	repoRoot := repoFlag
	if repoRoot == "" {
		var err error
		repoRoot, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	cfgManager, cfg, policy := loadConfig(repoRoot)
	applyConfigToEnv(cfg)

	backend := storeFlag
	if backend == "" {
		backend = cfg.StorageBackend
	}
	dir := dirFlag
	if dir == "" {
		dir = cfgManager.StorageDir(cfg)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	blobs, err := storage.Open(ctx, backend, dir)
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{
		Config:   cfg,
		Dir:      dir,
		Backend:  backend,
		Blobs:    blobs,
		Sessions: session.NewStore(blobs),
		Hooks:    engine.Hooks{engine.LoggerHook{L: log.Default()}},
	}
	if policy != nil {
		env.MinimumCondenseTokens = policy.MinimumCondenseTokens
	}

	opts := []journal.Option{journal.WithCache(), journal.WithHooks(env.Hooks)}
	index, err := journal.OpenIndex(filepath.Join(dir, indexDirName))
	if err != nil {
		log.Printf("⚠️  Failed to open journal index: %v (search will be disabled)", err)
	} else {
		env.Index = index
		opts = append(opts, journal.WithIndex(index))
	}
	env.Journal = journal.NewStore(blobs, opts...)

	// Another process may condense the same task while this one runs
	if fs, ok := blobs.(*storage.FileStore); ok {
		w, err := journal.NewWatcher(fs.Root(), env.Journal)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			log.Printf("⚠️  Journal watcher disabled: %v", err)
		} else {
			env.watcher = w
		}
	}

	return env, nil
}

// modelEnv holds what a condensing command needs beyond storage.
type modelEnv struct {
	Client     engine.LLMClient
	Condensing engine.LLMClient
	Model      string
	Manager    *condense.Manager
}

// prepareModel builds the model clients and the condense manager. A missing primary
// client is not fatal: the policy reports it as an unusable handle.
func (r *runtimeEnv) prepareModel(ctx context.Context, taskModel string) *modelEnv {
	me := &modelEnv{}

	client, model, err := providers.NewLLMClientFromEnv(ctx)
	if err != nil {
		log.Printf("⚠️  No primary model client: %v", err)
	} else {
		me.Client = client
		me.Model = model
	}
	if taskModel != "" {
		me.Model = taskModel
	}

	var condensing engine.LLMClient
	if r.Config.CondensingProvider != "" {
		condensing, err = providers.NewCondensingClient(r.Config.CondensingProvider, r.Config.CondensingModel)
	} else {
		condensing, err = providers.NewCondensingClientFromEnv()
	}
	if err != nil {
		log.Printf("⚠️  Condensing client unavailable: %v", err)
	}
	me.Condensing = condensing

	policy := condense.NewPolicy(engine.NewEstimatingCounter(me.Model),
		condense.WithJournal(r.Journal),
		condense.WithHooks(r.Hooks),
	)
	me.Manager = condense.NewManager(policy)
	return me
}

// loadTask reads the task named by --task.
func (r *runtimeEnv) loadTask(ctx context.Context) (*session.TaskState, error) {
	if taskID == "" {
		return nil, errors.New("--task is required")
	}
	st, err := r.Sessions.Load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return st, nil
}
