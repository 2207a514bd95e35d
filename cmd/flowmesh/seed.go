package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

var seedDir string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load workflow definitions from YAML files into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedDir, "dir", "examples/workflows", "directory of workflow YAML files")
}

func runSeed(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	store := repository.NewPostgresWorkflowStore(pool)

	registry := engine.NewRegistry()
	registry.RegisterBuiltins(engine.BuiltinDeps{})
	eng, err := engine.New(engine.Options{
		Workflows: store,
		Runs:      repository.NewMemoryRunStore(),
		Registry:  registry,
	})
	if err != nil {
		return err
	}

	paths, err := workflowFiles(seedDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no workflow files found in %s", seedDir)
	}

	for _, path := range paths {
		wf, err := loadWorkflowFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := eng.Validate(wf); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		_, err = store.Get(ctx, wf.ID)
		switch {
		case err == nil:
			if err := store.Update(ctx, wf); err != nil {
				return fmt.Errorf("update workflow %q: %w", wf.ID, err)
			}
			logger.Info("updated workflow", "id", wf.ID, "name", wf.Name)
		case errors.Is(err, repository.ErrNotFound):
			if err := store.Create(ctx, wf); err != nil {
				return fmt.Errorf("create workflow %q: %w", wf.ID, err)
			}
			logger.Info("seeded workflow", "id", wf.ID, "name", wf.Name)
		default:
			return err
		}
	}
	logger.Info("seeding complete", "count", len(paths))
	return nil
}

func workflowFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

func loadWorkflowFile(path string) (*models.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf models.Workflow
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if wf.ID == "" {
		return nil, fmt.Errorf("workflow file must set an id")
	}
	return &wf, nil
}
