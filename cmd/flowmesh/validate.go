package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file...>",
	Short: "Validate workflow YAML files without touching the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := engine.NewRegistry()
		registry.RegisterBuiltins(engine.BuiltinDeps{})
		eng, err := engine.New(engine.Options{
			Workflows: repository.NewMemoryWorkflowStore(),
			Runs:      repository.NewMemoryRunStore(),
			Registry:  registry,
		})
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			wf, err := loadWorkflowFile(path)
			if err == nil {
				err = eng.Validate(wf)
			}
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", path, err)
				continue
			}
			fmt.Printf("OK   %s (%s, %d nodes)\n", path, wf.ID, len(wf.Nodes))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, len(args))
		}
		return nil
	},
}
