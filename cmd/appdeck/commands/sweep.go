package commands

import (
	"context"
	"fmt"

	"appdeck/internal/config"
	"appdeck/internal/database"
	"appdeck/internal/runtime"
	"appdeck/internal/services"

	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one idle-reclaim pass and exit",
		RunE:  runSweep,
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Init(database.Config{Path: cfg.DatabasePath})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	docker := runtime.NewDockerRuntime()
	if !docker.Supported() {
		return fmt.Errorf("docker CLI not found on PATH")
	}

	svc := services.NewServices(db, docker, services.Options{
		WorkspaceRoot: cfg.WorkspaceRoot,
		IdleThreshold: cfg.IdleThreshold,
		Orchestrator:  cfg.Orchestrator,
	})

	result := svc.Reclaimer.Sweep(context.Background())
	fmt.Printf("examined=%d stopped=%d failed=%d workspaces_removed=%d\n",
		result.Examined, result.Stopped, result.Failed, result.WorkspacesRemoved)
	return nil
}
