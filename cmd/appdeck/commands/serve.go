package commands

import (
	"context"
	"fmt"
	"log"

	"appdeck/internal/config"
	"appdeck/internal/database"
	"appdeck/internal/runtime"
	"appdeck/internal/services"
	"appdeck/web/api"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled idle reclamation",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
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

	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		result := svc.Reclaimer.Sweep(context.Background())
		if result.Stopped > 0 || result.Failed > 0 || result.WorkspacesRemoved > 0 {
			log.Printf("sweep: examined=%d stopped=%d failed=%d workspaces_removed=%d",
				result.Examined, result.Stopped, result.Failed, result.WorkspacesRemoved)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	c.Start()
	defer c.Stop()

	server := api.NewServer(svc.Orchestrator, svc.Revert, svc.Registry, svc.Audits, cfg.ListenAddr)
	log.Printf("appdeck serving on %s (sweep schedule %q, idle threshold %s)",
		cfg.ListenAddr, cfg.SweepSchedule, cfg.IdleThreshold)
	return server.Start()
}
