package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"appdeck/internal/database"
	"appdeck/internal/services"
	"appdeck/internal/utils"
)

// Config is the full runtime configuration, sourced from environment
// variables (optionally loaded from a .env file).
type Config struct {
	ListenAddr    string
	DatabasePath  string
	WorkspaceRoot string
	IdleThreshold time.Duration
	SweepSchedule string
	Orchestrator  services.OrchestratorConfig
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load() (Config, error) {
	// .env is optional; explicit environment variables always win.
	_ = utils.LoadEnv()

	cfg := Config{
		ListenAddr:    utils.Getenv("APPDECK_LISTEN_ADDR", ":8080"),
		DatabasePath:  utils.Getenv("APPDECK_DB_PATH", database.GetDefaultDBPath()),
		WorkspaceRoot: utils.Getenv("APPDECK_WORKSPACE_ROOT", defaultWorkspaceRoot()),
		IdleThreshold: utils.GetenvDuration("APPDECK_IDLE_THRESHOLD", 30*time.Minute),
		SweepSchedule: utils.Getenv("APPDECK_SWEEP_SCHEDULE", "*/5 * * * *"),
		Orchestrator: services.OrchestratorConfig{
			Image:            utils.Getenv("APPDECK_RUNTIME_IMAGE", "appdeck/preview:latest"),
			AppPort:          utils.GetenvInt("APPDECK_APP_PORT", 3000),
			ProbeTimeout:     utils.GetenvDuration("APPDECK_PROBE_TIMEOUT", 3*time.Second),
			ReadyTimeout:     utils.GetenvDuration("APPDECK_READY_TIMEOUT", 90*time.Second),
			ClaimTTL:         utils.GetenvDuration("APPDECK_CLAIM_TTL", 2*time.Minute),
			SessionDSNFormat: utils.Getenv("APPDECK_SESSION_DSN_FORMAT", "file:/data/appdeck-p%d-s%s.db"),
		},
	}

	if err := os.MkdirAll(cfg.WorkspaceRoot, 0755); err != nil {
		return Config{}, fmt.Errorf("create workspace root: %w", err)
	}
	return cfg, nil
}

func defaultWorkspaceRoot() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "workspaces"
	}
	return filepath.Join(cacheDir, "appdeck", "workspaces")
}
