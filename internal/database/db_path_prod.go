//go:build prod

package database

import (
	"log"
	"os"
	"path/filepath"
)

// GetDefaultDBPath returns the database path for production mode.
// In production, the database is stored in the service's state directory.
func GetDefaultDBPath() string {
	stateDir := os.Getenv("APPDECK_STATE_DIR")
	if stateDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			log.Printf("Warning: Failed to get user config dir: %v. Using fallback.", err)
			return "appdeck.db"
		}
		stateDir = filepath.Join(configDir, "appdeck")
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Printf("Warning: Failed to create state dir: %v. Using fallback.", err)
		return "appdeck.db"
	}

	return filepath.Join(stateDir, "appdeck.db")
}

func IsDevelopment() bool {
	return false
}
