package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"appdeck/internal/models"
	"appdeck/internal/repositories"
	"appdeck/internal/runtime"

	"github.com/yargevad/filepathx"
)

// IdleReclaimer stops runtime instances whose session has been inactive
// beyond the threshold or archived outright, and removes workspaces whose
// session row is gone or archived. Sweeps are best-effort: one failing
// session is logged and skipped, never aborting the rest.
type IdleReclaimer struct {
	sessions     repositories.SessionRepository
	orchestrator *ContainerOrchestrator
	runtime      runtime.Runtime
	registry     *SessionRegistry
	threshold    time.Duration
}

func NewIdleReclaimer(sessions repositories.SessionRepository, orchestrator *ContainerOrchestrator, rt runtime.Runtime, registry *SessionRegistry, threshold time.Duration) *IdleReclaimer {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &IdleReclaimer{
		sessions:     sessions,
		orchestrator: orchestrator,
		runtime:      rt,
		registry:     registry,
		threshold:    threshold,
	}
}

// SweepResult summarizes one reclaim pass.
type SweepResult struct {
	Examined          int
	Stopped           int
	Failed            int
	WorkspacesRemoved int
}

// Sweep stops the running instance of every idle or archived session and
// then clears orphaned workspaces.
func (r *IdleReclaimer) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	cutoff := time.Now().Add(-r.threshold)
	reclaimable, err := r.sessions.ListReclaimable(cutoff)
	if err != nil {
		log.Printf("reclaimer: list reclaimable sessions: %v", err)
		return result
	}

	for _, sess := range reclaimable {
		result.Examined++
		name := runtime.InstanceName(sess.ProjectID, sess.SessionID)

		inst, err := r.runtime.Inspect(ctx, name)
		if err != nil {
			log.Printf("reclaimer: inspect %s: %v", name, err)
			result.Failed++
			continue
		}
		if !inst.Live() {
			continue
		}

		if err := r.orchestrator.Stop(ctx, sess.ProjectID, sess.SessionID); err != nil {
			log.Printf("reclaimer: stop %s: %v", name, err)
			result.Failed++
			continue
		}
		log.Printf("reclaimer: stopped idle instance %s (last activity %s)", name, sess.LastActivityAt.Format(time.RFC3339))
		result.Stopped++
	}

	result.WorkspacesRemoved = r.removeOrphanedWorkspaces(ctx)
	return result
}

// removeOrphanedWorkspaces deletes checkouts whose session row is missing or
// archived. Workspaces of live sessions are left alone. Any instance still
// bind-mounting the checkout is stopped before the directory goes away.
func (r *IdleReclaimer) removeOrphanedWorkspaces(ctx context.Context) int {
	root := r.registry.WorkspaceRoot()
	if root == "" {
		return 0
	}

	matches, err := filepathx.Glob(filepath.Join(root, "p*", "*", ".git"))
	if err != nil {
		log.Printf("reclaimer: scan workspaces: %v", err)
		return 0
	}

	removed := 0
	for _, gitDir := range matches {
		workspace := filepath.Dir(gitDir)
		projectID, sessionID, err := r.registry.ParseWorkspacePath(workspace)
		if err != nil {
			continue
		}

		sess, err := r.sessions.GetByKey(projectID, sessionID)
		if err != nil {
			log.Printf("reclaimer: look up %d/%s: %v", projectID, sessionID, err)
			continue
		}
		if sess != nil && sess.Status != models.SessionStatusArchived {
			continue
		}

		name := runtime.InstanceName(projectID, sessionID)
		inst, err := r.runtime.Inspect(ctx, name)
		if err != nil {
			log.Printf("reclaimer: inspect %s: %v", name, err)
			continue
		}
		if inst.Live() {
			if err := r.orchestrator.Stop(ctx, projectID, sessionID); err != nil {
				// The workspace stays until the instance is gone.
				log.Printf("reclaimer: stop %s before workspace removal: %v", name, err)
				continue
			}
		}

		if err := os.RemoveAll(workspace); err != nil {
			log.Printf("reclaimer: remove workspace %s: %v", workspace, err)
			continue
		}
		log.Printf("reclaimer: removed orphaned workspace %s", workspace)
		removed++
	}
	return removed
}
