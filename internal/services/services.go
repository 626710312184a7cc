package services

import (
	"time"

	"appdeck/internal/repositories"
	"appdeck/internal/runtime"

	"gorm.io/gorm"
)

// Services aggregates all domain services backed by the database and the
// runtime engine.
type Services struct {
	Sessions repositories.SessionRepository
	Projects repositories.ProjectRepository
	Audits   repositories.RevertAuditRepository

	Registry     *SessionRegistry
	Workspaces   *WorkspaceManager
	Orchestrator *ContainerOrchestrator
	Activity     *ActivityTracker
	Reclaimer    *IdleReclaimer
	Revert       *GitRevertOperator
	Credentials  *CredentialService
}

// Options carries the non-database wiring for the service container.
type Options struct {
	WorkspaceRoot string
	IdleThreshold time.Duration
	Orchestrator  OrchestratorConfig
}

// NewServices constructs the service container using repositories backed by
// db and instances backed by rt.
func NewServices(db *gorm.DB, rt runtime.Runtime, opts Options) *Services {
	sessionRepo := repositories.NewSessionRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	auditRepo := repositories.NewRevertAuditRepository(db)

	gitService := NewGitService()
	credentials := NewCredentialService()
	registry := NewSessionRegistry(sessionRepo, opts.WorkspaceRoot)
	workspaces := NewWorkspaceManager(registry, projectRepo, sessionRepo, gitService)
	activity := NewActivityTracker(sessionRepo)
	orchestrator := NewContainerOrchestrator(opts.Orchestrator, rt, workspaces, registry, projectRepo, activity)
	reclaimer := NewIdleReclaimer(sessionRepo, orchestrator, rt, registry, opts.IdleThreshold)
	revert := NewGitRevertOperator(gitService, credentials)

	return &Services{
		Sessions:     sessionRepo,
		Projects:     projectRepo,
		Audits:       auditRepo,
		Registry:     registry,
		Workspaces:   workspaces,
		Orchestrator: orchestrator,
		Activity:     activity,
		Reclaimer:    reclaimer,
		Revert:       revert,
		Credentials:  credentials,
	}
}
