package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"appdeck/internal/repositories"
	"appdeck/internal/runtime"

	"golang.org/x/sync/singleflight"
)

// OrchestratorConfig tunes provisioning and probing.
type OrchestratorConfig struct {
	// Image is the container image every instance runs.
	Image string
	// AppPort is the port the application serves inside the instance.
	AppPort int
	// ProbeTimeout bounds a single health check.
	ProbeTimeout time.Duration
	// ReadyTimeout is the hard deadline for an instance to answer its first
	// probe after launch.
	ReadyTimeout time.Duration
	// ClaimTTL caps how long a provisioning claim is honored before it is
	// considered abandoned.
	ClaimTTL time.Duration
	// SessionDSNFormat yields the session-scoped data-store connection
	// string, with the project ID and session ID as verbs.
	SessionDSNFormat string
}

func (c *OrchestratorConfig) withDefaults() {
	if c.AppPort == 0 {
		c.AppPort = 3000
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 90 * time.Second
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = 2 * time.Minute
	}
	if c.SessionDSNFormat == "" {
		c.SessionDSNFormat = "file:/data/appdeck-p%d-s%s.db"
	}
}

// InstanceStatus is the externally visible state of a session's instance.
type InstanceStatus struct {
	Running      bool   `json:"running"`
	URL          string `json:"url,omitempty"`
	IsResponding bool   `json:"isResponding"`
}

// StartResult reports the outcome of a start request.
type StartResult struct {
	URL    string `json:"url"`
	Status string `json:"status"` // "running" or "starting"
}

// WorkspaceEnsurer prepares a session checkout and reports its path and
// branch. Implemented by WorkspaceManager.
type WorkspaceEnsurer interface {
	Ensure(projectID uint, sessionID string) (string, string, error)
}

// ContainerOrchestrator starts, probes and stops the runtime instance of a
// session and enforces at most one live instance per session key. "Is it
// running" is always derived from inspecting the runtime plus a short-lived
// provisioning claim, never from a trusted in-process cache.
type ContainerOrchestrator struct {
	cfg        OrchestratorConfig
	runtime    runtime.Runtime
	workspaces WorkspaceEnsurer
	registry   *SessionRegistry
	projects   repositories.ProjectRepository
	activity   *ActivityTracker
	httpClient *http.Client

	group   singleflight.Group
	claimMu sync.Mutex
	claims  map[string]time.Time // session key -> claim expiry
}

func NewContainerOrchestrator(cfg OrchestratorConfig, rt runtime.Runtime, workspaces WorkspaceEnsurer, registry *SessionRegistry, projects repositories.ProjectRepository, activity *ActivityTracker) *ContainerOrchestrator {
	cfg.withDefaults()
	return &ContainerOrchestrator{
		cfg:        cfg,
		runtime:    rt,
		workspaces: workspaces,
		registry:   registry,
		projects:   projects,
		activity:   activity,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		claims:     make(map[string]time.Time),
	}
}

func sessionKey(projectID uint, sessionID string) string {
	return fmt.Sprintf("%d/%s", projectID, sessionID)
}

// Status reports whether the session's instance is running and responding.
// On a miss it kicks off the provisioning path in the background and reports
// not-running; callers retry until the instance is up.
func (o *ContainerOrchestrator) Status(ctx context.Context, projectID uint, sessionID, userID string) (InstanceStatus, error) {
	if _, err := o.registry.Lookup(projectID, sessionID); err != nil {
		return InstanceStatus{}, err
	}
	o.touch(projectID, sessionID)

	name := runtime.InstanceName(projectID, sessionID)
	inst, err := o.runtime.Inspect(ctx, name)
	if err != nil {
		return InstanceStatus{}, fmt.Errorf("inspect instance %s: %w", name, err)
	}

	if inst.Live() {
		if inst.URL == "" {
			// Created but no published port yet: it is coming up, so do not
			// spawn a second provisioning attempt behind it.
			return InstanceStatus{Running: false}, nil
		}
		return InstanceStatus{
			Running:      true,
			URL:          inst.URL,
			IsResponding: o.probe(ctx, inst.URL),
		}, nil
	}

	// Not running. If a provisioning claim is already in flight, just report
	// the miss; otherwise trigger the start path ourselves.
	if !o.claimed(projectID, sessionID) {
		go func() {
			if _, err := o.Start(context.Background(), projectID, sessionID, nil, userID); err != nil {
				log.Printf("orchestrator: auto-start %s failed: %v", name, err)
			}
		}()
	}
	return InstanceStatus{Running: false}, nil
}

// Start provisions the session's instance and waits until it answers a
// health probe. Idempotent: a live instance is returned as-is; concurrent
// calls for the same key collapse onto one provisioning attempt.
func (o *ContainerOrchestrator) Start(ctx context.Context, projectID uint, sessionID string, envVars map[string]string, userID string) (StartResult, error) {
	if _, err := o.registry.Lookup(projectID, sessionID); err != nil {
		return StartResult{}, err
	}
	o.touch(projectID, sessionID)

	key := sessionKey(projectID, sessionID)
	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		return o.startLocked(ctx, projectID, sessionID, envVars, userID)
	})
	if err != nil {
		return StartResult{}, err
	}
	return v.(StartResult), nil
}

func (o *ContainerOrchestrator) startLocked(ctx context.Context, projectID uint, sessionID string, envVars map[string]string, userID string) (StartResult, error) {
	name := runtime.InstanceName(projectID, sessionID)

	inst, err := o.runtime.Inspect(ctx, name)
	if err != nil {
		return StartResult{}, fmt.Errorf("inspect instance %s: %w", name, err)
	}
	if inst.Live() {
		if inst.URL == "" {
			// Launched elsewhere but no published port yet; wait for it
			// rather than racing a duplicate launch into a name conflict.
			url, err := o.waitReady(ctx, name)
			if err != nil {
				return StartResult{}, err
			}
			return StartResult{URL: url, Status: "running"}, nil
		}
		status := "running"
		if inst.State == runtime.StateStarting || !o.probe(ctx, inst.URL) {
			status = "starting"
		}
		return StartResult{URL: inst.URL, Status: status}, nil
	}
	if inst != nil && !inst.Live() {
		// A stopped container still holds the name; clear it first.
		if err := o.runtime.Stop(ctx, name); err != nil {
			return StartResult{}, fmt.Errorf("clear stopped instance %s: %w", name, err)
		}
	}

	if !o.acquireClaim(projectID, sessionID) {
		// Another orchestrator holds an unexpired claim; wait on its result
		// instead of double-provisioning.
		url, err := o.waitReady(ctx, name)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{URL: url, Status: "running"}, nil
	}
	defer o.releaseClaim(projectID, sessionID)

	workspacePath, branch, err := o.workspaces.Ensure(projectID, sessionID)
	if err != nil {
		return StartResult{}, err
	}

	env, err := o.buildEnv(projectID, sessionID, branch, envVars, userID)
	if err != nil {
		return StartResult{}, err
	}

	launched, err := o.runtime.Launch(ctx, runtime.LaunchSpec{
		Name:          name,
		Image:         o.cfg.Image,
		WorkspacePath: workspacePath,
		Env:           env,
		Port:          o.cfg.AppPort,
	})
	if err != nil {
		if errors.Is(err, runtime.ErrPoolExhausted) {
			return StartResult{}, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
		return StartResult{}, fmt.Errorf("launch instance %s: %w", name, err)
	}
	log.Printf("orchestrator: launched %s (%s) for user %s", name, launched.InstanceID, userID)

	url, err := o.waitReady(ctx, name)
	if err != nil {
		// Tear down whatever was created; no orphaned instances.
		if stopErr := o.runtime.Stop(context.Background(), name); stopErr != nil {
			log.Printf("orchestrator: teardown of %s failed: %v", name, stopErr)
		}
		return StartResult{}, err
	}
	return StartResult{URL: url, Status: "running"}, nil
}

// Stop terminates the session's instance. Stopping an already-stopped
// session succeeds silently.
func (o *ContainerOrchestrator) Stop(ctx context.Context, projectID uint, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	name := runtime.InstanceName(projectID, sessionID)
	if err := o.runtime.Stop(ctx, name); err != nil {
		return fmt.Errorf("stop instance %s: %w", name, err)
	}
	return nil
}

// waitReady polls the instance with bounded exponential backoff until it
// answers a probe or the hard deadline passes.
func (o *ContainerOrchestrator) waitReady(ctx context.Context, name string) (string, error) {
	deadline := time.Now().Add(o.cfg.ReadyTimeout)
	backoff := 250 * time.Millisecond
	const maxBackoff = 4 * time.Second

	for {
		inst, err := o.runtime.Inspect(ctx, name)
		if err != nil {
			return "", fmt.Errorf("inspect instance %s: %w", name, err)
		}
		if inst.Live() && inst.URL != "" && o.probe(ctx, inst.URL) {
			return inst.URL, nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: %s", ErrStartTimeout, name)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s", ErrStartTimeout, name)
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// probe performs one bounded health check. Any HTTP response below 500 means
// the instance is serving.
func (o *ContainerOrchestrator) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (o *ContainerOrchestrator) buildEnv(projectID uint, sessionID, branch string, envVars map[string]string, userID string) (map[string]string, error) {
	project, err := o.projects.GetByID(projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}

	env := make(map[string]string)
	stored, err := o.projects.EnvVars(projectID)
	if err != nil {
		return nil, fmt.Errorf("load project env vars: %w", err)
	}
	for _, v := range stored {
		env[v.Key] = v.Value
	}
	for k, v := range envVars {
		env[k] = v
	}

	// Internally required variables always win over user-supplied ones.
	env["APPDECK_REPO_URL"] = project.RemoteURL
	env["APPDECK_BRANCH"] = branch
	env["APPDECK_DATABASE_URL"] = fmt.Sprintf(o.cfg.SessionDSNFormat, projectID, sessionID)
	if userID != "" {
		env["APPDECK_USER_ID"] = userID
	}
	return env, nil
}

func (o *ContainerOrchestrator) touch(projectID uint, sessionID string) {
	if o.activity == nil {
		return
	}
	if err := o.activity.Touch(projectID, sessionID); err != nil {
		log.Printf("orchestrator: touch %d/%s failed: %v", projectID, sessionID, err)
	}
}

func (o *ContainerOrchestrator) acquireClaim(projectID uint, sessionID string) bool {
	key := sessionKey(projectID, sessionID)
	now := time.Now()
	o.claimMu.Lock()
	defer o.claimMu.Unlock()
	if expiry, ok := o.claims[key]; ok && now.Before(expiry) {
		return false
	}
	o.claims[key] = now.Add(o.cfg.ClaimTTL)
	return true
}

func (o *ContainerOrchestrator) releaseClaim(projectID uint, sessionID string) {
	o.claimMu.Lock()
	defer o.claimMu.Unlock()
	delete(o.claims, sessionKey(projectID, sessionID))
}

func (o *ContainerOrchestrator) claimed(projectID uint, sessionID string) bool {
	o.claimMu.Lock()
	defer o.claimMu.Unlock()
	expiry, ok := o.claims[sessionKey(projectID, sessionID)]
	return ok && time.Now().Before(expiry)
}
