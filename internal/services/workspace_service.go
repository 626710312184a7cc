package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"appdeck/internal/repositories"
	"appdeck/internal/utils"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// WorkspaceManager ensures a session's on-disk checkout exists and sits on
// the session branch before anything provisions against it. Workspaces are
// created and destroyed exclusively through this service.
type WorkspaceManager struct {
	registry *SessionRegistry
	projects repositories.ProjectRepository
	sessions repositories.SessionRepository
	git      *GitService
}

func NewWorkspaceManager(registry *SessionRegistry, projects repositories.ProjectRepository, sessions repositories.SessionRepository, git *GitService) *WorkspaceManager {
	return &WorkspaceManager{registry: registry, projects: projects, sessions: sessions, git: git}
}

// Ensure returns the workspace path and branch for the session, creating the
// checkout and branch on first access and fast-forwarding it when behind.
func (m *WorkspaceManager) Ensure(projectID uint, sessionID string) (string, string, error) {
	sess, err := m.registry.Lookup(projectID, sessionID)
	if err != nil {
		return "", "", err
	}

	project, err := m.projects.GetByID(projectID)
	if err != nil {
		return "", "", fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		return "", "", fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}

	path, err := m.registry.ResolveWorkspacePath(projectID, sessionID)
	if err != nil {
		return "", "", err
	}

	branch := BranchName(sessionID)
	if sess.BranchName == "" {
		// Branch names are fixed at first orchestration and never renamed.
		if err := m.sessions.SetBranchName(sess.ID, branch); err != nil {
			return "", "", fmt.Errorf("record branch name: %w", err)
		}
	} else if sess.BranchName != branch {
		return "", "", fmt.Errorf("%w: session %d/%s is bound to branch %q", ErrBranchConflict, projectID, sessionID, sess.BranchName)
	}

	if !utils.HasGitRepo(path) {
		if err := m.create(project.RemoteURL, path, branch); err != nil {
			return "", "", err
		}
		return path, branch, nil
	}

	if err := m.refresh(path, branch); err != nil {
		return "", "", err
	}
	return path, branch, nil
}

// create derives a fresh session workspace from the project's primary
// repository and checks out the session branch at its current HEAD.
func (m *WorkspaceManager) create(remoteURL, path, branch string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create workspace parent: %w", err)
	}

	repo, err := m.git.Clone(remoteURL, path)
	if err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("%w: clone %s: %v", ErrBranchConflict, remoteURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("%w: empty primary repository %s: %v", ErrBranchConflict, remoteURL, err)
	}

	// If the remote already carries the session branch (a previous workspace
	// was reclaimed), resume from its tip instead of HEAD.
	at := head.Hash()
	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true); err == nil {
		at = ref.Hash()
	}

	if err := m.git.CreateBranchAt(repo, branch, at); err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("%w: %v", ErrBranchConflict, err)
	}
	if sha, err := m.git.LatestCommit(path); err == nil {
		log.Printf("workspace %s created on %s at %s", path, branch, sha[:8])
	}
	return nil
}

// refresh puts an existing workspace on the session branch and fast-forwards
// it when the remote is ahead. A diverged remote branch is a conflict: the
// orchestrator must not provision against an inconsistent workspace.
func (m *WorkspaceManager) refresh(path, branch string) error {
	// A half-cloned or corrupted checkout must not be provisioned against.
	if err := m.git.ValidateRepository(path); err != nil {
		return fmt.Errorf("%w: workspace %s: %v", ErrBranchConflict, path, err)
	}

	repo, err := m.git.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open workspace %s: %v", ErrBranchConflict, path, err)
	}

	local, err := m.git.BranchTip(repo, branch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBranchConflict, err)
	}
	if local == plumbing.ZeroHash {
		return fmt.Errorf("%w: workspace %s is missing branch %s", ErrBranchConflict, path, branch)
	}

	current, err := m.git.CurrentBranch(repo)
	if err != nil || current != branch {
		if err := m.git.CheckoutBranch(repo, branch); err != nil {
			return fmt.Errorf("%w: checkout %s: %v", ErrBranchConflict, branch, err)
		}
	}

	if err := repo.Fetch(&git.FetchOptions{RemoteName: "origin"}); err != nil {
		if !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("%w: fetch origin: %v", ErrBranchConflict, err)
		}
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		// Remote does not know the branch yet; nothing to fast-forward.
		return nil
	}
	remote := remoteRef.Hash()
	if remote == local {
		return nil
	}

	localCommit, err := repo.CommitObject(local)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBranchConflict, err)
	}
	remoteCommit, err := repo.CommitObject(remote)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBranchConflict, err)
	}

	isAncestor, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return fmt.Errorf("%w: verify ancestry: %v", ErrBranchConflict, err)
	}
	if !isAncestor {
		return fmt.Errorf("%w: branch %s diverged from origin", ErrBranchConflict, branch)
	}

	refName := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, remote)); err != nil {
		return fmt.Errorf("%w: fast-forward %s: %v", ErrBranchConflict, branch, err)
	}
	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBranchConflict, err)
	}
	if err := w.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remote}); err != nil {
		return fmt.Errorf("%w: update worktree: %v", ErrBranchConflict, err)
	}
	log.Printf("workspace %s fast-forwarded %s to %s", path, branch, remote.String()[:8])
	return nil
}

// Remove deletes a session workspace from disk. Removing a workspace that
// was never created succeeds silently.
func (m *WorkspaceManager) Remove(projectID uint, sessionID string) error {
	path, err := m.registry.ResolveWorkspacePath(projectID, sessionID)
	if err != nil {
		return err
	}
	if !utils.DirectoryExists(path) {
		return nil
	}
	return os.RemoveAll(path)
}
