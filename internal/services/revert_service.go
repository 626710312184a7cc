package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitRevertOperator rewrites a session branch to a prior commit and force
// updates the remote. Commits after the target are permanently removed from
// the remote history of the branch; there is no source-level undo.
type GitRevertOperator struct {
	git         *GitService
	credentials *CredentialService
}

func NewGitRevertOperator(git *GitService, credentials *CredentialService) *GitRevertOperator {
	return &GitRevertOperator{git: git, credentials: credentials}
}

// RevertToCommit hard-resets the workspace's current branch to the target
// commit and force-pushes the branch to origin. The target must be an
// ancestor of the branch tip (ErrNotReachable otherwise, branch untouched).
// On push failure the local branch is restored, so a failed revert leaves
// the branch state observably unchanged.
func (o *GitRevertOperator) RevertToCommit(workspacePath, targetCommitSHA, credentialToken string) error {
	if targetCommitSHA == "" {
		return fmt.Errorf("target commit SHA is required")
	}

	repo, err := o.git.Open(workspacePath)
	if err != nil {
		return fmt.Errorf("%w: open workspace %s: %v", ErrNotFound, workspacePath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("workspace has no HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("workspace HEAD is detached")
	}
	branchRef := head.Name()
	tipHash := head.Hash()

	targetHash := plumbing.NewHash(targetCommitSHA)
	targetCommit, err := repo.CommitObject(targetHash)
	if err != nil {
		return fmt.Errorf("%w: commit %s not found", ErrNotReachable, targetCommitSHA)
	}
	tipCommit, err := repo.CommitObject(tipHash)
	if err != nil {
		return fmt.Errorf("failed to load branch tip: %w", err)
	}

	if targetHash == tipHash {
		// Already there; still make sure the remote agrees.
		return o.forcePush(repo, branchRef, credentialToken)
	}

	isAncestor, err := targetCommit.IsAncestor(tipCommit)
	if err != nil {
		return fmt.Errorf("failed to verify ancestry: %w", err)
	}
	if !isAncestor {
		return fmt.Errorf("%w: %s", ErrNotReachable, targetCommitSHA)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to load worktree: %w", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: targetHash}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", targetCommitSHA, err)
	}

	if err := o.forcePush(repo, branchRef, credentialToken); err != nil {
		// Roll the local branch back so callers never observe partial
		// success.
		if restoreErr := worktree.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: tipHash}); restoreErr != nil {
			log.Printf("revert: failed to restore %s to %s after push failure: %v", branchRef.Short(), tipHash, restoreErr)
		}
		return err
	}

	log.Printf("revert: %s reset to %s (was %s)", branchRef.Short(), targetHash.String()[:8], tipHash.String()[:8])
	return nil
}

func (o *GitRevertOperator) forcePush(repo *git.Repository, branchRef plumbing.ReferenceName, credentialToken string) error {
	opts := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+%s:%s", branchRef, branchRef)),
		},
	}

	if credentialToken == "" && o.credentials != nil {
		if token, err := o.credentials.TokenForRepo(repo); err == nil {
			credentialToken = token
		}
	}
	if credentialToken != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: credentialToken}
	}

	if err := repo.Push(opts); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPushRejected, err)
	}
	return nil
}
