package integration_tests

import (
	"os"
	"path/filepath"
	"testing"

	"appdeck/internal/services"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, w *git.Worktree, dir, name, content, message string) plumbing.Hash {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	_, err := w.Add(name)
	require.NoError(t, err)
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
		},
	})
	require.NoError(t, err)
	return hash
}

// seedRemote builds a bare "primary" repository with two commits on master
// and returns its path plus both commit hashes.
func seedRemote(t *testing.T) (string, plumbing.Hash, plumbing.Hash) {
	t.Helper()
	seedDir := t.TempDir()

	gs := services.NewGitService()
	repo, err := gs.Init(seedDir)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)

	c1 := commitFile(t, w, seedDir, "app.txt", "v1\n", "first commit")
	c2 := commitFile(t, w, seedDir, "app.txt", "v2\n", "second commit")

	bareDir := t.TempDir()
	_, err = git.PlainClone(bareDir, true, &git.CloneOptions{URL: seedDir})
	require.NoError(t, err)
	return bareDir, c1, c2
}

func remoteTip(t *testing.T, bareDir, branch string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainOpen(bareDir)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	return ref.Hash()
}

func TestRevertToCommit_RewindsLocalAndRemote(t *testing.T) {
	bareDir, c1, c2 := seedRemote(t)
	workDir := filepath.Join(t.TempDir(), "workspace")

	gs := services.NewGitService()
	repo, err := gs.Clone(bareDir, workDir)
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)
	require.Equal(t, c2, head.Hash())

	op := services.NewGitRevertOperator(gs, nil)
	err = op.RevertToCommit(workDir, c1.String(), "")
	assert.NoError(t, err)

	// Local branch, worktree content and remote tip all sit on the target.
	head, err = repo.Head()
	require.NoError(t, err)
	assert.Equal(t, c1, head.Hash())

	content, err := os.ReadFile(filepath.Join(workDir, "app.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1\n", string(content))

	assert.Equal(t, c1, remoteTip(t, bareDir, "master"))
}

func TestRevertToCommit_TipEqualsTargetIsANoOp(t *testing.T) {
	bareDir, _, c2 := seedRemote(t)
	workDir := filepath.Join(t.TempDir(), "workspace")

	gs := services.NewGitService()
	repo, err := gs.Clone(bareDir, workDir)
	require.NoError(t, err)

	op := services.NewGitRevertOperator(gs, nil)
	err = op.RevertToCommit(workDir, c2.String(), "")
	assert.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, c2, head.Hash())
	assert.Equal(t, c2, remoteTip(t, bareDir, "master"))
}

func TestRevertToCommit_RejectsNonAncestorCommit(t *testing.T) {
	seedDir := t.TempDir()

	gs := services.NewGitService()
	seed, err := gs.Init(seedDir)
	require.NoError(t, err)
	w, err := seed.Worktree()
	require.NoError(t, err)

	c1 := commitFile(t, w, seedDir, "app.txt", "v1\n", "first commit")
	c2 := commitFile(t, w, seedDir, "app.txt", "v2\n", "second commit")

	// A sibling commit branching off c1: reachable as an object, but not an
	// ancestor of the master tip.
	require.NoError(t, w.Checkout(&git.CheckoutOptions{Hash: c1}))
	require.NoError(t, w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("side"),
		Create: true,
	}))
	side := commitFile(t, w, seedDir, "side.txt", "side\n", "side commit")
	require.NoError(t, w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
	}))

	bareDir := t.TempDir()
	_, err = git.PlainClone(bareDir, true, &git.CloneOptions{URL: seedDir})
	require.NoError(t, err)

	workDir := filepath.Join(t.TempDir(), "workspace")
	repo, err := gs.Clone(bareDir, workDir)
	require.NoError(t, err)

	op := services.NewGitRevertOperator(gs, nil)
	err = op.RevertToCommit(workDir, side.String(), "")
	assert.ErrorIs(t, err, services.ErrNotReachable)

	// Nothing moved.
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, c2, head.Hash())
	assert.Equal(t, c2, remoteTip(t, bareDir, "master"))
}

func TestRevertToCommit_UnknownCommitIsNotReachable(t *testing.T) {
	bareDir, _, c2 := seedRemote(t)
	workDir := filepath.Join(t.TempDir(), "workspace")

	gs := services.NewGitService()
	repo, err := gs.Clone(bareDir, workDir)
	require.NoError(t, err)

	op := services.NewGitRevertOperator(gs, nil)
	err = op.RevertToCommit(workDir, "0123456789abcdef0123456789abcdef01234567", "")
	assert.ErrorIs(t, err, services.ErrNotReachable)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, c2, head.Hash())
}

func TestRevertToCommit_PushFailureRestoresLocalBranch(t *testing.T) {
	bareDir, c1, c2 := seedRemote(t)
	workDir := filepath.Join(t.TempDir(), "workspace")

	gs := services.NewGitService()
	repo, err := gs.Clone(bareDir, workDir)
	require.NoError(t, err)

	// Point origin at a path that does not exist so the force push fails
	// after the local reset succeeded.
	require.NoError(t, repo.DeleteRemote("origin"))
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{filepath.Join(t.TempDir(), "gone")},
	})
	require.NoError(t, err)

	op := services.NewGitRevertOperator(gs, nil)
	err = op.RevertToCommit(workDir, c1.String(), "")
	assert.ErrorIs(t, err, services.ErrPushRejected)

	// The local branch was rolled back, so the failed revert is invisible.
	reopened, err := gs.Open(workDir)
	require.NoError(t, err)
	head, err := reopened.Head()
	require.NoError(t, err)
	assert.Equal(t, c2, head.Hash())

	content, err := os.ReadFile(filepath.Join(workDir, "app.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(content))

	assert.Equal(t, c2, remoteTip(t, bareDir, "master"))
}
