package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

const shortHashLength = 8

var defaultCloner repoCloner = &remoteRepoCloner{}

// CloneRepo clones the repository in the given URL to the given dstPath and checks out the given revision.
// revision can be a branch (e.g. 'main'), a tag (e.g. 'v1.4.1') or a commit hash (e.g. '34edf09a').
func CloneRepo(ctx context.Context, url, dstPath, rev string) error {
	if rev == "" {
		return fmt.Errorf("revision cannot be empty")
	}
	repo, err := defaultCloner.Clone(ctx, url, dstPath)
	if err != nil {
		return errors.Wrapf(err, "error downloading repository (%s)", url)
	}
	return checkout(repo, rev)
}

// ShortHead returns the abbreviated commit hash of HEAD of the repository containing dir.
// Parent directories are searched for the .git folder.
func ShortHead(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "error resolving HEAD")
	}
	return ref.Hash().String()[:shortHashLength], nil
}

// IsClean reports whether the worktree of the repository containing dir has no uncommitted
// or untracked changes.
func IsClean(dir string) (bool, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return false, err
	}
	w, err := repo.Worktree()
	if err != nil {
		return false, errors.Wrap(err, "error opening worktree")
	}
	status, err := w.Status()
	if err != nil {
		return false, errors.Wrap(err, "error reading worktree status")
	}
	return status.IsClean(), nil
}

type repoCloner interface {
	Clone(ctx context.Context, url, path string) (*git.Repository, error)
}

type remoteRepoCloner struct {
}

func (rc *remoteRepoCloner) Clone(ctx context.Context, url, path string) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:        url,
		NoCheckout: true,
	})
}

func checkout(repo *git.Repository, rev string) error {
	w, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "error getting the worktree")
	}

	hash, err := resolve(repo, rev)
	if err != nil {
		return err
	}
	err = w.Checkout(&git.CheckoutOptions{
		Hash: *hash,
	})
	if err != nil {
		return errors.Wrap(err, "error checking out revision")
	}
	return nil
}

func resolve(repo *git.Repository, rev string) (*plumbing.Hash, error) {
	//branches exist only as remote references after a clone without checkout
	for _, candidate := range []string{"refs/remotes/origin/" + rev, rev} {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("revision '%s' not found in repository", rev)
}
