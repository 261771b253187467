package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/kyma-incubator/rag-deployer/pkg/git"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Workspace points to the directory containing the Kubernetes manifests of the application.
type Workspace struct {
	ManifestsDir string
	Revision     string
}

// Factory resolves manifest workspaces. Remote sources are cloned once per repository
// and revision into the storage directory and re-used afterwards.
type Factory struct {
	mutex      sync.Mutex
	StorageDir string
	Logger     *zap.SugaredLogger
}

// Get returns the workspace for the given source. If repoURL is empty, manifestsDir is treated as local
// directory. Otherwise manifestsDir is the sub-directory inside the repository.
func (f *Factory) Get(ctx context.Context, repoURL, revision, manifestsDir string) (*Workspace, error) {
	if repoURL == "" {
		if !file.DirExists(manifestsDir) {
			return nil, fmt.Errorf("manifests directory '%s' not found", manifestsDir)
		}
		return &Workspace{ManifestsDir: manifestsDir}, nil
	}

	repoDir := f.repositoryDir(repoURL, revision)
	if !file.DirExists(repoDir) {
		if err := f.clone(ctx, repoURL, revision, repoDir); err != nil {
			return nil, err
		}
	} else {
		f.Logger.Debugf("Re-using cached clone of '%s' (revision '%s') in '%s'", repoURL, revision, repoDir)
	}

	wsDir := filepath.Join(repoDir, manifestsDir)
	if !file.DirExists(wsDir) {
		return nil, fmt.Errorf("manifests directory '%s' is missing in repository '%s' (revision '%s')",
			manifestsDir, repoURL, revision)
	}
	return &Workspace{ManifestsDir: wsDir, Revision: revision}, nil
}

func (f *Factory) repositoryDir(repoURL, revision string) string {
	if f.StorageDir == "" {
		f.StorageDir = defaultStorageDir()
	}
	repoName := strings.Trim(unsafePathChars.ReplaceAllString(strings.TrimSuffix(repoURL, ".git"), "_"), "_")
	return filepath.Join(f.StorageDir, repoName, unsafePathChars.ReplaceAllString(revision, "_"))
}

func (f *Factory) clone(ctx context.Context, repoURL, revision, dstDir string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if file.DirExists(dstDir) {
		//another caller cloned the repository in the meantime
		return nil
	}

	f.Logger.Infof("Cloning manifests repository '%s' (revision '%s')", repoURL, revision)
	if err := git.CloneRepo(ctx, repoURL, dstDir, revision); err != nil {
		if removeErr := os.RemoveAll(dstDir); removeErr != nil { //git failed, cleanup incomplete clones
			return errors.Wrap(err, removeErr.Error())
		}
		return err
	}
	return nil
}

func defaultStorageDir() string {
	baseDir, err := os.UserHomeDir()
	if err != nil {
		baseDir = "."
	}
	return filepath.Join(baseDir, ".rag-deployer", "manifests")
}
