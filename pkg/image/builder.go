package image

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/kyma-incubator/rag-deployer/pkg/git"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	dockerBinary    = "docker"
	dockerfile      = "Dockerfile"
	defaultTag      = "latest"
	sourceTagPrefix = "src-"
	dirtyTagInfix   = "-dirty-"
	sourceTagLength = 12
)

// Builder builds the application image and pushes it into the container registry.
type Builder struct {
	runner executor.Runner
	logger *zap.SugaredLogger
	appDir string
	name   string
	tag    string
}

func NewBuilder(runner executor.Runner, cfg *config.Config, logger *zap.SugaredLogger) *Builder {
	return &Builder{
		runner: runner,
		logger: logger,
		appDir: cfg.AppDir,
		name:   cfg.ImageName,
		tag:    cfg.ImageTag,
	}
}

// Tag returns the configured image tag. Without explicit tag, the short commit hash of the
// application sources is used and a worktree with uncommitted changes adds the content hash
// as suffix. Sources outside of a git repository are tagged by their content hash.
func (b *Builder) Tag() string {
	if b.tag != "" {
		return b.tag
	}
	if head, err := git.ShortHead(b.appDir); err == nil {
		clean, err := git.IsClean(b.appDir)
		if err != nil {
			b.logger.Warnf("Failed to read worktree status of '%s': %s", b.appDir, err)
		}
		if clean {
			return head
		}
		if hash, ok := b.contentHash(); ok {
			return head + dirtyTagInfix + hash
		}
		return head + "-dirty"
	}
	b.logger.Debugf("Application directory '%s' is not part of a git repository", b.appDir)
	if hash, ok := b.contentHash(); ok {
		return sourceTagPrefix + hash
	}
	return defaultTag
}

func (b *Builder) contentHash() (string, bool) {
	hash, err := file.HashDir(b.appDir)
	if err != nil || len(hash) < sourceTagLength {
		return "", false
	}
	return hash[:sourceTagLength], true
}

// Reference returns the fully qualified image name in the registry.
func (b *Builder) Reference(loginServer string) string {
	return fmt.Sprintf("%s/%s:%s", loginServer, b.name, b.Tag())
}

// BuildAndPush builds the image and pushes it to the registry. It returns the image reference.
func (b *Builder) BuildAndPush(ctx context.Context, loginServer string) (string, error) {
	if loginServer == "" {
		return "", errors.New("registry login server is undefined")
	}
	if !file.Exists(filepath.Join(b.appDir, dockerfile)) {
		return "", errors.Errorf("no %s found in application directory '%s'", dockerfile, b.appDir)
	}

	ref := b.Reference(loginServer)
	b.logger.Infof("Building image '%s'", ref)
	if _, err := b.runner.Run(ctx, executor.NewCommand(dockerBinary, "build", "--tag", ref, b.appDir)); err != nil {
		return "", errors.Wrapf(err, "failed to build image '%s'", ref)
	}
	b.logger.Infof("Pushing image '%s'", ref)
	if _, err := b.runner.Run(ctx, executor.NewCommand(dockerBinary, "push", ref)); err != nil {
		return "", errors.Wrapf(err, "failed to push image '%s'", ref)
	}
	return ref, nil
}
