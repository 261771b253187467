package infra

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const terraformBinary = "terraform"

// Terraform provisions the infrastructure graph with the Terraform CLI. The module is staged
// into a per-environment working directory which also holds the local state.
type Terraform struct {
	runner    executor.Runner
	logger    *zap.SugaredLogger
	sourceDir string
	workDir   string
	varArgs   []string
}

func NewTerraform(runner executor.Runner, cfg *config.Config, logger *zap.SugaredLogger) *Terraform {
	return &Terraform{
		runner:    runner,
		logger:    logger,
		sourceDir: cfg.TerraformDir,
		workDir:   filepath.Join(cfg.StackDir(), "terraform"),
		varArgs:   cfg.Descriptor().VarArgs(),
	}
}

func (t *Terraform) WorkDir() string {
	return t.workDir
}

// Stage copies the Terraform module into the working directory. Provider caches and state
// files of the source directory are not copied so the state of the working directory stays untouched.
func (t *Terraform) Stage() error {
	if !file.DirExists(t.sourceDir) {
		return errors.Errorf("terraform module directory '%s' not found", t.sourceDir)
	}
	if err := os.MkdirAll(t.workDir, 0700); err != nil {
		return errors.Wrapf(err, "failed to create terraform working directory '%s'", t.workDir)
	}
	err := copy.Copy(t.sourceDir, t.workDir, copy.Options{
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			name := filepath.Base(src)
			return name == ".terraform" || strings.HasPrefix(name, "terraform.tfstate"), nil
		},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to stage terraform module from '%s' to '%s'", t.sourceDir, t.workDir)
	}
	t.logger.Debugf("Staged terraform module '%s' into '%s'", t.sourceDir, t.workDir)
	return nil
}

// Apply creates or updates the infrastructure. Running it twice with identical inputs is idempotent.
func (t *Terraform) Apply(ctx context.Context) error {
	if err := t.Stage(); err != nil {
		return err
	}
	if _, err := t.run(ctx, "init", "-input=false", "-no-color"); err != nil {
		return errors.Wrap(err, "terraform init failed")
	}
	args := append([]string{"apply", "-auto-approve", "-input=false", "-no-color"}, t.varArgs...)
	if _, err := t.run(ctx, args...); err != nil {
		return errors.Wrap(err, "terraform apply failed")
	}
	return nil
}

func (t *Terraform) Outputs(ctx context.Context) (Outputs, error) {
	result, err := t.run(ctx, "output", "-json", "-no-color")
	if err != nil {
		return nil, errors.Wrap(err, "terraform output failed")
	}
	return ParseOutputs([]byte(result.Output()))
}

// Destroy removes the whole infrastructure graph. This is irreversible.
func (t *Terraform) Destroy(ctx context.Context) error {
	if err := t.Stage(); err != nil {
		return err
	}
	if _, err := t.run(ctx, "init", "-input=false", "-no-color"); err != nil {
		return errors.Wrap(err, "terraform init failed")
	}
	args := append([]string{"destroy", "-auto-approve", "-input=false", "-no-color"}, t.varArgs...)
	if _, err := t.run(ctx, args...); err != nil {
		return errors.Wrap(err, "terraform destroy failed")
	}
	return nil
}

func (t *Terraform) run(ctx context.Context, args ...string) (*executor.Result, error) {
	cmd := executor.NewCommand(terraformBinary, args...)
	cmd.Dir = t.workDir
	cmd.Env = []string{"TF_IN_AUTOMATION=1"}
	return t.runner.Run(ctx, cmd)
}
