package deploy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes/progress"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	CleanupSequence = "cleanup"

	StepDeleteNamespace = "delete-namespace"
	StepDestroyInfra    = "destroy-infrastructure"

	confirmation = "yes"
)

// ErrAborted is returned if the cleanup was not confirmed.
var ErrAborted = errors.New("cleanup aborted: no resources were deleted")

// Cleaner removes the application namespace and destroys the whole infrastructure afterwards.
type Cleaner struct {
	cfg     *config.Config
	deps    *Dependencies
	logger  *zap.SugaredLogger
	metrics *metrics.Collector
	in      io.Reader
	out     io.Writer

	cluster Cluster
}

func NewCleaner(cfg *config.Config, deps *Dependencies, logger *zap.SugaredLogger, collector *metrics.Collector,
	in io.Reader, out io.Writer) *Cleaner {
	return &Cleaner{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		metrics: collector,
		in:      in,
		out:     out,
	}
}

// Confirm asks the user to confirm the deletion. Only the literal answer 'yes' is accepted,
// any other answer (including an empty input) returns ErrAborted.
func (c *Cleaner) Confirm() error {
	descr := c.cfg.Descriptor()
	_, _ = fmt.Fprintf(c.out, "This will permanently delete namespace '%s' and all resources of resource group '%s'.\n"+
		"Type '%s' to continue: ", c.cfg.Namespace, descr.ResourceGroupName, confirmation)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to read confirmation")
	}
	if strings.TrimSpace(answer) != confirmation {
		return ErrAborted
	}
	return nil
}

func (c *Cleaner) Steps() []Step {
	return []Step{
		{Name: StepAuthenticate, Run: c.authenticate},
		{Name: StepClusterAccess, Run: c.configureClusterAccess},
		{Name: StepDeleteNamespace, Run: c.deleteNamespace},
		{Name: StepDestroyInfra, Run: c.destroyInfra},
	}
}

// Run asks for confirmation and executes the cleanup steps. Nothing is deleted without confirmation.
func (c *Cleaner) Run(ctx context.Context) ([]*StepResult, error) {
	if err := c.Confirm(); err != nil {
		return nil, err
	}
	seq := &Sequence{
		Name:    CleanupSequence,
		Steps:   c.Steps(),
		Logger:  c.logger,
		Metrics: c.metrics,
	}
	return seq.Run(ctx)
}

func (c *Cleaner) authenticate(ctx context.Context) error {
	_, err := c.deps.Cloud.Login(ctx, c.cfg)
	return err
}

func (c *Cleaner) configureClusterAccess(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.StackDir(), 0700); err != nil {
		return errors.Wrapf(err, "failed to create directory '%s'", c.cfg.StackDir())
	}
	descr := c.cfg.Descriptor()
	kubeconfig := c.cfg.KubeconfigPath()
	if err := c.deps.Cloud.GetCredentials(ctx, descr.ResourceGroupName, descr.AksClusterName, kubeconfig); err != nil {
		return err
	}
	cluster, err := c.deps.NewCluster(kubeconfig)
	if err != nil {
		return err
	}
	c.cluster = cluster
	return nil
}

func (c *Cleaner) deleteNamespace(ctx context.Context) error {
	c.logger.Infof("Deleting namespace '%s'", c.cfg.Namespace)
	return c.cluster.DeleteNamespace(ctx, c.cfg.Namespace, progress.Config{
		Interval: c.cfg.ReadinessInterval,
		Timeout:  c.cfg.ReadinessTimeout,
	})
}

func (c *Cleaner) destroyInfra(ctx context.Context) error {
	c.logger.Infof("Destroying infrastructure of '%s'", c.cfg.StackName())
	return c.deps.Infra.Destroy(ctx)
}
