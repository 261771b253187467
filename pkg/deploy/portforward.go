package deploy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	portForwardAttempts = 15
	portForwardDelay    = time.Second
	dialTimeout         = time.Second
)

// PortForward exposes a cluster service on a local port by running 'kubectl port-forward' in the background.
type PortForward struct {
	Runner     executor.Runner
	Kubeconfig string
	Namespace  string
	Service    string
	LocalPort  int
	RemotePort int
	Logger     *zap.SugaredLogger

	attempts uint
	delay    time.Duration
}

// Do starts the port-forward, waits until the local port accepts connections and calls fn with the
// local base URL. The port-forward is stopped when fn returns.
func (p *PortForward) Do(ctx context.Context, fn func(baseURL string) error) error {
	cmd := executor.NewCommand("kubectl", "port-forward",
		"--kubeconfig", p.Kubeconfig,
		"--namespace", p.Namespace,
		fmt.Sprintf("service/%s", p.Service),
		fmt.Sprintf("%d:%d", p.LocalPort, p.RemotePort))
	process, err := p.Runner.Start(ctx, cmd)
	if err != nil {
		return errors.Wrapf(err, "failed to start port-forward to service '%s'", p.Service)
	}
	defer func() {
		if err := process.Stop(); err != nil {
			p.Logger.Warnf("Failed to stop port-forward to service '%s': %s", p.Service, err)
		}
	}()

	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(p.LocalPort))
	if err := p.awaitPort(ctx, process, address); err != nil {
		return err
	}
	return fn(fmt.Sprintf("http://%s", address))
}

func (p *PortForward) awaitPort(ctx context.Context, process executor.Process, address string) error {
	attempts, delay := p.attempts, p.delay
	if attempts == 0 {
		attempts = portForwardAttempts
	}
	if delay == 0 {
		delay = portForwardDelay
	}
	return retry.Do(func() error {
		select {
		case <-process.Done():
			return retry.Unrecoverable(fmt.Errorf("port-forward to service '%s' terminated unexpectedly", p.Service))
		default:
		}
		conn, err := net.DialTimeout("tcp", address, dialTimeout)
		if err != nil {
			return err
		}
		return conn.Close()
	},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.Logger.Debugf("Local port %s of port-forward not reachable yet (attempt %d): %s", address, n+1, err)
		}),
	)
}
