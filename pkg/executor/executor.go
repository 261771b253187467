package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	gocmd "github.com/go-cmd/cmd"
	e "github.com/kyma-incubator/rag-deployer/pkg/error"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultRetryDelay = 2 * time.Second

	// go-cmd launches processes asynchronously: these bound the wait for the PID
	startPollInterval = 10 * time.Millisecond
	startPollAttempts = 500
)

type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string //appended to the environment of the current process
	Secrets []string //masked when the command is printed
}

func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

func (c Command) String() string {
	line := strings.TrimSpace(fmt.Sprintf("%s %s", c.Name, strings.Join(c.Args, " ")))
	for _, secret := range c.Secrets {
		if secret != "" {
			line = strings.ReplaceAll(line, secret, "***")
		}
	}
	return line
}

type Result struct {
	Stdout  []string
	Stderr  []string
	Exit    int
	Runtime time.Duration
}

func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Stdout, "\n")
}

// Process is a command running in the background.
type Process interface {
	Stop() error
	Done() <-chan struct{}
}

type Runner interface {
	// Run executes the command and blocks until it finished.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Start launches the command in the background.
	Start(ctx context.Context, cmd Command) (Process, error)
}

type CmdRunner struct {
	logger     *zap.SugaredLogger
	attempts   uint
	retryDelay time.Duration
}

func NewCmdRunner(logger *zap.SugaredLogger, attempts uint) *CmdRunner {
	if attempts == 0 {
		attempts = 1
	}
	return &CmdRunner{
		logger:     logger,
		attempts:   attempts,
		retryDelay: defaultRetryDelay,
	}
}

func (r *CmdRunner) Run(ctx context.Context, command Command) (*Result, error) {
	if command.Name == "" {
		return nil, errors.New("command name must not be empty")
	}

	var result *Result
	err := retry.Do(func() error {
		var err error
		result, err = r.run(ctx, command)
		return err
	},
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !e.IsContextClosedError(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warnf("Attempt %d of command '%s' failed: %s", n+1, command.Name, err)
		}),
	)
	return result, err
}

func (r *CmdRunner) run(ctx context.Context, command Command) (*Result, error) {
	cmd := r.newCmd(command)
	r.logger.Debugf("Executing command '%s'", command)

	statusChan := cmd.Start()
	var status gocmd.Status
	select {
	case status = <-statusChan:
	case <-ctx.Done():
		if err := stopCmd(cmd); err != nil {
			r.logger.Warnf("Failed to stop command '%s': %s", command.Name, err)
		}
		return nil, e.NewContextClosedError(command.Name, "command was interrupted before it finished")
	}

	result := &Result{
		Stdout:  status.Stdout,
		Stderr:  status.Stderr,
		Exit:    status.Exit,
		Runtime: time.Duration(status.Runtime * float64(time.Second)),
	}
	for _, line := range status.Stdout {
		r.logger.Debugf("[%s] %s", command.Name, line)
	}

	// go-cmd reports some failures only through the exit code while the status error stays nil
	if status.Error != nil || status.Exit != 0 {
		exitErr := &ExitError{
			Command: command.String(),
			Code:    status.Exit,
			Stderr:  strings.Join(status.Stderr, "\n"),
		}
		if status.Error != nil {
			exitErr.Cause = status.Error
			if exitErr.Code <= 0 {
				exitErr.Code = 127
			}
		}
		return result, exitErr
	}
	return result, nil
}

func (r *CmdRunner) Start(ctx context.Context, command Command) (Process, error) {
	if command.Name == "" {
		return nil, errors.New("command name must not be empty")
	}
	cmd := r.newCmd(command)
	r.logger.Debugf("Starting background command '%s'", command)
	statusChan := cmd.Start()

	if err := waitStarted(cmd); err != nil {
		_ = stopCmd(cmd)
		return nil, errors.Wrapf(err, "background command '%s' did not start", command)
	}
	select {
	case status := <-statusChan:
		if status.Error != nil {
			return nil, &ExitError{Command: command.String(), Code: 127, Cause: status.Error}
		}
		if status.Exit != 0 {
			return nil, &ExitError{
				Command: command.String(),
				Code:    status.Exit,
				Stderr:  strings.Join(status.Stderr, "\n"),
			}
		}
	default:
	}

	go func() {
		select {
		case <-ctx.Done():
			if err := stopCmd(cmd); err != nil {
				r.logger.Warnf("Failed to stop background command '%s': %s", command.Name, err)
			}
		case <-cmd.Done():
		}
	}()

	return &process{cmd: cmd, logger: r.logger}, nil
}

// waitStarted blocks until the process of cmd exists or cmd already finished.
func waitStarted(cmd *gocmd.Cmd) error {
	return retry.Do(func() error {
		select {
		case <-cmd.Done():
			return nil
		default:
		}
		if cmd.Status().StartTs == 0 {
			return gocmd.ErrNotStarted
		}
		return nil
	},
		retry.Attempts(startPollAttempts),
		retry.Delay(startPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// stopCmd terminates cmd and blocks until it finished. A stop request which arrives
// before the process exists is repeated.
func stopCmd(cmd *gocmd.Cmd) error {
	err := retry.Do(func() error {
		select {
		case <-cmd.Done():
			return nil
		default:
		}
		return cmd.Stop()
	},
		retry.Attempts(startPollAttempts),
		retry.Delay(startPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, gocmd.ErrNotStarted)
		}),
	)
	if err != nil {
		return err
	}
	<-cmd.Done()
	return nil
}

func (r *CmdRunner) newCmd(command Command) *gocmd.Cmd {
	cmd := gocmd.NewCmdOptions(gocmd.Options{Buffered: true}, command.Name, command.Args...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	return cmd
}

type process struct {
	cmd    *gocmd.Cmd
	logger *zap.SugaredLogger
}

func (p *process) Stop() error {
	err := stopCmd(p.cmd)
	status := p.cmd.Status()
	p.logger.Debugf("Background command '%s' stopped (pid: %d, runtime: %.1f secs)",
		p.cmd.Name, status.PID, status.Runtime)
	return err
}

func (p *process) Done() <-chan struct{} {
	return p.cmd.Done()
}
