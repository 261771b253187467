package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusMissing  Status = "missing"
	StatusOutdated Status = "outdated"
	StatusUnknown  Status = "unknown"
)

var versionRegex = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Tool is a command line tool the deployment depends on.
type Tool struct {
	Name        string
	MinVersion  string
	VersionArgs []string
}

// DefaultTools are the CLIs used by the deployment and cleanup.
var DefaultTools = []Tool{
	{Name: "az", MinVersion: "2.40.0", VersionArgs: []string{"version", "--query", `"azure-cli"`, "-o", "tsv"}},
	{Name: "terraform", MinVersion: "1.3.0", VersionArgs: []string{"version"}},
	{Name: "kubectl", MinVersion: "1.24.0", VersionArgs: []string{"version", "--client", "-o", "json"}},
	{Name: "docker", MinVersion: "20.10.0", VersionArgs: []string{"version", "--format", "{{.Client.Version}}"}},
}

type Check struct {
	Tool       string
	Path       string
	Version    string
	MinVersion string
	Status     Status
	Message    string
}

type Report struct {
	Checks []*Check
}

// Failed returns true if a tool is missing or older than required.
// Tools whose version could not be determined are only reported.
func (r *Report) Failed() bool {
	for _, check := range r.Checks {
		if check.Status == StatusMissing || check.Status == StatusOutdated {
			return true
		}
	}
	return false
}

func (r *Report) Error() error {
	var failed []string
	for _, check := range r.Checks {
		if check.Status == StatusMissing || check.Status == StatusOutdated {
			failed = append(failed, fmt.Sprintf("%s (%s)", check.Tool, check.Status))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight check failed for tools: %s", strings.Join(failed, ", "))
}

type Checker struct {
	runner   executor.Runner
	logger   *zap.SugaredLogger
	tools    []Tool
	lookPath func(file string) (string, error)
}

func NewChecker(runner executor.Runner, logger *zap.SugaredLogger, tools ...Tool) *Checker {
	if len(tools) == 0 {
		tools = DefaultTools
	}
	return &Checker{
		runner:   runner,
		logger:   logger,
		tools:    tools,
		lookPath: exec.LookPath,
	}
}

// Run verifies each tool and returns the report. The returned error is only set if
// the checks could not be executed, a failed check is reported through Report.Failed().
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	for _, tool := range c.tools {
		check, err := c.check(ctx, tool)
		if err != nil {
			return report, err
		}
		c.logger.Debugf("Preflight check of tool '%s': %s %s", check.Tool, check.Status, check.Message)
		report.Checks = append(report.Checks, check)
	}
	return report, nil
}

func (c *Checker) check(ctx context.Context, tool Tool) (*Check, error) {
	check := &Check{Tool: tool.Name, MinVersion: tool.MinVersion}

	path, err := c.lookPath(tool.Name)
	if err != nil {
		check.Status = StatusMissing
		check.Message = fmt.Sprintf("'%s' not found in PATH", tool.Name)
		return check, nil
	}
	check.Path = path

	minVersion, err := semver.NewVersion(tool.MinVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "minimum version '%s' of tool '%s' is invalid", tool.MinVersion, tool.Name)
	}

	result, err := c.runner.Run(ctx, executor.NewCommand(tool.Name, tool.VersionArgs...))
	if err != nil {
		check.Status = StatusUnknown
		check.Message = fmt.Sprintf("failed to determine version: %s", err)
		return check, nil
	}

	version, err := ParseVersion(result.Output())
	if err != nil {
		check.Status = StatusUnknown
		check.Message = err.Error()
		return check, nil
	}
	check.Version = version.String()

	if version.LessThan(*minVersion) {
		check.Status = StatusOutdated
		check.Message = fmt.Sprintf("version %s is older than required version %s", version, minVersion)
		return check, nil
	}
	check.Status = StatusOK
	return check, nil
}

// ParseVersion extracts the first semantic version (major.minor.patch) of a tool's version output.
func ParseVersion(output string) (*semver.Version, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("no semantic version found in output '%s'", strings.TrimSpace(output))
	}
	return semver.NewVersion(match)
}
