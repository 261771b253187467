package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"go.uber.org/zap"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Step is a single unit of a sequence. Steps share state through the struct they are bound to.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

type StepResult struct {
	Name     string
	Status   StepStatus
	Duration time.Duration
	Error    error
}

func (r *StepResult) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: %s (%s)", r.Name, r.Status, r.Error)
	}
	return fmt.Sprintf("%s: %s", r.Name, r.Status)
}

// StepError is returned by a sequence when one of its steps failed.
type StepError struct {
	Step string
	Err  error
}

func (err *StepError) Error() string {
	return fmt.Sprintf("step '%s' failed: %s", err.Step, err.Err)
}

func (err *StepError) Unwrap() error {
	return err.Err
}

// Sequence runs its steps strictly in order and stops at the first failing step.
// There is no rollback: changes of finished steps stay in place.
type Sequence struct {
	Name    string
	Steps   []Step
	Logger  *zap.SugaredLogger
	Metrics *metrics.Collector
}

// Run returns a result for every step. Steps after a failure are reported as skipped.
func (s *Sequence) Run(ctx context.Context) ([]*StepResult, error) {
	var results []*StepResult
	var stepErr error
	for idx, step := range s.Steps {
		if stepErr != nil {
			results = append(results, &StepResult{Name: step.Name, Status: StepSkipped})
			continue
		}

		s.Logger.Infof("[%d/%d] %s", idx+1, len(s.Steps), step.Name)
		startTime := time.Now()
		err := s.runStep(ctx, step)
		result := &StepResult{Name: step.Name, Duration: time.Since(startTime), Status: StepSucceeded}
		if err != nil {
			result.Status = StepFailed
			result.Error = err
			stepErr = &StepError{Step: step.Name, Err: err}
			s.Logger.Errorf("Step '%s' of %s failed after %.1f secs: %s",
				step.Name, s.Name, result.Duration.Seconds(), err)
		} else {
			s.Logger.Debugf("Step '%s' of %s finished after %.1f secs", step.Name, s.Name, result.Duration.Seconds())
		}
		s.record(result)
		results = append(results, result)
	}
	return results, stepErr
}

func (s *Sequence) runStep(ctx context.Context, step Step) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return step.Run(ctx)
}

func (s *Sequence) record(result *StepResult) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.StepDuration.Observe(s.Name, result.Name, result.Duration)
	s.Metrics.StepResult.Inc(s.Name, result.Name, string(result.Status))
}
