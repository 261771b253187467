package smoketest

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type ProbeResult struct {
	Name       string
	Status     Status
	HTTPStatus int
	Duration   time.Duration
	Message    string
}

type Report struct {
	BaseURL string
	Results []*ProbeResult
}

// Failed is true if any probe returned a non-2xx status or did not get a response. Skipped probes do not count as failure.
func (r *Report) Failed() bool {
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			return true
		}
	}
	return false
}

func (r *Report) Result(name string) *ProbeResult {
	for _, result := range r.Results {
		if result.Name == name {
			return result
		}
	}
	return nil
}

func (r *Report) Error() error {
	var failed []string
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			failed = append(failed, result.Name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("smoke test against '%s' failed for probes: %s", r.BaseURL, strings.Join(failed, ", "))
}
