package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kyma-incubator/rag-deployer/pkg/deploy"
	"github.com/kyma-incubator/rag-deployer/pkg/smoketest"
)

// PrintSteps renders the outcome of each step of a sequence.
func PrintSteps(writer io.Writer, format string, results []*deploy.StepResult) error {
	of, err := NewOutputFormatter(format)
	if err != nil {
		return err
	}
	if err := of.Header("Step", "Status", "Duration", "Error"); err != nil {
		return err
	}
	for _, result := range results {
		var errMsg string
		if result.Error != nil {
			errMsg = result.Error.Error()
		}
		if err := of.AddRow(result.Name, string(result.Status), duration(result.Status != deploy.StepSkipped, result.Duration.Seconds()), errMsg); err != nil {
			return err
		}
	}
	return of.Output(writer)
}

// PrintProbes renders the results of a smoke test.
func PrintProbes(writer io.Writer, format string, report *smoketest.Report) error {
	of, err := NewOutputFormatter(format)
	if err != nil {
		return err
	}
	if err := of.Header("Probe", "Status", "HTTP", "Duration", "Message"); err != nil {
		return err
	}
	for _, result := range report.Results {
		httpStatus := ""
		if result.HTTPStatus > 0 {
			httpStatus = strconv.Itoa(result.HTTPStatus)
		}
		if err := of.AddRow(result.Name, string(result.Status), httpStatus,
			duration(result.Status != smoketest.StatusSkipped, result.Duration.Seconds()), result.Message); err != nil {
			return err
		}
	}
	return of.Output(writer)
}

func duration(executed bool, secs float64) string {
	if !executed {
		return "-"
	}
	return fmt.Sprintf("%.1fs", secs)
}
