package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	HealthProbe = "health"
	UploadProbe = "upload"
	QueryProbe  = "query"

	DefaultFile    = "test.pdf"
	DefaultQuery   = "What is this document about?"
	DefaultTopK    = 5
	DefaultTimeout = 30 * time.Second

	uploadField     = "files"
	maxMessageBytes = 256
)

type Config struct {
	BaseURL string
	File    string
	Query   string
	TopK    int
	Timeout time.Duration
	Probes  []string //subset of probes to run, all probes if empty
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL of the application is undefined")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "base URL '%s' is invalid", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL '%s' has to use the scheme http or https", c.BaseURL)
	}
	if c.File == "" {
		c.File = DefaultFile
	}
	if c.Query == "" {
		c.Query = DefaultQuery
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.Probes) == 0 {
		c.Probes = []string{HealthProbe, UploadProbe, QueryProbe}
	}
	for _, probe := range c.Probes {
		if probe != HealthProbe && probe != UploadProbe && probe != QueryProbe {
			return fmt.Errorf("probe '%s' is not supported", probe)
		}
	}
	return nil
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Runner sends the fixed set of probes (health, upload, query) to the deployed application.
// Probes are not retried.
type Runner struct {
	config  Config
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger
}

func NewRunner(config Config, logger *zap.SugaredLogger) (*Runner, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Runner{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		logger:  logger,
	}, nil
}

// Run executes all probes sequentially. Failing probes do not stop the run.
func (r *Runner) Run(ctx context.Context) *Report {
	probes := map[string]func(context.Context) *ProbeResult{
		HealthProbe: r.health,
		UploadProbe: r.upload,
		QueryProbe:  r.query,
	}
	report := &Report{BaseURL: r.baseURL}
	for _, name := range r.config.Probes {
		result := probes[name](ctx)
		r.logger.Infof("Smoke test probe '%s': %s %s", result.Name, result.Status, result.Message)
		report.Results = append(report.Results, result)
	}
	return report
}

func (r *Runner) health(ctx context.Context) *ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return failed(HealthProbe, err)
	}
	return r.send(HealthProbe, req, nil)
}

func (r *Runner) upload(ctx context.Context) *ProbeResult {
	if !file.Exists(r.config.File) {
		return &ProbeResult{
			Name:    UploadProbe,
			Status:  StatusSkipped,
			Message: fmt.Sprintf("file '%s' not found", r.config.File),
		}
	}
	body, contentType, err := multipartBody(r.config.File)
	if err != nil {
		return failed(UploadProbe, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/upload", body)
	if err != nil {
		return failed(UploadProbe, err)
	}
	req.Header.Set("Content-Type", contentType)
	return r.send(UploadProbe, req, nil)
}

func (r *Runner) query(ctx context.Context) *ProbeResult {
	payload, err := json.Marshal(&queryRequest{Query: r.config.Query, TopK: r.config.TopK})
	if err != nil {
		return failed(QueryProbe, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return failed(QueryProbe, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.send(QueryProbe, req, func(body []byte) string {
		resp := &queryResponse{}
		if err := json.Unmarshal(body, resp); err != nil {
			return "response is not a query result"
		}
		return fmt.Sprintf("%d results", len(resp.Results))
	})
}

func (r *Runner) send(name string, req *http.Request, describe func(body []byte) string) *ProbeResult {
	result := &ProbeResult{Name: name}
	startTime := time.Now()
	resp, err := r.client.Do(req)
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Status = StatusFailed
		result.Message = err.Error()
		return result
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.Warnf("Failed to close response body of probe '%s': %s", name, err)
		}
	}()

	result.HTTPStatus = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Status = StatusFailed
		result.Message = errors.Wrap(err, "failed to read response").Error()
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("unexpected status '%s': %s", resp.Status, truncate(body))
		return result
	}
	result.Status = StatusPassed
	if describe != nil {
		result.Message = describe(body)
	}
	return result
}

func multipartBody(path string) (io.Reader, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read file '%s'", path)
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, filepath.Base(path)))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func failed(name string, err error) *ProbeResult {
	return &ProbeResult{Name: name, Status: StatusFailed, Message: err.Error()}
}

func truncate(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageBytes {
		return msg[:maxMessageBytes] + "..."
	}
	return msg
}
