package smoketest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockApp struct {
	healthStatus int
	uploadStatus int
	queryStatus  int
	queryDelay   time.Duration

	mu       sync.Mutex
	uploaded []string
	queries  []queryRequest
	errs     []error
}

// record stores what a handler received. Handlers run on server goroutines and
// must not call t.FailNow, so request errors are collected and asserted by the test.
func (m *mockApp) record(fn func() error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := fn(); err != nil {
		m.errs = append(m.errs, err)
		return false
	}
	return true
}

func (m *mockApp) received(t *testing.T) ([]string, []queryRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Empty(t, m.errs)
	return append([]string(nil), m.uploaded...), append([]queryRequest(nil), m.queries...)
}

func (m *mockApp) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(m.healthStatus)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		ok := m.record(func() error {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				return err
			}
			for _, header := range r.MultipartForm.File[uploadField] {
				m.uploaded = append(m.uploaded, header.Filename)
			}
			return nil
		})
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(m.uploadStatus)
	}).Methods(http.MethodPost)
	router.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(m.queryDelay)
		ok := m.record(func() error {
			req := queryRequest{}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
			m.queries = append(m.queries, req)
			return nil
		})
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.queryStatus)
		_, _ = w.Write([]byte(`{"query":"q","results":[{"text":"a"},{"text":"b"}]}`))
	}).Methods(http.MethodPost)
	return router
}

func newMockApp() *mockApp {
	return &mockApp{healthStatus: http.StatusOK, uploadStatus: http.StatusOK, queryStatus: http.StatusOK}
}

func TestRunner(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("Missing upload file is skipped", func(t *testing.T) {
		app := newMockApp()
		server := httptest.NewServer(app.router())
		defer server.Close()

		runner, err := NewRunner(Config{BaseURL: server.URL, File: filepath.Join(t.TempDir(), "test.pdf")}, logger)
		require.NoError(t, err)
		report := runner.Run(context.Background())

		require.False(t, report.Failed())
		require.NoError(t, report.Error())
		require.Len(t, report.Results, 3)
		require.Equal(t, StatusPassed, report.Result(HealthProbe).Status)
		require.Equal(t, http.StatusOK, report.Result(HealthProbe).HTTPStatus)
		require.Equal(t, StatusSkipped, report.Result(UploadProbe).Status)
		require.Equal(t, StatusPassed, report.Result(QueryProbe).Status)
		require.Equal(t, "2 results", report.Result(QueryProbe).Message)
		uploaded, queries := app.received(t)
		require.Empty(t, uploaded)
		require.Equal(t, []queryRequest{{Query: DefaultQuery, TopK: DefaultTopK}}, queries)
	})

	t.Run("Upload sends the file as multipart form", func(t *testing.T) {
		app := newMockApp()
		server := httptest.NewServer(app.router())
		defer server.Close()

		pdf := filepath.Join(t.TempDir(), "test.pdf")
		require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4 test"), 0600))

		runner, err := NewRunner(Config{BaseURL: server.URL + "/", File: pdf, Query: "What is RAG?", TopK: 3}, logger)
		require.NoError(t, err)
		report := runner.Run(context.Background())

		require.False(t, report.Failed())
		require.Equal(t, StatusPassed, report.Result(UploadProbe).Status)
		uploaded, queries := app.received(t)
		require.Equal(t, []string{"test.pdf"}, uploaded)
		require.Equal(t, []queryRequest{{Query: "What is RAG?", TopK: 3}}, queries)
	})

	t.Run("Non-2xx status fails the run", func(t *testing.T) {
		app := newMockApp()
		app.healthStatus = http.StatusServiceUnavailable
		server := httptest.NewServer(app.router())
		defer server.Close()

		runner, err := NewRunner(Config{BaseURL: server.URL, File: filepath.Join(t.TempDir(), "test.pdf")}, logger)
		require.NoError(t, err)
		report := runner.Run(context.Background())

		require.True(t, report.Failed())
		require.Equal(t, StatusFailed, report.Result(HealthProbe).Status)
		require.Equal(t, http.StatusServiceUnavailable, report.Result(HealthProbe).HTTPStatus)
		require.Contains(t, report.Result(HealthProbe).Message, "healthy")
		//remaining probes are still executed
		require.Equal(t, StatusPassed, report.Result(QueryProbe).Status)
		require.EqualError(t, report.Error(), "smoke test against '"+server.URL+"' failed for probes: health")
	})

	t.Run("Timeout fails the run", func(t *testing.T) {
		app := newMockApp()
		app.queryDelay = 300 * time.Millisecond
		server := httptest.NewServer(app.router())
		defer server.Close()

		runner, err := NewRunner(Config{
			BaseURL: server.URL,
			File:    filepath.Join(t.TempDir(), "test.pdf"),
			Timeout: 100 * time.Millisecond,
		}, logger)
		require.NoError(t, err)
		report := runner.Run(context.Background())

		require.True(t, report.Failed())
		require.Equal(t, StatusFailed, report.Result(QueryProbe).Status)
		require.Zero(t, report.Result(QueryProbe).HTTPStatus)
	})

	t.Run("Unreachable application", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		runner, err := NewRunner(Config{BaseURL: server.URL, File: filepath.Join(t.TempDir(), "test.pdf")}, logger)
		require.NoError(t, err)
		report := runner.Run(context.Background())
		require.True(t, report.Failed())
		require.Equal(t, StatusFailed, report.Result(HealthProbe).Status)
		require.Equal(t, StatusSkipped, report.Result(UploadProbe).Status)
	})
}

func TestSelectedProbes(t *testing.T) {
	app := newMockApp()
	server := httptest.NewServer(app.router())
	defer server.Close()

	runner, err := NewRunner(Config{BaseURL: server.URL, Probes: []string{HealthProbe}}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	report := runner.Run(context.Background())
	require.Len(t, report.Results, 1)
	require.Equal(t, StatusPassed, report.Result(HealthProbe).Status)
	require.Nil(t, report.Result(QueryProbe))
	_, queries := app.received(t)
	require.Empty(t, queries)
}

func TestConfig(t *testing.T) {
	_, err := NewRunner(Config{}, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	_, err = NewRunner(Config{BaseURL: "ftp://localhost"}, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)

	cfg := Config{BaseURL: "http://localhost:8080"}
	require.NoError(t, cfg.validate())
	require.Equal(t, DefaultFile, cfg.File)
	require.Equal(t, DefaultTopK, cfg.TopK)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, []string{HealthProbe, UploadProbe, QueryProbe}, cfg.Probes)

	_, err = NewRunner(Config{BaseURL: "http://localhost", Probes: []string{"ready"}}, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
}
