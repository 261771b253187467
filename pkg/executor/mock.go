package executor

import (
	"context"
	"strings"
	"sync"
)

// MockRunner records all executed commands. The optional Handler decides about the result of a command.
type MockRunner struct {
	Handler  func(cmd Command) (*Result, error)
	mu       sync.Mutex
	commands []Command
	started  []Command
}

func (m *MockRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()
	if m.Handler != nil {
		return m.Handler(cmd)
	}
	return &Result{}, nil
}

func (m *MockRunner) Start(_ context.Context, cmd Command) (Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, cmd)
	return newMockProcess(), nil
}

func (m *MockRunner) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.commands...)
}

// CommandLines returns the executed commands as strings (e.g. "terraform apply -auto-approve").
func (m *MockRunner) CommandLines() []string {
	var result []string
	for _, cmd := range m.Commands() {
		result = append(result, cmd.String())
	}
	return result
}

func (m *MockRunner) Started() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.started...)
}

// HasPrefix checks whether any executed command line starts with the given prefix.
func (m *MockRunner) HasPrefix(prefix string) bool {
	for _, line := range m.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

type mockProcess struct {
	once sync.Once
	done chan struct{}
}

func newMockProcess() *mockProcess {
	return &mockProcess{done: make(chan struct{})}
}

func (p *mockProcess) Stop() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *mockProcess) Done() <-chan struct{} {
	return p.done
}
