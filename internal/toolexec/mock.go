package toolexec

import (
	"context"
	"sync"
)

// MockRunner implements Runner for testing. It records every command and never starts a process.
type MockRunner struct {
	mu sync.Mutex
	// Commands records all commands that were run.
	Commands []Command
	// Factory builds the outcome of a command. If nil, every command succeeds silently.
	Factory func(cmd Command) (*Result, error)
}

// NewMockRunner creates a new MockRunner.
func NewMockRunner(factory func(cmd Command) (*Result, error)) *MockRunner {
	return &MockRunner{Factory: factory}
}

// Run records cmd and returns the outcome built by Factory.
func (m *MockRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	factory := m.Factory
	m.mu.Unlock()

	if factory == nil {
		return &Result{}, nil
	}

	return factory(cmd)
}

// Names returns the name of every recorded command, in order.
func (m *MockRunner) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.Commands))
	for _, cmd := range m.Commands {
		names = append(names, cmd.Name)
	}

	return names
}

// Find returns the recorded commands for which match returns true.
func (m *MockRunner) Find(match func(cmd Command) bool) []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []Command
	for _, cmd := range m.Commands {
		if match(cmd) {
			found = append(found, cmd)
		}
	}

	return found
}

// LastCommand returns the most recently run command, or nil if none.
func (m *MockRunner) LastCommand() *Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Commands) == 0 {
		return nil
	}
	cmd := m.Commands[len(m.Commands)-1]

	return &cmd
}

// Reset clears all recorded commands.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = nil
}
