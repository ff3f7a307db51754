package shell

import (
	"fmt"
	"regexp"
)

// MockCommand is one pattern/output/error fixture for MockExecutor. Pattern
// is matched against the full command string as a regular expression.
type MockCommand struct {
	Pattern string
	Output  string
	Error   error
}

// MockExecutor is a test double for Executor: it matches each invoked
// command against its configured MockCommand list in order and returns the
// first match's Output/Error, or an error if nothing matches.
type MockExecutor struct {
	commands []MockCommand
	Calls    []string
}

// NewMockExecutor returns a MockExecutor that replays commands.
func NewMockExecutor(commands []MockCommand) *MockExecutor {
	return &MockExecutor{commands: commands}
}

func (m *MockExecutor) find(cmdStr string) (MockCommand, error) {
	m.Calls = append(m.Calls, cmdStr)
	for _, c := range m.commands {
		matched, err := regexp.MatchString(c.Pattern, cmdStr)
		if err != nil {
			return MockCommand{}, fmt.Errorf("invalid mock pattern %q: %w", c.Pattern, err)
		}
		if matched {
			return c, nil
		}
	}
	return MockCommand{}, fmt.Errorf("no mock command configured for %q", cmdStr)
}

func (m *MockExecutor) ExecCmd(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	c, err := m.find(cmdStr)
	if err != nil {
		return "", err
	}
	return c.Output, c.Error
}

func (m *MockExecutor) ExecCmdSilent(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return m.ExecCmd(cmdStr, sudo, chrootPath, envVal)
}

func (m *MockExecutor) ExecCmdWithStream(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return m.ExecCmd(cmdStr, sudo, chrootPath, envVal)
}

func (m *MockExecutor) ExecCmdWithInput(inputStr string, cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return m.ExecCmd(cmdStr, sudo, chrootPath, envVal)
}
