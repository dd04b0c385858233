package guardian

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"
)

// Check is one gate check from the manifest.
type Check struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	// TimeoutMs bounds the check run; 0 means the default.
	TimeoutMs int `yaml:"timeoutMs,omitempty"`
}

const defaultCheckTimeout = 2 * time.Minute

type checksManifest struct {
	Checks []Check `yaml:"checks"`
}

// LoadChecks reads the gate-check manifest. A missing manifest means
// no checks are configured and the gate trivially passes.
func LoadChecks(path string) ([]Check, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checks manifest: %w", err)
	}
	var m checksManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse checks manifest: %w", err)
	}
	for i, c := range m.Checks {
		if c.Name == "" || len(c.Command) == 0 {
			return nil, fmt.Errorf("check %d is missing a name or command", i)
		}
	}
	return m.Checks, nil
}

// Runner executes one check in a directory. Injectable so tests can
// simulate passing and failing gates without spawning processes.
type Runner interface {
	Run(ctx context.Context, check Check, dir string) error
}

// ExecRunner runs checks as subprocesses.
type ExecRunner struct{}

// Run executes the check command in dir, bounded by its timeout.
func (ExecRunner) Run(ctx context.Context, check Check, dir string) error {
	timeout := defaultCheckTimeout
	if check.TimeoutMs > 0 {
		timeout = time.Duration(check.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, check.Command[0], check.Command[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("check %q failed: %w: %s", check.Name, err, tail(out, 512))
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
