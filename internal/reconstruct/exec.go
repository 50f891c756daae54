package reconstruct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/log"
)

// CommandFactoryFunc creates an exec.Cmd. Tests swap it to avoid spawning
// the real tools.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// expand substitutes {key} placeholders in every argument.
func expand(template []string, values map[string]string) []string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}

// waitDelay bounds how long Run waits for I/O after the process is killed.
const waitDelay = 2 * time.Second

type runner struct {
	timeout        time.Duration
	commandFactory CommandFactoryFunc
}

func (r runner) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("empty command")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	factory := r.commandFactory
	if factory == nil {
		factory = exec.CommandContext
	}
	//nolint:gosec // G204: command comes from the user's config
	cmd := factory(ctx, args[0], args[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = waitDelay
	}

	start := time.Now()
	err := cmd.Run()
	log.Debug(log.CatRecon, "Ran external tool", "cmd", args[0], "duration", time.Since(start), "error", err)
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

// requireOutput checks that the tool produced a non-empty file.
func requireOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no output at %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output at %s", path)
	}
	return nil
}

// ExecReconstructor runs an external isosurface extractor. The command may
// reference {dir}, {name}, {threshold} and {output}.
type ExecReconstructor struct {
	command []string
	workDir string
	runner  runner
}

var _ Reconstructor = (*ExecReconstructor)(nil)

// NewExecReconstructor creates an ExecReconstructor writing intermediate
// meshes into workDir.
func NewExecReconstructor(command []string, workDir string, timeout time.Duration) *ExecReconstructor {
	return &ExecReconstructor{
		command: command,
		workDir: workDir,
		runner:  runner{timeout: timeout},
	}
}

// WithCommandFactory sets a custom command factory.
func (r *ExecReconstructor) WithCommandFactory(fn CommandFactoryFunc) *ExecReconstructor {
	r.runner.commandFactory = fn
	return r
}

// ExtractIsosurface implements Reconstructor.
func (r *ExecReconstructor) ExtractIsosurface(ctx context.Context, dir, name string, threshold float64) (string, error) {
	if err := os.MkdirAll(r.workDir, 0o750); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	output := filepath.Join(r.workDir, strings.TrimSuffix(meshFileName(name), MeshExtension)+"-"+uuid.NewString()+".obj")

	args := expand(r.command, map[string]string{
		"dir":       dir,
		"name":      name,
		"threshold": strconv.FormatFloat(threshold, 'f', -1, 64),
		"output":    output,
	})
	if err := r.runner.run(ctx, args); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	if err := requireOutput(output); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	return output, nil
}

// ExecConverter runs an external mesh converter. The command may reference
// {input} and {output}.
type ExecConverter struct {
	command []string
	runner  runner
}

var _ Converter = (*ExecConverter)(nil)

// NewExecConverter creates an ExecConverter.
func NewExecConverter(command []string, timeout time.Duration) *ExecConverter {
	return &ExecConverter{command: command, runner: runner{timeout: timeout}}
}

// WithCommandFactory sets a custom command factory.
func (c *ExecConverter) WithCommandFactory(fn CommandFactoryFunc) *ExecConverter {
	c.runner.commandFactory = fn
	return c
}

// Convert implements Converter.
func (c *ExecConverter) Convert(ctx context.Context, input, output string) (string, error) {
	args := expand(c.command, map[string]string{"input": input, "output": output})
	if err := c.runner.run(ctx, args); err != nil {
		return "", err
	}
	if err := requireOutput(output); err != nil {
		return "", err
	}
	return output, nil
}
