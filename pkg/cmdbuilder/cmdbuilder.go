// Package cmdbuilder builds the worker command line and environment
// the Task Manager hands to the node-manager client at launch. The
// CommandBuilder interface is pluggable via the task.command.class
// config key; Shell is the built-in default.
package cmdbuilder

import (
	"fmt"
	"strings"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Config is the subset of job configuration a CommandBuilder needs to
// build a worker's command line and environment.
type Config struct {
	EntryPoint string            // path to the job's entry-point binary/script
	JobArgs    []string          // static args appended after the entry point
	Env        map[string]string // static environment every worker gets
}

// Builder is the pluggable contract a CommandBuilder implements:
// setConfig(config).setName(name).setStreamPartitions(partitions).buildCommand() / buildEnvironment().
type Builder interface {
	SetConfig(cfg Config) Builder
	SetName(name string) Builder
	SetStreamPartitions(partitions []jobstate.PartitionRef) Builder
	BuildCommand() (string, error)
	BuildEnvironment() (map[string]string, error)
}

// Factory constructs a fresh Builder per container launch.
type Factory func() Builder

var registry = map[string]Factory{
	"shell": func() Builder { return NewShell() },
}

// Register makes a Builder variant selectable through the
// task.command.class config key. Call from an init function in the
// package providing the variant.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Lookup resolves a task.command.class value to its Factory. The empty
// string selects the built-in shell builder.
func Lookup(name string) (Factory, error) {
	if name == "" {
		name = "shell"
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("cmdbuilder: unknown command builder %q", name)
	}
	return factory, nil
}

// Shell is the default CommandBuilder: it constructs a shell command
// invoking the job's entry point, redirecting stdout/stderr into the
// container's log directory.
type Shell struct {
	cfg        Config
	name       string
	partitions []jobstate.PartitionRef
}

// NewShell creates the built-in shell CommandBuilder.
func NewShell() *Shell {
	return &Shell{}
}

// SetConfig implements Builder.
func (s *Shell) SetConfig(cfg Config) Builder {
	s.cfg = cfg
	return s
}

// SetName implements Builder.
func (s *Shell) SetName(name string) Builder {
	s.name = name
	return s
}

// SetStreamPartitions implements Builder.
func (s *Shell) SetStreamPartitions(partitions []jobstate.PartitionRef) Builder {
	s.partitions = partitions
	return s
}

// BuildCommand implements Builder. The command redirects stdout/stderr
// to files under the container's own log directory, the way YARN
// containers are expected to lay out logs.
func (s *Shell) BuildCommand() (string, error) {
	if s.cfg.EntryPoint == "" {
		return "", fmt.Errorf("cmdbuilder: entry point is not set for task %s", s.name)
	}

	args := append([]string{s.cfg.EntryPoint}, s.cfg.JobArgs...)
	cmd := strings.Join(args, " ")
	return fmt.Sprintf(
		"%s 1>%s/stdout 2>%s/stderr",
		cmd, logDir, logDir,
	), nil
}

const logDir = "<LOG_DIR>"

// BuildEnvironment implements Builder. Values are escaped per the
// node-manager's shell rules before being handed to StartContainer;
// here that means backslash-escaping double quotes and rejecting
// embedded newlines, which would otherwise let an environment value
// inject additional shell commands.
func (s *Shell) BuildEnvironment() (map[string]string, error) {
	env := make(map[string]string, len(s.cfg.Env)+4)
	for k, v := range s.cfg.Env {
		escaped, err := escapeShellValue(v)
		if err != nil {
			return nil, fmt.Errorf("cmdbuilder: environment key %q: %w", k, err)
		}
		env[k] = escaped
	}

	env["STREAMTASK_TASK_NAME"] = s.name
	env["STREAMTASK_PARTITION_COUNT"] = fmt.Sprintf("%d", len(s.partitions))

	var systems []string
	seen := make(map[string]struct{})
	for _, p := range s.partitions {
		key := p.System + "/" + p.Stream
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		systems = append(systems, key)
	}
	env["STREAMTASK_STREAMS"] = strings.Join(systems, ",")

	return env, nil
}

func escapeShellValue(v string) (string, error) {
	if strings.ContainsAny(v, "\n\r") {
		return "", fmt.Errorf("environment values may not contain newlines")
	}
	return strings.ReplaceAll(v, `"`, `\"`), nil
}
