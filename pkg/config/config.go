// Package config loads the core's configuration surface: task count,
// per-container resource shape, retry policy, the deployable package
// path, and the CommandBuilder variant. Keys are bound through viper
// so they can come from flags, environment variables (STREAMTASK_
// prefix) or a YAML job descriptor, with typed defaults and
// required-key validation layered on top of the raw flag reads.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Canonical config keys.
const (
	KeyTaskCount     = "task.count"
	KeyMemMB         = "yarn.container.memory.mb"
	KeyCPUCores      = "yarn.container.cpu.cores"
	KeyRetryCount    = "yarn.container.retry.count"
	KeyRetryWindowMs = "yarn.container.retry.window.ms"
	KeyPackagePath   = "yarn.package.path"
	KeyCommandClass  = "task.command.class"

	KeyAMHost              = "am.host"
	KeyAMPort              = "am.port"
	KeyTrackingURL         = "am.tracking.url"
	KeyStatusAddr          = "am.status.addr"
	KeyResourceManagerAddr = "yarn.resourcemanager.addr"
	KeyNodeManagerAddr     = "yarn.nodemanager.addr"
	KeyHeartbeatIntervalMs = "yarn.heartbeat.interval.ms"
	KeyCheckpointBrokers   = "checkpoint.kafka.brokers"
	KeyCheckpointTopic     = "checkpoint.kafka.topic"
)

// Config is the core's validated, typed configuration.
type Config struct {
	TaskCount     int
	MemMB         int
	CPUCores      int
	RetryCount    int
	RetryWindowMs int64
	PackagePath   string
	CommandClass  string

	Partitions []jobstate.PartitionRef
	EntryPoint string
	JobArgs    []string

	// AMHost/AMPort/TrackingURL are the application master's own RPC
	// endpoint and status-page URL, announced to the resource manager
	// at registration.
	AMHost      string
	AMPort      int
	TrackingURL string

	// StatusAddr is the local address the status/metrics HTTP server
	// binds, distinct from AMHost:AMPort (the cluster-routable endpoint
	// the resource manager is told about).
	StatusAddr string

	ResourceManagerAddr string
	NodeManagerAddr     string

	HeartbeatIntervalMs int64

	CheckpointBrokers []string
	CheckpointTopic   string
}

// PartitionSpec is one input-stream partition as it appears in a YAML
// job descriptor, mirroring jobstate.PartitionRef.
type PartitionSpec struct {
	System      string `yaml:"system"`
	Stream      string `yaml:"stream"`
	PartitionID int    `yaml:"partitionId"`
}

// JobDescriptor is the optional YAML file a job submission can carry
// instead of (or layered over) flags/environment variables. A field that
// is set overrides the flag/environment value; a zero or absent field
// leaves that value (or its default) in place, except retryCount, where
// an explicit 0 is applied.
type JobDescriptor struct {
	TaskCount     int             `yaml:"taskCount"`
	MemMB         int             `yaml:"containerMemoryMB"`
	CPUCores      int             `yaml:"containerCPUCores"`
	RetryCount    *int            `yaml:"retryCount"`
	RetryWindowMs int64           `yaml:"retryWindowMs"`
	PackagePath   string          `yaml:"packagePath"`
	CommandClass  string          `yaml:"commandClass"`
	Partitions    []PartitionSpec `yaml:"partitions"`
	EntryPoint    string          `yaml:"entryPoint"`
	JobArgs       []string        `yaml:"jobArgs"`
}

// BindFlags registers the config surface as persistent flags on cmd
// and binds each to its viper key.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	cmd.PersistentFlags().Int("task-count", 1, "number of task groups")
	cmd.PersistentFlags().Int("container-memory-mb", 1024, "requested memory per container (MB)")
	cmd.PersistentFlags().Int("container-cpu-cores", 1, "requested CPU cores per container")
	cmd.PersistentFlags().Int("retry-count", 8, "per-task retry budget (0 = no retries, negative = unbounded)")
	cmd.PersistentFlags().Int64("retry-window-ms", 300000, "sliding failure-window length in milliseconds")
	cmd.PersistentFlags().String("package-path", "", "URL of the job's deployable archive (required)")
	cmd.PersistentFlags().String("command-class", "", "fully-qualified CommandBuilder variant (default: built-in shell builder)")
	cmd.PersistentFlags().String("job-descriptor", "", "path to a YAML job descriptor overriding the flags above")

	cmd.PersistentFlags().String("am-host", "", "this application master's cluster-routable host (required)")
	cmd.PersistentFlags().Int("am-port", 0, "this application master's RPC port")
	cmd.PersistentFlags().String("am-tracking-url", "", "status-page URL announced to the resource manager")
	cmd.PersistentFlags().String("am-status-addr", ":8088", "local bind address for the status/metrics HTTP server")
	cmd.PersistentFlags().String("resourcemanager-addr", "", "resource manager gRPC address (required)")
	cmd.PersistentFlags().String("nodemanager-addr", "", "node manager gRPC address (required)")
	cmd.PersistentFlags().Int64("heartbeat-interval-ms", 1000, "interval between heartbeat ticks on the event queue")
	cmd.PersistentFlags().StringSlice("checkpoint-brokers", nil, "Kafka broker addresses for checkpoint storage (optional)")
	cmd.PersistentFlags().String("checkpoint-topic", "", "Kafka topic for checkpoint storage (required if checkpoint-brokers is set)")

	binds := map[string]string{
		KeyTaskCount:           "task-count",
		KeyMemMB:               "container-memory-mb",
		KeyCPUCores:            "container-cpu-cores",
		KeyRetryCount:          "retry-count",
		KeyRetryWindowMs:       "retry-window-ms",
		KeyPackagePath:         "package-path",
		KeyCommandClass:        "command-class",
		KeyAMHost:              "am-host",
		KeyAMPort:              "am-port",
		KeyTrackingURL:         "am-tracking-url",
		KeyStatusAddr:          "am-status-addr",
		KeyResourceManagerAddr: "resourcemanager-addr",
		KeyNodeManagerAddr:     "nodemanager-addr",
		KeyHeartbeatIntervalMs: "heartbeat-interval-ms",
		KeyCheckpointBrokers:   "checkpoint-brokers",
		KeyCheckpointTopic:     "checkpoint-topic",
		"job-descriptor":       "job-descriptor",
	}
	for key, flag := range binds {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("config: failed to bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix("STREAMTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return nil
}

// Load reads the bound viper keys, layers in a YAML job descriptor if
// one was given, and validates the result. A config error here is
// fatal at startup and the core never registers with the resource
// manager.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		TaskCount:     v.GetInt(KeyTaskCount),
		MemMB:         v.GetInt(KeyMemMB),
		CPUCores:      v.GetInt(KeyCPUCores),
		RetryCount:    v.GetInt(KeyRetryCount),
		RetryWindowMs: v.GetInt64(KeyRetryWindowMs),
		PackagePath:   v.GetString(KeyPackagePath),
		CommandClass:  v.GetString(KeyCommandClass),

		AMHost:      v.GetString(KeyAMHost),
		AMPort:      v.GetInt(KeyAMPort),
		TrackingURL: v.GetString(KeyTrackingURL),
		StatusAddr:  v.GetString(KeyStatusAddr),

		ResourceManagerAddr: v.GetString(KeyResourceManagerAddr),
		NodeManagerAddr:     v.GetString(KeyNodeManagerAddr),

		HeartbeatIntervalMs: v.GetInt64(KeyHeartbeatIntervalMs),

		CheckpointBrokers: v.GetStringSlice(KeyCheckpointBrokers),
		CheckpointTopic:   v.GetString(KeyCheckpointTopic),
	}

	if path := v.GetString("job-descriptor"); path != "" {
		descriptor, err := loadDescriptor(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: failed to load job descriptor %s: %w", path, err)
		}
		applyDescriptor(&cfg, descriptor)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDescriptor(path string) (JobDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobDescriptor{}, err
	}
	var d JobDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return JobDescriptor{}, fmt.Errorf("invalid YAML: %w", err)
	}
	return d, nil
}

func applyDescriptor(cfg *Config, d JobDescriptor) {
	if d.TaskCount != 0 {
		cfg.TaskCount = d.TaskCount
	}
	if d.MemMB != 0 {
		cfg.MemMB = d.MemMB
	}
	if d.CPUCores != 0 {
		cfg.CPUCores = d.CPUCores
	}
	if d.RetryCount != nil {
		cfg.RetryCount = *d.RetryCount
	}
	if d.RetryWindowMs != 0 {
		cfg.RetryWindowMs = d.RetryWindowMs
	}
	if d.PackagePath != "" {
		cfg.PackagePath = d.PackagePath
	}
	if d.CommandClass != "" {
		cfg.CommandClass = d.CommandClass
	}
	if len(d.Partitions) > 0 {
		cfg.Partitions = make([]jobstate.PartitionRef, len(d.Partitions))
		for i, p := range d.Partitions {
			cfg.Partitions[i] = jobstate.PartitionRef{System: p.System, Stream: p.Stream, PartitionID: p.PartitionID}
		}
	}
	if d.EntryPoint != "" {
		cfg.EntryPoint = d.EntryPoint
	}
	if len(d.JobArgs) > 0 {
		cfg.JobArgs = d.JobArgs
	}
}

func validate(cfg Config) error {
	if cfg.TaskCount < 1 {
		return fmt.Errorf("config: %s must be at least 1, got %d", KeyTaskCount, cfg.TaskCount)
	}
	if cfg.MemMB < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", KeyMemMB, cfg.MemMB)
	}
	if cfg.CPUCores < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", KeyCPUCores, cfg.CPUCores)
	}
	if cfg.RetryWindowMs < 0 {
		return fmt.Errorf("config: %s must not be negative, got %d", KeyRetryWindowMs, cfg.RetryWindowMs)
	}
	if cfg.HeartbeatIntervalMs < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", KeyHeartbeatIntervalMs, cfg.HeartbeatIntervalMs)
	}
	if cfg.PackagePath == "" {
		return fmt.Errorf("config: %s is required", KeyPackagePath)
	}
	if cfg.AMHost == "" {
		return fmt.Errorf("config: %s is required", KeyAMHost)
	}
	if cfg.ResourceManagerAddr == "" {
		return fmt.Errorf("config: %s is required", KeyResourceManagerAddr)
	}
	if cfg.NodeManagerAddr == "" {
		return fmt.Errorf("config: %s is required", KeyNodeManagerAddr)
	}
	if len(cfg.CheckpointBrokers) > 0 && cfg.CheckpointTopic == "" {
		return fmt.Errorf("config: %s is required when %s is set", KeyCheckpointTopic, KeyCheckpointBrokers)
	}
	return nil
}
