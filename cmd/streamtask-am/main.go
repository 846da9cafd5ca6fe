// Command streamtask-am is the application-master core: a single
// process launched by the cluster's resource manager to run one
// stream-processing job's task groups to completion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/streamtask/pkg/checkpoint"
	"github.com/cuemby/streamtask/pkg/clock"
	"github.com/cuemby/streamtask/pkg/cmdbuilder"
	"github.com/cuemby/streamtask/pkg/config"
	"github.com/cuemby/streamtask/pkg/eventloop"
	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/lifecycle"
	"github.com/cuemby/streamtask/pkg/log"
	"github.com/cuemby/streamtask/pkg/metrics"
	"github.com/cuemby/streamtask/pkg/nmclient"
	"github.com/cuemby/streamtask/pkg/rmclient"
	"github.com/cuemby/streamtask/pkg/statusserver"
	"github.com/cuemby/streamtask/pkg/taskmgr"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var boundViper = viper.New()

var rootCmd = &cobra.Command{
	Use:   "streamtask-am",
	Short: "Application master for a stream-processing job on a YARN-like cluster",
	Long: `streamtask-am is launched once per job by the cluster's resource
manager. It registers the job, requests and binds containers to task
groups, retries within a bounded failure window, and reports the job's
final status before exiting.`,
	Version: Version,
	RunE:    runApplicationMaster,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"streamtask-am version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "output logs in JSON format")
	rootCmd.PersistentFlags().String("job-id", "", "job identifier stamped on every log line")

	if err := config.BindFlags(rootCmd, boundViper); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind config flags: %v\n", err)
		os.Exit(1)
	}

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	jobID, _ := rootCmd.PersistentFlags().GetString("job-id")

	log.Init(log.Config{
		Level:      logLevel,
		JSONOutput: logJSON,
		JobID:      jobID,
	})
}

func runApplicationMaster(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(boundViper)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	buildCommand, err := cmdbuilder.Lookup(cfg.CommandClass)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.WithComponent("main")
	logger.Info().
		Int("task_count", cfg.TaskCount).
		Str("package_path", cfg.PackagePath).
		Msg("starting application master")

	metrics.SetVersion(Version)

	rm, err := rmclient.DialGRPC(cfg.ResourceManagerAddr, log.Logger)
	if err != nil {
		metrics.RegisterComponent("resource_manager", false, err.Error())
		return fmt.Errorf("failed to dial resource manager: %w", err)
	}
	defer rm.Close()
	metrics.RegisterComponent("resource_manager", true, "connected")

	nm, err := nmclient.DialGRPC(cfg.NodeManagerAddr)
	if err != nil {
		metrics.RegisterComponent("node_manager", false, err.Error())
		return fmt.Errorf("failed to dial node manager: %w", err)
	}
	defer nm.Close()
	metrics.RegisterComponent("node_manager", true, "connected")

	streamCtx, cancelStream := context.WithCancel(context.Background())
	defer cancelStream()
	go func() {
		if err := rm.StreamEvents(streamCtx); err != nil {
			logger.Error().Err(err).Msg("resource manager event stream ended")
		}
	}()

	fullCredentials, err := nmclient.LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load launch credentials: %w", err)
	}
	sanitizedCredentials := nmclient.Sanitize(fullCredentials)

	state := jobstate.New(cfg.TaskCount)

	if len(cfg.CheckpointBrokers) > 0 {
		store, err := checkpoint.NewStore(checkpoint.Config{
			Brokers: cfg.CheckpointBrokers,
			Topic:   cfg.CheckpointTopic,
		}, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to construct checkpoint store: %w", err)
		}
		defer store.Close()

		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		offsets, err := store.LoadAll(loadCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to load checkpoints: %w", err)
		}
		logger.Info().Int("recovered_tasks", len(offsets)).Msg("loaded checkpoint offsets")
		metrics.RegisterComponent("checkpoint", true, "loaded")
	}

	lifecycleCoordinator := lifecycle.New(lifecycle.Config{
		RequiredMemMB:    cfg.MemMB,
		RequiredCPUCores: cfg.CPUCores,
		Host:             cfg.AMHost,
		Port:             cfg.AMPort,
		TrackingURL:      cfg.TrackingURL,
	}, rm, state)
	metrics.RegisterComponent("lifecycle", true, "initialized")

	taskManager := taskmgr.New(taskmgr.Config{
		TaskCount:     cfg.TaskCount,
		MemMB:         cfg.MemMB,
		CPUCores:      cfg.CPUCores,
		RetryCount:    cfg.RetryCount,
		RetryWindowMs: cfg.RetryWindowMs,
		AllPartitions: cfg.Partitions,
		Package: nmclient.LocalizedResource{
			URL:         cfg.PackagePath,
			ArchiveType: "ARCHIVE",
			Visibility:  "APPLICATION",
		},
		CommandConfig: cmdbuilder.Config{
			EntryPoint: cfg.EntryPoint,
			JobArgs:    cfg.JobArgs,
		},
		NewCommandBuilder: buildCommand,
	}, state, rm, nm, clock.System{}, sanitizedCredentials)

	statusSrv := statusserver.New(cfg.StatusAddr, state, log.Logger)
	statusSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("status server shutdown error")
		}
	}()

	collector := metrics.NewCollector(state)
	collector.Start()
	defer collector.Stop()

	heartbeat := time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond
	loop := eventloop.New(rm, state, heartbeat, lifecycleCoordinator, taskManager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("event loop failed: %w", err)
	}

	if taskManager.JobFailed() || state.CurrentStatus() == jobstate.StatusFailed {
		return fmt.Errorf("job did not complete successfully, final status %s", state.CurrentStatus())
	}
	logger.Info().Msg("job finished successfully")
	return nil
}
