package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundCommand(t *testing.T) (*cobra.Command, *viper.Viper) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	require.NoError(t, BindFlags(cmd, v))
	return cmd, v
}

// setRequired sets the deployment-level fields every valid config needs
// beyond a package path, so each test below only sets what it's
// actually exercising.
func setRequired(v *viper.Viper) {
	v.Set(KeyAMHost, "am.example.internal")
	v.Set(KeyResourceManagerAddr, "rm.example.internal:8032")
	v.Set(KeyNodeManagerAddr, "nm.example.internal:45454")
}

func TestLoadAppliesDefaults(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.TaskCount)
	assert.Equal(t, 1024, cfg.MemMB)
	assert.Equal(t, 1, cfg.CPUCores)
	assert.Equal(t, 8, cfg.RetryCount)
	assert.Equal(t, int64(300000), cfg.RetryWindowMs)
	assert.Equal(t, "hdfs:///jobs/demo.tar.gz", cfg.PackagePath)
}

func TestLoadRejectsMissingPackagePath(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyPackagePath)
}

func TestLoadRejectsZeroTaskCount(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")
	v.Set(KeyTaskCount, 0)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyTaskCount)
}

func TestLoadRejectsMissingResourceManagerAddr(t *testing.T) {
	_, v := newBoundCommand(t)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")
	v.Set(KeyAMHost, "am.example.internal")
	v.Set(KeyNodeManagerAddr, "nm.example.internal:45454")

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyResourceManagerAddr)
}

func TestLoadRejectsCheckpointBrokersWithoutTopic(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")
	v.Set(KeyCheckpointBrokers, []string{"kafka1:9092"})

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyCheckpointTopic)
}

func TestLoadAppliesJobDescriptorOverrides(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")

	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	yamlBody := "taskCount: 5\ncontainerMemoryMB: 2048\nretryCount: 0\ncommandClass: custom.Builder\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))
	v.Set("job-descriptor", path)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.TaskCount)
	assert.Equal(t, 2048, cfg.MemMB)
	assert.Equal(t, 0, cfg.RetryCount)
	assert.Equal(t, "custom.Builder", cfg.CommandClass)
	assert.Equal(t, "hdfs:///jobs/demo.tar.gz", cfg.PackagePath)
}

func TestLoadSurfacesDescriptorReadError(t *testing.T) {
	_, v := newBoundCommand(t)
	setRequired(v)
	v.Set(KeyPackagePath, "hdfs:///jobs/demo.tar.gz")
	v.Set("job-descriptor", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(v)
	require.Error(t, err)
}
