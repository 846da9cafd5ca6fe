package cmdbuilder

import (
	"testing"

	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandRedirectsIntoLogDir(t *testing.T) {
	b := NewShell().
		SetConfig(Config{EntryPoint: "/opt/job/run.sh", JobArgs: []string{"--mode", "stream"}}).
		SetName("task-0")

	cmd, err := b.BuildCommand()
	require.NoError(t, err)

	assert.Equal(t, "/opt/job/run.sh --mode stream 1><LOG_DIR>/stdout 2><LOG_DIR>/stderr", cmd)
}

func TestBuildCommandRequiresEntryPoint(t *testing.T) {
	b := NewShell().SetConfig(Config{}).SetName("task-3")
	_, err := b.BuildCommand()
	assert.Error(t, err)
}

func TestBuildEnvironmentCarriesTaskAndStreamInfo(t *testing.T) {
	b := NewShell().
		SetConfig(Config{Env: map[string]string{"JOB_MODE": "stream"}}).
		SetName("task-1").
		SetStreamPartitions([]jobstate.PartitionRef{
			{System: "kafka", Stream: "clicks", PartitionID: 0},
			{System: "kafka", Stream: "clicks", PartitionID: 2},
			{System: "kafka", Stream: "views", PartitionID: 1},
		})

	env, err := b.BuildEnvironment()
	require.NoError(t, err)

	assert.Equal(t, "stream", env["JOB_MODE"])
	assert.Equal(t, "task-1", env["STREAMTASK_TASK_NAME"])
	assert.Equal(t, "3", env["STREAMTASK_PARTITION_COUNT"])
	assert.Contains(t, env["STREAMTASK_STREAMS"], "kafka/clicks")
	assert.Contains(t, env["STREAMTASK_STREAMS"], "kafka/views")
}

func TestBuildEnvironmentEscapesQuotesAndRejectsNewlines(t *testing.T) {
	b := NewShell().SetConfig(Config{Env: map[string]string{"QUOTED": `a "b" c`}}).SetName("task-0")
	env, err := b.BuildEnvironment()
	require.NoError(t, err)
	assert.Equal(t, `a \"b\" c`, env["QUOTED"])

	b = NewShell().SetConfig(Config{Env: map[string]string{"EVIL": "a\nrm -rf /"}}).SetName("task-0")
	_, err = b.BuildEnvironment()
	assert.Error(t, err)
}

func TestLookupDefaultsToShell(t *testing.T) {
	factory, err := Lookup("")
	require.NoError(t, err)
	_, ok := factory().(*Shell)
	assert.True(t, ok)

	factory, err = Lookup("shell")
	require.NoError(t, err)
	_, ok = factory().(*Shell)
	assert.True(t, ok)
}

func TestLookupRejectsUnknownClass(t *testing.T) {
	_, err := Lookup("com.example.NoSuchBuilder")
	assert.Error(t, err)
}

func TestRegisteredVariantIsSelectable(t *testing.T) {
	Register("test-variant", func() Builder { return NewShell() })
	factory, err := Lookup("test-variant")
	require.NoError(t, err)
	assert.NotNil(t, factory())
}
