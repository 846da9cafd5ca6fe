package nmclient

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLaunchRequestCarriesFullPackageMetadata(t *testing.T) {
	launch := LaunchContext{
		Package: LocalizedResource{
			URL:         "hdfs:///jobs/demo.tar.gz",
			SizeBytes:   4096,
			Timestamp:   1700000000000,
			ArchiveType: "ARCHIVE",
			Visibility:  "APPLICATION",
		},
		Command:     []string{"/bin/streamtask-worker --mode stream 1><LOG_DIR>/stdout 2><LOG_DIR>/stderr"},
		Environment: map[string]string{"STREAMTASK_TASK_NAME": "task-0"},
	}

	req, err := encodeLaunchRequest("container-1", launch)
	require.NoError(t, err)

	fields := req.GetFields()
	assert.Equal(t, "container-1", fields["container_id"].GetStringValue())

	pkg := fields["package"].GetStructValue().GetFields()
	assert.Equal(t, "hdfs:///jobs/demo.tar.gz", pkg["url"].GetStringValue())
	assert.Equal(t, float64(4096), pkg["size_bytes"].GetNumberValue())
	assert.Equal(t, float64(1700000000000), pkg["timestamp"].GetNumberValue())
	assert.Equal(t, "ARCHIVE", pkg["archive_type"].GetStringValue())
	assert.Equal(t, "APPLICATION", pkg["visibility"].GetStringValue())

	command := fields["command"].GetListValue().GetValues()
	require.Len(t, command, 1)
	assert.Contains(t, command[0].GetStringValue(), "/bin/streamtask-worker")

	env := fields["environment"].GetStructValue().GetFields()
	assert.Equal(t, "task-0", env["STREAMTASK_TASK_NAME"].GetStringValue())
}

func TestEncodeLaunchRequestCarriesSanitizedCredentials(t *testing.T) {
	sanitized := Sanitize(Credentials{Tokens: map[string][]byte{
		"AM_RM_TOKEN":     []byte("must-not-ship"),
		"HDFS_DELEGATION": []byte("hdfs-secret"),
	}})

	req, err := encodeLaunchRequest("container-1", LaunchContext{Credentials: sanitized})
	require.NoError(t, err)

	creds := req.GetFields()["credentials"].GetStructValue().GetFields()

	_, hasAMRM := creds["AM_RM_TOKEN"]
	assert.False(t, hasAMRM)

	decoded, err := base64.StdEncoding.DecodeString(creds["HDFS_DELEGATION"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, []byte("hdfs-secret"), decoded)
}

func TestEncodeLaunchRequestEmptyCredentialsStillEncodes(t *testing.T) {
	req, err := encodeLaunchRequest("container-2", LaunchContext{})
	require.NoError(t, err)

	fields := req.GetFields()
	assert.NotNil(t, fields["credentials"].GetStructValue())
	assert.Empty(t, fields["credentials"].GetStructValue().GetFields())
}
