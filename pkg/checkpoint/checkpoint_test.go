package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

func TestEncodeDecodeRecordRoundTrips(t *testing.T) {
	key := encodeKey(jobstate.TaskID(7))
	value := encodeOffset(12345)

	taskID, offset, err := decodeRecord(key, value)
	require.NoError(t, err)

	assert.Equal(t, jobstate.TaskID(7), taskID)
	assert.Equal(t, int64(12345), offset)
}

func TestDecodeRecordRejectsNonNumericKey(t *testing.T) {
	_, _, err := decodeRecord([]byte("not-a-task-id"), encodeOffset(1))
	assert.Error(t, err)
}

func TestDecodeRecordRejectsNonNumericValue(t *testing.T) {
	_, _, err := decodeRecord(encodeKey(jobstate.TaskID(1)), []byte("not-an-offset"))
	assert.Error(t, err)
}
