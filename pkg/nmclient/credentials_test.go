package nmclient

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentialsDecodesPrefixedEnvVars(t *testing.T) {
	t.Setenv("STREAMTASK_TOKEN_AM_RM_TOKEN", base64.StdEncoding.EncodeToString([]byte("am-rm-secret")))
	t.Setenv("STREAMTASK_TOKEN_HDFS_DELEGATION", base64.StdEncoding.EncodeToString([]byte("hdfs-secret")))
	t.Setenv("UNRELATED_VAR", "ignored")

	creds, err := LoadCredentials()
	require.NoError(t, err)

	assert.Equal(t, []byte("am-rm-secret"), creds.Tokens["AM_RM_TOKEN"])
	assert.Equal(t, []byte("hdfs-secret"), creds.Tokens["HDFS_DELEGATION"])
	_, ok := creds.Tokens["UNRELATED_VAR"]
	assert.False(t, ok)
}

func TestLoadCredentialsRejectsMalformedToken(t *testing.T) {
	t.Setenv("STREAMTASK_TOKEN_BAD", "not-valid-base64!!!")

	_, err := LoadCredentials()
	require.Error(t, err)
}

func TestSanitizeStripsAMRMTokenOnly(t *testing.T) {
	full := Credentials{Tokens: map[string][]byte{
		"AM_RM_TOKEN":      []byte("am-rm-secret"),
		"HDFS_DELEGATION":  []byte("hdfs-secret"),
		"CHECKPOINT_TOKEN": []byte("checkpoint-secret"),
	}}

	sanitized := Sanitize(full)

	_, hasAMRM := sanitized.Tokens["AM_RM_TOKEN"]
	assert.False(t, hasAMRM)
	assert.Equal(t, []byte("hdfs-secret"), sanitized.Tokens["HDFS_DELEGATION"])
	assert.Equal(t, []byte("checkpoint-secret"), sanitized.Tokens["CHECKPOINT_TOKEN"])
	assert.Len(t, sanitized.Tokens, 2)

	// The original set is untouched.
	assert.Len(t, full.Tokens, 3)
}
