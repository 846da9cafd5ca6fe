package nmclient

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// amRMTokenKey is the credential key for the application-master to
// resource-manager authentication token. Sanitize strips it; it must
// never reach a worker container.
const amRMTokenKey = "AM_RM_TOKEN"

// LoadCredentials reads the token set this process was launched with
// from its environment, mirroring how a YARN application master
// receives its credential set at container start. Each
// STREAMTASK_TOKEN_<NAME> environment variable becomes one
// base64-decoded token keyed by <NAME>.
func LoadCredentials() (Credentials, error) {
	tokens := make(map[string][]byte)
	const prefix = "STREAMTASK_TOKEN_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimPrefix(key, prefix)
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return Credentials{}, fmt.Errorf("nmclient: malformed token %s: %w", name, err)
		}
		tokens[name] = decoded
	}
	return Credentials{Tokens: tokens}, nil
}

// Sanitize returns a copy of full with the application-master<->resource-manager
// token removed. The Task Manager calls it once per container launch,
// so every launch carries its own sanitized copy: the original full
// set must never be passed to StartContainer.
func Sanitize(full Credentials) Credentials {
	sanitized := make(map[string][]byte, len(full.Tokens))
	for k, v := range full.Tokens {
		if k == amRMTokenKey {
			continue
		}
		sanitized[k] = v
	}
	return Credentials{Tokens: sanitized}
}
