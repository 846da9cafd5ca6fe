// Package nmclient describes the node-manager client contract: a
// synchronous call that starts a container on a node once the resource
// manager has allocated it. Like pkg/rmclient, the node manager itself
// is an external collaborator out of scope for this repo; only the
// contract and a thin production adapter live here.
package nmclient

import "context"

// LocalizedResource describes the job's deployable package as the
// node manager needs to localize it before launch.
type LocalizedResource struct {
	URL         string
	SizeBytes   int64
	Timestamp   int64
	ArchiveType string // e.g. "ARCHIVE", "FILE"
	Visibility  string // e.g. "APPLICATION", "PUBLIC"
}

// Credentials is the sanitized credentials blob shipped to a worker:
// every token the application master holds minus the AM<->RM token,
// built exactly once per launch.
type Credentials struct {
	Tokens map[string][]byte
}

// LaunchContext carries everything startContainer needs: the
// localized package, the command line, the environment, and sanitized
// credentials.
type LaunchContext struct {
	Package     LocalizedResource
	Command     []string
	Environment map[string]string
	Credentials Credentials
}

// Client is the synchronous node-manager contract.
type Client interface {
	StartContainer(ctx context.Context, containerID string, launch LaunchContext) error
}
