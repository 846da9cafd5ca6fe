package nmclient

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient adapts Client onto a gRPC connection to a node manager.
// The application master dials one GRPCClient at the configured
// node-manager address and the Task Manager sends every launch through
// it; a ContainerHandle's node host/port does not select a connection.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC connects to the node manager at addr.
func DialGRPC(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial node manager at %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Close releases the underlying connection.
func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

// StartContainer implements Client.
func (g *GRPCClient) StartContainer(ctx context.Context, containerID string, launch LaunchContext) error {
	req, err := encodeLaunchRequest(containerID, launch)
	if err != nil {
		return fmt.Errorf("failed to build start-container request for container %s: %w", containerID, err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, "/NodeManagerService/StartContainer", req, resp); err != nil {
		return fmt.Errorf("node manager RPC StartContainer failed for container %s: %w", containerID, err)
	}
	return nil
}

// encodeLaunchRequest marshals a full LaunchContext onto the wire: the
// localized package with the metadata the node manager needs to fetch
// and verify it, the command line, the environment, and the sanitized
// credential set (tokens base64-encoded; the caller has already
// stripped the AM<->RM token, see Sanitize).
func encodeLaunchRequest(containerID string, launch LaunchContext) (*structpb.Struct, error) {
	command := make([]any, len(launch.Command))
	for i, c := range launch.Command {
		command[i] = c
	}

	environment := make(map[string]any, len(launch.Environment))
	for k, v := range launch.Environment {
		environment[k] = v
	}

	credentials := make(map[string]any, len(launch.Credentials.Tokens))
	for name, token := range launch.Credentials.Tokens {
		credentials[name] = base64.StdEncoding.EncodeToString(token)
	}

	return structpb.NewStruct(map[string]any{
		"container_id": containerID,
		"package": map[string]any{
			"url":          launch.Package.URL,
			"size_bytes":   float64(launch.Package.SizeBytes),
			"timestamp":    float64(launch.Package.Timestamp),
			"archive_type": launch.Package.ArchiveType,
			"visibility":   launch.Package.Visibility,
		},
		"command":     command,
		"environment": environment,
		"credentials": credentials,
	})
}
