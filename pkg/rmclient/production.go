package rmclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/streamtask/pkg/events"
	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// eventSubscriberBuffer sizes the one subscription this client ever
// creates. pkg/eventloop is the sole, continuously-draining consumer,
// so this only needs headroom for a burst, not sustained backlog.
const eventSubscriberBuffer = 256

// GRPCClient is the thin adapter between the Client/EventSource
// contracts and the cluster resource manager's RPC endpoint. It is
// deliberately minimal: the resource manager and its wire protocol are
// an external collaborator, so this adapter only marshals requests
// onto a generic RPC and unmarshals capability responses -- it carries
// none of the core's retry/failure logic.
//
// Method names below (e.g. "ResourceManagerService/Register") are the
// service contract the cluster operator's resource-manager endpoint
// implements; this adapter is transport glue, not a protocol
// definition.
//
// The resource manager's Allocated/Completed/Reboot/ShutdownRequest
// notifications arrive on a server-streaming RPC consumed by its own
// goroutine (StreamEvents); that goroutine publishes onto an
// events.Broker, and Events() returns the one subscription this client
// hands to pkg/eventloop. This is the bounded FIFO queue the event
// loop drains.
type GRPCClient struct {
	conn   *grpc.ClientConn
	broker *events.Broker[Event]
	sub    chan Event
	logger zerolog.Logger
}

// DialGRPC connects to the resource manager at addr. Production
// deployments run behind the cluster's own network, so the dial uses
// insecure transport credentials the way the cluster's own internal
// RPC traffic does; DialGRPC is the only constructor and offers no
// TLS option.
func DialGRPC(addr string, logger zerolog.Logger) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial resource manager at %s: %w", addr, err)
	}

	broker := events.NewBroker[Event](eventSubscriberBuffer)
	broker.Start()

	return &GRPCClient{
		conn:   conn,
		broker: broker,
		sub:    broker.Subscribe(eventSubscriberBuffer),
		logger: logger.With().Str("component", "rmclient").Logger(),
	}, nil
}

// Events implements EventSource.
func (g *GRPCClient) Events() <-chan Event {
	return g.sub
}

// StreamEvents opens the resource manager's server-streaming event RPC
// and republishes every notification onto the broker backing Events().
// It blocks until ctx is cancelled or the stream ends, and is meant to
// run in its own goroutine for the application master's lifetime.
func (g *GRPCClient) StreamEvents(ctx context.Context) error {
	stream, err := g.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, "/ResourceManagerService/EventStream")
	if err != nil {
		return fmt.Errorf("failed to open resource manager event stream: %w", err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return fmt.Errorf("failed to send event stream subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close event stream send side: %w", err)
	}

	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("resource manager event stream closed: %w", err)
		}

		event, err := decodeEvent(msg)
		if err != nil {
			g.logger.Warn().Err(err).Msg("ignoring malformed resource manager event")
			continue
		}
		g.broker.Publish(event)
	}
}

// Close releases the underlying connection and stops the event broker.
func (g *GRPCClient) Close() error {
	g.broker.Stop()
	return g.conn.Close()
}

func (g *GRPCClient) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, fmt.Errorf("resource manager RPC %s failed: %w", method, err)
	}
	return resp, nil
}

// Register implements Client.
func (g *GRPCClient) Register(ctx context.Context, host string, port int, trackingURL string) (Capability, error) {
	req, err := structpb.NewStruct(map[string]any{
		"host":         host,
		"port":         float64(port),
		"tracking_url": trackingURL,
	})
	if err != nil {
		return Capability{}, fmt.Errorf("failed to build register request: %w", err)
	}

	resp, err := g.invoke(ctx, "/ResourceManagerService/Register", req)
	if err != nil {
		return Capability{}, err
	}

	fields := resp.GetFields()
	return Capability{
		MemMB:    int(fields["max_mem_mb"].GetNumberValue()),
		CPUCores: int(fields["max_cpu_cores"].GetNumberValue()),
	}, nil
}

// RequestContainer implements Client.
func (g *GRPCClient) RequestContainer(ctx context.Context, memMB, cpuCores int) error {
	req, err := structpb.NewStruct(map[string]any{
		"mem_mb":    float64(memMB),
		"cpu_cores": float64(cpuCores),
		"priority":  float64(0),
	})
	if err != nil {
		return fmt.Errorf("failed to build request-container request: %w", err)
	}
	_, err = g.invoke(ctx, "/ResourceManagerService/RequestContainer", req)
	return err
}

// ReleaseContainer implements Client.
func (g *GRPCClient) ReleaseContainer(ctx context.Context, containerID string) error {
	req, err := structpb.NewStruct(map[string]any{"container_id": containerID})
	if err != nil {
		return fmt.Errorf("failed to build release-container request: %w", err)
	}
	_, err = g.invoke(ctx, "/ResourceManagerService/ReleaseContainer", req)
	return err
}

// Unregister implements Client.
func (g *GRPCClient) Unregister(ctx context.Context, status jobstate.Status, message, trackingURL string) error {
	req, err := structpb.NewStruct(map[string]any{
		"status":       string(status),
		"message":      message,
		"tracking_url": trackingURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build unregister request: %w", err)
	}
	_, err = g.invoke(ctx, "/ResourceManagerService/Unregister", req)
	return err
}

// decodeEvent translates one wire message from the event stream into
// an Event. The "kind" field selects which of the other fields apply:
// container data for "allocated", completion data for "completed", and
// neither for "reboot" or "shutdown_request".
func decodeEvent(msg *structpb.Struct) (Event, error) {
	fields := msg.GetFields()
	kind := fields["kind"].GetStringValue()

	switch kind {
	case "allocated":
		container := fields["container"].GetStructValue().GetFields()
		return Event{
			Kind: EventAllocated,
			Container: jobstate.ContainerHandle{
				ID:       container["id"].GetStringValue(),
				Host:     container["node_host"].GetStringValue(),
				Port:     int(container["node_port"].GetNumberValue()),
				MemMB:    int(container["mem_mb"].GetNumberValue()),
				CPUCores: int(container["cpu_cores"].GetNumberValue()),
			},
		}, nil
	case "completed":
		completion := fields["completion"].GetStructValue().GetFields()
		return Event{
			Kind: EventCompleted,
			Completion: Completion{
				ContainerID: completion["container_id"].GetStringValue(),
				ExitStatus:  int(completion["exit_status"].GetNumberValue()),
			},
		}, nil
	case "reboot":
		return Event{Kind: EventReboot}, nil
	case "shutdown_request":
		return Event{Kind: EventShutdownRequest}, nil
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
}
