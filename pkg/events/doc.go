/*
Package events implements a generic, non-blocking pub/sub broker.

# Why this exists

The resource-manager client's gRPC stream delivers Allocated/Completed/
Reboot/ShutdownRequest notifications on its own internal goroutine.
Exactly one consumer -- the event-dispatcher goroutine in pkg/eventloop
-- is allowed to act on them, and only in arrival order. Broker is the
primitive that bridges the two: the streaming goroutine publishes, and
the dispatcher subscribes once and drains its own channel.

# Usage

	broker := events.NewBroker[rmclient.Event](256)
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(256)
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			// handle event
		}
	}()

	broker.Publish(rmclient.Event{Kind: rmclient.EventAllocated})

# Delivery semantics

Publish never blocks past the broker's own buffer. Broadcast to each
subscriber is best-effort: a subscriber whose buffer is full misses
that value rather than stalling the broker or any other subscriber.
pkg/rmclient's production client sizes its subscriber buffer generously
because its only subscriber (pkg/eventloop) drains continuously. The
broker neither logs nor counts a value it drops for a full subscriber
buffer.
*/
package events
