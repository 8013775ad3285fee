// Package eventbus fans bot lifecycle events out to live SSE subscribers
// (§4.7, §4.8 "any number of operators may be streaming the same bot's
// events concurrently"), adapted from the reference layout's Redis
// pub/sub session bus.
package eventbus

import "context"

type EventBus interface {
	Publish(ctx context.Context, botID int64, event Event) error
	Subscribe(ctx context.Context, botID int64) (<-chan Event, error)
}
