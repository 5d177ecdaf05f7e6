// Package subscription implements subscription management for officina plants.
//
// Subscriptions let controllers receive notifications when machine
// attribute values change. Each subscription samples at a fixed
// interval and buffers changes in bounded per-attribute queues.
//
// # Subscription Parameters
//
// Each subscription has:
//   - samplingInterval: queue drain period (default 1s)
//   - queueDepth: per-attribute buffer capacity (default 10)
//   - discardOldest: overflow policy when a queue is full
//   - attributeIds: specific attributes to subscribe (empty = all)
//
// # Queueing Behavior
//
// Every attribute change between two sampling ticks is queued. When a
// queue is full the overflow policy drops either the oldest sample
// (discardOldest, the default) or the incoming one. With queue depth 1
// and discardOldest the controller always receives the latest value.
//
// # Lifecycle
//
// Subscriptions do NOT survive connection loss. On reconnect,
// controllers must re-establish subscriptions; the subscribe response
// carries the current values of all subscribed attributes as the
// initial report.
package subscription
