// Package connection provides connection lifecycle management for
// controllers talking to a plant server.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Connection state tracking
//   - Automatic reconnection on connection loss
//
// # Reconnection Strategy
//
// When a connection is lost, the controller uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
// To prevent thundering herd when multiple controllers reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A reconnection is successful once the TCP connection is established.
// Request failures after a successful connect do NOT reset backoff.
package connection
