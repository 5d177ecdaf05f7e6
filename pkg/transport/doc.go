// Package transport provides the officina transport layer implementation.
//
// The transport layer handles:
//   - Framed TCP connections between controllers and plants
//   - Length-prefixed message framing
//   - Connection lifecycle callbacks
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR Messages             │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// Each frame carries a 4-byte big-endian length prefix followed by a
// CBOR-encoded message. Messages larger than the configured maximum
// (64 KB by default) are rejected on both ends.
package transport
