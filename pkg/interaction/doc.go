// Package interaction implements the officina interaction layer.
//
// The interaction layer sits between the transport (framed CBOR
// messages) and the machine model. On the plant side, Server dispatches
// Read, Write, Subscribe, Invoke and Browse requests against the fleet
// and turns sampled subscription values into wire notifications. On the
// controller side, Client correlates requests with responses by message
// ID and exposes typed operations.
//
// Operation failures map to wire status codes: unknown machines,
// features, attributes and commands report the matching not-found
// status; rejected arguments report StatusInvalidArgument; guard
// violations (e.g. a spindle speed change while the machine is off)
// report StatusInvalidState; handler faults report StatusInternalError.
package interaction
