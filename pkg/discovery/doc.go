// Package discovery implements mDNS/DNS-SD discovery for plant servers.
//
// Plant servers advertise a single service type:
//
// # Plant Discovery (_officina._tcp)
//
// The instance name is the plant name. TXT records include:
// PN (plant name), and optionally MC (machine count) and
// VER (protocol version).
//
// Controllers browse this service type to find plants on the local
// network without prior configuration. Discovery is optional: a
// controller configured with an explicit address connects directly.
package discovery
