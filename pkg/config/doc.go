// Package config loads YAML configuration for plant servers and
// controllers.
//
// A plant configuration names the plant and lists its machine fleet:
//
//	plant_name: Officina Meccanica
//	listen_address: ":4840"
//	advertise: true
//	machines:
//	  - id: 1
//	    name: CNC1
//	    kind: CNC
//	  - id: 2
//	    name: CNCPro1
//	    kind: CNCPro
//	    tool: Fresa a candela
//
// A controller configuration points at a plant, either directly by
// address or via mDNS discovery:
//
//	plant_address: "192.168.1.10:4840"
//	sampling_interval_ms: 1000
//	queue_depth: 10
package config
