// Package model implements the officina information model: a Fleet of
// Machine instances, each holding Features that contain Attributes and
// Commands.
//
// Hierarchy:
//
//	Fleet
//	└── Machine (CNC1, CNC2, ..., CNCPro1, ...)
//	    ├── Machining feature: Status, Utensile, PezziProdotti,
//	    │   ConsumoEnergetico, (Pro) StatusAI; ChangeStatus,
//	    │   (Pro) ManutenzionePredittiva
//	    └── Mandrino feature: Velocita; CambiareVelocita
//
// Machine kind is a closed tagged variant (Base | Pro); Pro machines
// carry every Base attribute and operation plus the predictive
// maintenance capability. Attributes and commands are addressed by
// numeric ID on the wire and carry browse names for name-keyed lookup
// at the protocol boundary.
//
// The guarded operations themselves (validation rules and the derived
// energy recomputation) live in package machine; this package only
// provides the containers, typed attribute storage, and the per-machine
// exclusive operation scope they run under.
package model
