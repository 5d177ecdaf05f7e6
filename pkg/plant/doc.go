// Package plant orchestrates a plant server.
//
// A Service binds a machine fleet to the interaction layer and serves
// it over framed TCP:
//
//	machines := []*machine.CNC{
//		machine.NewBase(1, "CNC1"),
//		machine.NewPro(2, "CNCPro1"),
//	}
//
//	svc, err := plant.NewService("Officina Meccanica", machines, plant.DefaultConfig())
//	svc.Start(ctx)
//	defer svc.Stop()
//
// The service handles request dispatch, subscription notifications
// (broadcast to every connected controller), optional mDNS advertising,
// and an optional production ticker that increments part counters of
// running machines.
//
// Subscriptions are dropped when the last controller disconnects.
package plant
