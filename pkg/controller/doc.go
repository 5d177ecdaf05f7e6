// Package controller implements the plant-side client: it connects to a
// plant server (directly or via mDNS discovery), walks the machine
// hierarchy, monitors status attributes through subscriptions, and
// invokes machine commands by display name.
//
// A Controller owns the connection and reconnects automatically with
// exponential backoff. Reconnect attempts are surfaced through a
// ReconnectReporter. Monitor and Invoker layer on top of a Controller:
//
//	ctrl := controller.NewController(controller.Config{
//		PlantAddress: "10.0.0.5:4840",
//	})
//	if err := ctrl.Start(ctx); err != nil {
//		return err
//	}
//	defer ctrl.Stop()
//
//	machines, _ := ctrl.DiscoverMachines(ctx)
//
//	mon := controller.NewMonitor(ctrl)
//	mon.OnChange(func(ch controller.StatusChange) {
//		fmt.Printf("%s: %s\n", ch.MachineName, ch.Label)
//	})
//	mon.Start(ctx)
//
//	inv := controller.NewInvoker(ctrl)
//	inv.ChangeStatus(ctx, machines[0].Name, catalog.StatusOn)
package controller
