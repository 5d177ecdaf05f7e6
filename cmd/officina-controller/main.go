// Command officina-controller connects to a plant server and drives
// its machines: it walks the fleet, monitors status attributes through
// subscriptions, and invokes machine commands interactively.
//
// Usage:
//
//	officina-controller [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-plant string      Plant server address ("host:port", empty: discover via mDNS)
//	-plant-name string Plant name filter for mDNS discovery
//	-sampling int      Subscription sampling interval in ms (default 1000)
//	-queue-depth int   Per-attribute sample queue depth (default 10)
//	-log-file string   Protocol log file path (CBOR records)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interactive       Enable the interactive console (default true)
//
// Examples:
//
//	# Discover the plant via mDNS and open the console
//	officina-controller
//
//	# Connect to a known address
//	officina-controller -plant 10.0.0.5:4840
//
//	# Monitor only, no console
//	officina-controller -plant 10.0.0.5:4840 -interactive=false
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/officina-protocol/officina-go/cmd/officina-controller/interactive"
	"github.com/officina-protocol/officina-go/pkg/config"
	"github.com/officina-protocol/officina-go/pkg/controller"
	"github.com/officina-protocol/officina-go/pkg/log"
)

// Config holds the controller command configuration.
type Config struct {
	ConfigFile  string
	Plant       string
	PlantName   string
	Sampling    int
	QueueDepth  int
	LogFile     string
	LogLevel    string
	Interactive bool
}

var cmdConfig Config

func init() {
	flag.StringVar(&cmdConfig.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&cmdConfig.Plant, "plant", "", "Plant server address (empty: discover via mDNS)")
	flag.StringVar(&cmdConfig.PlantName, "plant-name", "", "Plant name filter for mDNS discovery")
	flag.IntVar(&cmdConfig.Sampling, "sampling", 1000, "Subscription sampling interval in ms")
	flag.IntVar(&cmdConfig.QueueDepth, "queue-depth", 10, "Per-attribute sample queue depth")
	flag.StringVar(&cmdConfig.LogFile, "log-file", "", "Protocol log file path (CBOR records)")
	flag.StringVar(&cmdConfig.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&cmdConfig.Interactive, "interactive", true, "Enable the interactive console")
}

func main() {
	flag.Parse()

	setupLogging(cmdConfig.LogLevel)

	stdlog.Println("Officina Controller")
	stdlog.Println("===================")

	logger, closeLogger := setupProtocolLogger()
	defer closeLogger()

	ctrlConfig, err := controllerConfig(logger)
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	ctrl := controller.NewController(ctrlConfig)

	// Print reconnect attempts as the connection manager makes them.
	ctrl.Reporter().OnReport(func(a controller.ReconnectAttempt) {
		stdlog.Printf("Reconnect attempt %d (waited %s)", a.Attempt, a.Delay)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to connect: %v", err)
	}
	defer ctrl.Stop()
	stdlog.Printf("Connected to plant at %s", ctrl.Address())

	machines, err := ctrl.DiscoverMachines(ctx)
	if err != nil {
		stdlog.Fatalf("Failed to discover machines: %v", err)
	}
	for _, m := range machines {
		stdlog.Printf("Machine %d: %s (%s)", m.ID, m.Name, m.Kind)
	}

	if cmdConfig.Interactive {
		runInteractive(ctx, cancel, ctrl)
		return
	}

	runMonitorOnly(ctx, ctrl)
}

// runInteractive hands control to the readline console until the user
// quits or a signal arrives.
func runInteractive(ctx context.Context, cancel context.CancelFunc, ctrl *controller.Controller) {
	console, err := interactive.New(ctrl)
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	console.Run(ctx, cancel)
}

// runMonitorOnly subscribes to the whole fleet and prints changes
// until a signal arrives.
func runMonitorOnly(ctx context.Context, ctrl *controller.Controller) {
	mon := controller.NewMonitor(ctrl)
	mon.OnChange(func(ch controller.StatusChange) {
		stdlog.Printf("%s: attribute %d -> %s", ch.MachineName, ch.AttributeID, ch.Label)
	})

	if err := mon.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start monitor: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	mon.Stop(stopCtx)
}

func controllerConfig(logger log.Logger) (controller.Config, error) {
	cfg := controller.DefaultConfig()
	cfg.Logger = logger

	if cmdConfig.ConfigFile != "" {
		cc, err := config.LoadController(cmdConfig.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg.PlantAddress = cc.PlantAddress
		cfg.PlantName = cc.PlantName
		cfg.SamplingInterval = cc.SamplingInterval()
		cfg.QueueDepth = uint8(cc.QueueDepth)
		return cfg, nil
	}

	cfg.PlantAddress = cmdConfig.Plant
	cfg.PlantName = cmdConfig.PlantName
	cfg.SamplingInterval = time.Duration(cmdConfig.Sampling) * time.Millisecond
	cfg.QueueDepth = uint8(cmdConfig.QueueDepth)
	return cfg, nil
}

func setupProtocolLogger() (log.Logger, func()) {
	if cmdConfig.LogFile == "" {
		return nil, func() {}
	}

	fl, err := log.NewFileLogger(cmdConfig.LogFile)
	if err != nil {
		stdlog.Fatalf("Failed to open protocol log: %v", err)
	}
	stdlog.Printf("Protocol log: %s", cmdConfig.LogFile)
	return fl, func() { fl.Close() }
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}
