// Command officina-plant runs a plant server exposing a fleet of CNC
// milling machines over the wire protocol.
//
// Usage:
//
//	officina-plant [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-name string       Plant name (default "Officina")
//	-listen string     Listen address (default ":4840")
//	-no-advertise      Disable mDNS advertising
//	-production int    Production tick interval in ms, 0 disables (default 1000)
//	-log-file string   Protocol log file path (CBOR records)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Without a config file the plant starts with a demo fleet of one base
// machine and one Pro machine. A config file describes the real fleet:
//
//	plant_name: Officina Meccanica
//	listen_address: ":4840"
//	advertise: true
//	machines:
//	  - id: 1
//	    name: CNC1
//	    kind: CNC
//	    tool: Fresa cilindrica
//	  - id: 2
//	    name: CNCPro1
//	    kind: CNCPro
//	    tool: Fresa a candela
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/officina-protocol/officina-go/pkg/config"
	"github.com/officina-protocol/officina-go/pkg/log"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/plant"
)

// Config holds the plant command configuration.
type Config struct {
	ConfigFile  string
	PlantName   string
	Listen      string
	NoAdvertise bool
	Production  int
	LogFile     string
	LogLevel    string
}

var cmdConfig Config

func init() {
	flag.StringVar(&cmdConfig.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&cmdConfig.PlantName, "name", "Officina", "Plant name")
	flag.StringVar(&cmdConfig.Listen, "listen", ":4840", "Listen address")
	flag.BoolVar(&cmdConfig.NoAdvertise, "no-advertise", false, "Disable mDNS advertising")
	flag.IntVar(&cmdConfig.Production, "production", 1000, "Production tick interval in ms, 0 disables")
	flag.StringVar(&cmdConfig.LogFile, "log-file", "", "Protocol log file path (CBOR records)")
	flag.StringVar(&cmdConfig.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	setupLogging(cmdConfig.LogLevel)

	stdlog.Println("Officina Plant Server")
	stdlog.Println("=====================")

	logger, closeLogger := setupProtocolLogger()
	defer closeLogger()

	svc, err := createService(logger)
	if err != nil {
		stdlog.Fatalf("Failed to create plant service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start plant service: %v", err)
	}
	stdlog.Printf("Listening on %s (state: %s)", svc.Addr(), svc.State())
	printFleet(svc)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	if err := svc.Stop(); err != nil {
		stdlog.Printf("Error stopping service: %v", err)
	}

	stdlog.Println("Goodbye!")
}

func createService(logger log.Logger) (*plant.Service, error) {
	if cmdConfig.ConfigFile != "" {
		pc, err := config.LoadPlant(cmdConfig.ConfigFile)
		if err != nil {
			return nil, err
		}
		stdlog.Printf("Loaded configuration: plant %q, %d machines", pc.PlantName, len(pc.Machines))
		return plant.FromConfig(pc, plant.Config{Logger: logger})
	}

	// Demo fleet
	machines := []*machine.CNC{
		machine.NewBase(1, "CNC1", machine.WithTool("Fresa cilindrica")),
		machine.NewPro(2, "CNCPro1", machine.WithTool("Fresa a candela")),
	}
	stdlog.Printf("No config file, starting demo fleet: plant %q, %d machines",
		cmdConfig.PlantName, len(machines))

	cfg := plant.DefaultConfig()
	cfg.ListenAddress = cmdConfig.Listen
	cfg.Advertise = !cmdConfig.NoAdvertise
	cfg.ProductionInterval = productionInterval()
	cfg.Logger = logger

	return plant.NewService(cmdConfig.PlantName, machines, cfg)
}

// printFleet lists the served machines with their browse names.
func printFleet(svc *plant.Service) {
	for _, m := range svc.Fleet().Machines() {
		stdlog.Printf("  %d %s (%s)", m.ID(), m.Name(), m.Kind())
		for _, f := range m.Features() {
			attrs := f.AttributeNames()
			sort.Strings(attrs)
			cmds := f.CommandNames()
			sort.Strings(cmds)
			line := "    " + f.Type().String() + ": " + strings.Join(attrs, ", ")
			if len(cmds) > 0 {
				line += " | commands: " + strings.Join(cmds, ", ")
			}
			stdlog.Println(line)
		}
	}
}

func productionInterval() (d time.Duration) {
	if cmdConfig.Production > 0 {
		d = time.Duration(cmdConfig.Production) * time.Millisecond
	}
	return d
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
