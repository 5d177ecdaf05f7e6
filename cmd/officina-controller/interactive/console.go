// Package interactive provides the interactive command-line interface
// for the officina controller.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/controller"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// requestTimeout bounds a single console command.
const requestTimeout = 10 * time.Second

// Console handles interactive mode for officina-controller.
type Console struct {
	ctrl    *controller.Controller
	invoker *controller.Invoker
	monitor *controller.Monitor
	rl      *readline.Instance

	monitoring bool
}

// New creates a new interactive console.
func New(ctrl *controller.Controller) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "officina> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{
		ctrl:    ctrl,
		invoker: controller.NewInvoker(ctrl),
		monitor: controller.NewMonitor(ctrl),
		rl:      rl,
	}

	c.monitor.OnChange(func(ch controller.StatusChange) {
		fmt.Fprintf(rl.Stdout(), "[%s] %s -> %s\n",
			ch.Timestamp.Format("15:04:05"), ch.MachineName, ch.Label)
	})

	return c, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "machines", "ls":
			c.cmdMachines(ctx)

		case "status":
			c.cmdStatus(ctx)

		case "read", "r":
			c.cmdRead(ctx, args)

		case "on":
			c.cmdChangeStatus(ctx, args, catalog.StatusOn)

		case "off":
			c.cmdChangeStatus(ctx, args, catalog.StatusOff)

		case "alarm":
			c.cmdChangeStatus(ctx, args, catalog.StatusAlarm)

		case "speed":
			c.cmdSpeed(ctx, args)

		case "maintenance", "ai":
			c.cmdMaintenance(ctx, args)

		case "demo":
			c.cmdDemo(ctx)

		case "monitor":
			c.cmdMonitor(ctx, args)

		case "reconnects":
			c.cmdReconnects()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Officina Controller Commands:
  Fleet:
    machines                 - List discovered machines
    status                   - Show every machine's status
    read <machine>           - Read all attributes of a machine

  Operations:
    on <machine>             - Power a machine on
    off <machine>            - Power a machine off
    alarm <machine>          - Put a machine into alarm
    speed <machine> <1-5>    - Change the spindle speed
    maintenance <machine>    - Toggle AI maintenance (Pro only)
    demo                     - Run the demo sequence on the whole fleet

  Monitoring:
    monitor                  - Subscribe to the fleet and print changes
    monitor stop             - Drop the subscriptions
    reconnects               - Show recorded reconnect attempts

  Other:
    help                     - Show this help
    quit                     - Exit`)
}

func (c *Console) cmdMachines(ctx context.Context) {
	machines := c.ctrl.Machines()
	if len(machines) == 0 {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		var err error
		machines, err = c.ctrl.DiscoverMachines(reqCtx)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Discovery failed: %v\n", err)
			return
		}
	}

	for _, m := range machines {
		ai := ""
		if m.SupportsPredictiveMaintenance() {
			ai = " [AI maintenance]"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d: %s (%s)%s\n", m.ID, m.Name, m.Kind, ai)
	}
}

func (c *Console) cmdStatus(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	statuses := c.monitor.DumpAllStatuses(reqCtx)

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.rl.Stdout(), "  %-16s %-8s %-8s %-6s %s\n",
		"MACHINE", "STATUS", "ENERGY", "SPEED", "AI")
	for _, name := range names {
		s := statuses[name]
		fmt.Fprintf(c.rl.Stdout(), "  %-16s %-8s %-8s %-6s %s\n",
			name, s.Status, s.Energy, s.Speed, s.AIActive)
	}
}

// machiningAttrNames maps machining attribute IDs to display names.
var machiningAttrNames = map[uint16]string{
	machine.MachiningAttrStatus:   machine.NameStatus,
	machine.MachiningAttrTool:     machine.NameTool,
	machine.MachiningAttrParts:    machine.NameParts,
	machine.MachiningAttrEnergy:   machine.NameEnergy,
	machine.MachiningAttrAIActive: machine.NameAIActive,
}

func (c *Console) cmdRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: read <machine>")
		return
	}

	mach, err := c.ctrl.MachineByName(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}

	client := c.ctrl.Client()
	if client == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	values, err := client.Read(reqCtx, mach.ID, uint8(model.FeatureMachining), nil)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Read failed: %v\n", err)
		return
	}

	ids := make([]int, 0, len(values))
	for id := range values {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	fmt.Fprintf(c.rl.Stdout(), "%s:\n", mach.Name)
	for _, id := range ids {
		attrID := uint16(id)
		name := machiningAttrNames[attrID]
		if name == "" {
			name = fmt.Sprintf("attribute %d", attrID)
		}
		fmt.Fprintf(c.rl.Stdout(), "  %-20s %s\n", name, formatValue(attrID, values[attrID]))
	}

	speed, err := client.Read(reqCtx, mach.ID, uint8(model.FeatureSpindle),
		[]uint16{machine.SpindleAttrSpeed})
	if err == nil {
		if v, ok := asInt64(speed[machine.SpindleAttrSpeed]); ok {
			fmt.Fprintf(c.rl.Stdout(), "  %-20s %s\n", "Mandrino."+machine.NameSpeed, catalog.SpeedLabel(v))
		}
	}
}

func formatValue(attrID uint16, v any) string {
	if attrID == machine.MachiningAttrStatus {
		if n, ok := asInt64(v); ok {
			return catalog.StatusLabel(n)
		}
	}
	return fmt.Sprintf("%v", v)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func (c *Console) cmdChangeStatus(ctx context.Context, args []string, status catalog.MachineStatus) {
	if len(args) != 1 {
		fmt.Fprintf(c.rl.Stdout(), "Usage: %s <machine>\n", strings.ToLower(catalog.StatusLabel(int64(status))))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.invoker.ChangeStatus(reqCtx, args[0], status); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s -> %s\n", args[0], catalog.StatusLabel(int64(status)))
}

func (c *Console) cmdSpeed(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: speed <machine> <1-5>")
		return
	}

	level, err := strconv.Atoi(args[1])
	if err != nil || level < int(catalog.SpeedMin) || level > int(catalog.SpeedMax) {
		fmt.Fprintf(c.rl.Stdout(), "Speed must be %d-%d\n", catalog.SpeedMin, catalog.SpeedMax)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.invoker.ChangeSpindleSpeed(reqCtx, args[0], catalog.SpindleSpeed(level)); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s spindle -> %d\n", args[0], level)
}

func (c *Console) cmdMaintenance(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: maintenance <machine>")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.invoker.RunPredictiveMaintenance(reqCtx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s: AI maintenance toggled\n", args[0])
}

func (c *Console) cmdDemo(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	steps := c.invoker.RunDemo(reqCtx)
	for _, step := range steps {
		switch {
		case step.Skipped:
			fmt.Fprintf(c.rl.Stdout(), "  SKIP %s: %s (not supported)\n", step.Machine, step.Description)
		case step.Err != nil:
			fmt.Fprintf(c.rl.Stdout(), "  FAIL %s: %s: %v\n", step.Machine, step.Description, step.Err)
		default:
			fmt.Fprintf(c.rl.Stdout(), "  OK   %s: %s\n", step.Machine, step.Description)
		}
	}
}

func (c *Console) cmdMonitor(ctx context.Context, args []string) {
	if len(args) > 0 && args[0] == "stop" {
		if !c.monitoring {
			fmt.Fprintln(c.rl.Stdout(), "Monitor not running")
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		if err := c.monitor.Stop(reqCtx); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
			return
		}
		c.monitoring = false
		fmt.Fprintln(c.rl.Stdout(), "Monitor stopped")
		return
	}

	if c.monitoring {
		fmt.Fprintln(c.rl.Stdout(), "Monitor already running")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.monitor.Start(reqCtx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.monitoring = true
	fmt.Fprintln(c.rl.Stdout(), "Monitoring fleet (monitor stop to end)")
}

func (c *Console) cmdReconnects() {
	attempts := c.ctrl.Reporter().Attempts()
	if len(attempts) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No reconnect attempts recorded")
		return
	}

	for _, a := range attempts {
		fmt.Fprintf(c.rl.Stdout(), "  %s attempt %d (waited %s)\n",
			a.Time.Format("15:04:05"), a.Attempt, a.Delay)
	}
}
