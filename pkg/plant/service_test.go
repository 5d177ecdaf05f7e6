package plant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/config"
	"github.com/officina-protocol/officina-go/pkg/interaction"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
	"github.com/officina-protocol/officina-go/pkg/transport"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

func testMachines() []*machine.CNC {
	return []*machine.CNC{
		machine.NewBase(1, "CNC1"),
		machine.NewPro(2, "CNCPro1", machine.WithTool("Fresa a candela")),
	}
}

func startTestService(t *testing.T) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"

	svc, err := NewService("OfficinaTest", testMachines(), cfg)
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	return svc
}

// testController is a minimal controller: a framed TCP connection with
// an interaction client pumping responses and notifications.
type testController struct {
	conn   *transport.ClientConn
	client *interaction.Client
	done   chan struct{}
}

func connectTestController(t *testing.T, svc *Service) *testController {
	t.Helper()

	tc, err := transport.NewClient(transport.ClientConfig{})
	require.NoError(t, err)

	conn, err := tc.Connect(context.Background(), svc.Addr().String())
	require.NoError(t, err)

	client := interaction.NewClient(conn)

	ctrl := &testController{
		conn:   conn,
		client: client,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(ctrl.done)
		for {
			data, err := conn.Receive(5 * time.Second)
			if err != nil {
				return
			}

			msgType, err := wire.PeekMessageType(data)
			if err != nil {
				continue
			}
			switch msgType {
			case wire.MessageTypeResponse:
				if resp, err := wire.DecodeResponse(data); err == nil {
					_ = client.HandleResponse(resp)
				}
			case wire.MessageTypeNotification:
				if notif, err := wire.DecodeNotification(data); err == nil {
					client.HandleNotification(notif)
				}
			}
		}
	}()

	t.Cleanup(func() {
		_ = client.Close()
		_ = conn.Close()
	})

	return ctrl
}

func TestServiceLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"

	svc, err := NewService("OfficinaTest", testMachines(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, svc.State())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StateRunning, svc.State())
	assert.NotNil(t, svc.Addr())

	// Double start is rejected
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, svc.Stop())
	assert.Equal(t, StateStopped, svc.State())

	// Double stop is rejected
	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService("", testMachines(), DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewService("Officina", nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoMachines)
}

func TestServiceBrowse(t *testing.T) {
	svc := startTestService(t)
	ctrl := connectTestController(t, svc)

	payload, err := ctrl.client.Browse(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "OfficinaTest", payload.PlantName)
	require.Len(t, payload.Machines, 2)
	assert.Equal(t, "CNC1", payload.Machines[0].Name)
	assert.Equal(t, "CNCPro1", payload.Machines[1].Name)
}

func TestServiceReadAndInvoke(t *testing.T) {
	svc := startTestService(t)
	ctrl := connectTestController(t, svc)
	ctx := context.Background()

	// Initial status is Off with zero energy
	values, err := ctrl.client.Read(ctx, 1, uint8(model.FeatureMachining), []uint16{
		machine.MachiningAttrStatus, machine.MachiningAttrEnergy,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), values[machine.MachiningAttrStatus])
	assert.Equal(t, machine.EnergyOff, values[machine.MachiningAttrEnergy])

	// Turn the machine on
	_, err = ctrl.client.Invoke(ctx, 1, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(catalog.StatusOn)})
	require.NoError(t, err)

	values, err = ctrl.client.Read(ctx, 1, uint8(model.FeatureMachining), []uint16{
		machine.MachiningAttrStatus, machine.MachiningAttrEnergy,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), values[machine.MachiningAttrStatus])
	assert.Equal(t, machine.EnergyOn, values[machine.MachiningAttrEnergy])

	// Invalid transition is rejected with InvalidArgument
	_, err = ctrl.client.Invoke(ctx, 1, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(7)})
	var statusErr *interaction.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, wire.StatusInvalidArgument, statusErr.Status)
}

func TestServiceSubscription(t *testing.T) {
	svc := startTestService(t)
	ctrl := connectTestController(t, svc)
	ctx := context.Background()

	notifications := make(chan *wire.Notification, 16)
	ctrl.client.SetNotificationHandler(func(n *wire.Notification) {
		notifications <- n
	})

	subID, current, err := ctrl.client.Subscribe(ctx, 1, uint8(model.FeatureMachining),
		&interaction.SubscribeOptions{
			AttributeIDs:     []uint16{machine.MachiningAttrStatus},
			SamplingInterval: 100 * time.Millisecond,
			QueueDepth:       10,
			DiscardOldest:    true,
		})
	require.NoError(t, err)
	assert.NotZero(t, subID)
	assert.Equal(t, uint64(0), current[machine.MachiningAttrStatus])
	assert.Equal(t, 1, svc.SubscriptionCount())

	// Trigger a change on the plant side
	cnc, ok := svc.GetMachine(1)
	require.True(t, ok)
	require.NoError(t, cnc.ChangeStatus(int64(catalog.StatusOn)))

	select {
	case notif := <-notifications:
		assert.Equal(t, uint8(1), notif.MachineID)
		assert.Equal(t, machine.MachiningAttrStatus, notif.AttributeID)
		assert.Equal(t, uint64(1), notif.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	require.NoError(t, ctrl.client.Unsubscribe(ctx, subID))
	assert.Equal(t, 0, svc.SubscriptionCount())
}

func TestServiceDropsSubscriptionsOnDisconnect(t *testing.T) {
	svc := startTestService(t)
	ctrl := connectTestController(t, svc)

	_, _, err := ctrl.client.Subscribe(context.Background(), 1,
		uint8(model.FeatureMachining), &interaction.SubscribeOptions{
			AttributeIDs: []uint16{machine.MachiningAttrStatus},
		})
	require.NoError(t, err)
	require.Equal(t, 1, svc.SubscriptionCount())

	require.NoError(t, ctrl.conn.Close())

	assert.Eventually(t, func() bool {
		return svc.SubscriptionCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServiceProductionLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.ProductionInterval = 50 * time.Millisecond

	svc, err := NewService("OfficinaTest", testMachines(), cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	cnc, ok := svc.GetMachine(1)
	require.True(t, ok)

	// Off machines do not produce
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, cnc.Machining().Parts())

	require.NoError(t, cnc.ChangeStatus(int64(catalog.StatusOn)))

	assert.Eventually(t, func() bool {
		return cnc.Machining().Parts() > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFromConfig(t *testing.T) {
	pc := &config.PlantConfig{
		PlantName:     "Officina",
		ListenAddress: "127.0.0.1:0",
		Machines: []config.MachineConfig{
			{ID: 1, Name: "CNC1", Kind: "CNC"},
			{ID: 2, Name: "CNCPro1", Kind: "CNCPro", Tool: "Fresa a sfera"},
		},
	}

	svc, err := FromConfig(pc, Config{})
	require.NoError(t, err)

	assert.Equal(t, "Officina", svc.Fleet().PlantName())
	assert.Equal(t, 2, svc.Fleet().MachineCount())

	pro, ok := svc.GetMachine(2)
	require.True(t, ok)
	assert.Equal(t, "Fresa a sfera", pro.Machining().Tool())
}

func TestFromConfigInvalid(t *testing.T) {
	pc := &config.PlantConfig{PlantName: "Officina"}

	_, err := FromConfig(pc, Config{})
	assert.ErrorIs(t, err, config.ErrNoMachines)
}
