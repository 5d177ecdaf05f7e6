package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
	"github.com/officina-protocol/officina-go/pkg/subscription"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

// loopback connects a client to a server through a full encode/decode
// round-trip, exercising the raw CBOR payload forms the handlers see
// over a real connection.
type loopback struct {
	server *Server
	client *Client
}

func (l *loopback) Send(data []byte) error {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return err
	}

	go func() {
		resp := l.server.HandleRequest(context.Background(), req)

		encoded, err := wire.EncodeResponse(resp)
		if err != nil {
			return
		}
		decoded, err := wire.DecodeResponse(encoded)
		if err != nil {
			return
		}
		_ = l.client.HandleResponse(decoded)
	}()

	return nil
}

func newTestPlant(t *testing.T) (*Server, *Client, *subscription.Manager) {
	t.Helper()

	fleet := model.NewFleet("OfficinaTest")
	base := machine.NewBase(1, "CNC1")
	pro := machine.NewPro(2, "CNCPro1")
	if err := fleet.AddMachine(base.Machine()); err != nil {
		t.Fatal(err)
	}
	if err := fleet.AddMachine(pro.Machine()); err != nil {
		t.Fatal(err)
	}

	subs := subscription.NewManager()
	t.Cleanup(subs.ClearAll)

	server := NewServer(fleet, subs)

	lb := &loopback{server: server}
	client := NewClient(lb)
	lb.client = client
	client.SetTimeout(2 * time.Second)
	t.Cleanup(func() { client.Close() })

	return server, client, subs
}

func TestReadAllAttributes(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	values, err := client.Read(ctx, 2, uint8(model.FeatureMachining), nil)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	// Pro machining: Status, Utensile, PezziProdotti, ConsumoEnergetico, StatusAI
	if len(values) != 5 {
		t.Errorf("attribute count = %d, want 5", len(values))
	}
	if _, ok := values[machine.MachiningAttrStatus]; !ok {
		t.Error("Status missing from read")
	}
}

func TestReadSpecificAttributes(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	values, err := client.Read(ctx, 1, uint8(model.FeatureMachining),
		[]uint16{machine.MachiningAttrEnergy})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("attribute count = %d, want 1", len(values))
	}
}

func TestReadErrors(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		machineID  uint8
		featureID  uint8
		attrIDs    []uint16
		wantStatus wire.Status
	}{
		{"unknown machine", 99, 1, nil, wire.StatusInvalidMachine},
		{"unknown feature", 1, 9, nil, wire.StatusInvalidFeature},
		{"unknown attribute", 1, 1, []uint16{200}, wire.StatusInvalidAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Read(ctx, tt.machineID, tt.featureID, tt.attrIDs)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want StatusError", err)
			}
			if se.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", se.Status, tt.wantStatus)
			}
		})
	}
}

func TestInvokeChangeStatus(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	_, err := client.Invoke(ctx, 1, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(catalog.StatusOn)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	values, err := client.Read(ctx, 1, uint8(model.FeatureMachining), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := values[machine.MachiningAttrStatus].(uint64); !ok || n != 1 {
		t.Errorf("status = %v, want 1", values[machine.MachiningAttrStatus])
	}
	if e, ok := values[machine.MachiningAttrEnergy].(float64); !ok || e != machine.EnergyOn {
		t.Errorf("energy = %v, want %v", values[machine.MachiningAttrEnergy], machine.EnergyOn)
	}
}

func TestInvokeStatusCodes(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	invoke := func(machineID, featureID, cmdID uint8, params map[string]any) *StatusError {
		t.Helper()
		_, err := client.Invoke(ctx, machineID, featureID, cmdID, params)
		if err == nil {
			t.Fatal("expected error")
		}
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("error = %v, want StatusError", err)
		}
		return se
	}

	t.Run("status out of range", func(t *testing.T) {
		se := invoke(1, uint8(model.FeatureMachining), machine.MachiningCmdChangeStatus,
			map[string]any{machine.ParamNewStatus: int64(9)})
		if se.Status != wire.StatusInvalidArgument {
			t.Errorf("status = %v, want InvalidArgument", se.Status)
		}
	})

	t.Run("speed change while off", func(t *testing.T) {
		se := invoke(1, uint8(model.FeatureSpindle), machine.SpindleCmdChangeSpeed,
			map[string]any{machine.ParamNewSpeed: int64(3)})
		if se.Status != wire.StatusInvalidState {
			t.Errorf("status = %v, want InvalidState", se.Status)
		}
	})

	t.Run("maintenance on base machine", func(t *testing.T) {
		se := invoke(1, uint8(model.FeatureMachining), machine.MachiningCmdPredictiveMaintenance, nil)
		// Base machines do not register the command at all
		if se.Status != wire.StatusInvalidCommand {
			t.Errorf("status = %v, want InvalidCommand", se.Status)
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		se := invoke(1, uint8(model.FeatureMachining), machine.MachiningCmdChangeStatus, nil)
		if se.Status != wire.StatusInvalidArgument {
			t.Errorf("status = %v, want InvalidArgument", se.Status)
		}
	})
}

func TestInvokeSpindleSequence(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	if _, err := client.Invoke(ctx, 2, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(catalog.StatusOn)}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Invoke(ctx, 2, uint8(model.FeatureSpindle),
		machine.SpindleCmdChangeSpeed,
		map[string]any{machine.ParamNewSpeed: int64(4)}); err != nil {
		t.Fatal(err)
	}

	values, err := client.Read(ctx, 2, uint8(model.FeatureMachining),
		[]uint16{machine.MachiningAttrEnergy})
	if err != nil {
		t.Fatal(err)
	}
	if e := values[machine.MachiningAttrEnergy]; e != 180.5 {
		t.Errorf("energy = %v, want 180.5", e)
	}
}

func TestInvokePredictiveMaintenance(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	if _, err := client.Invoke(ctx, 2, uint8(model.FeatureMachining),
		machine.MachiningCmdPredictiveMaintenance, nil); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	values, err := client.Read(ctx, 2, uint8(model.FeatureMachining),
		[]uint16{machine.MachiningAttrAIActive})
	if err != nil {
		t.Fatal(err)
	}
	if v := values[machine.MachiningAttrAIActive]; v != true {
		t.Errorf("StatusAI = %v, want true", v)
	}
}

func TestWriteReadOnlyAttribute(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	_, err := client.Write(ctx, 1, uint8(model.FeatureMachining),
		map[uint16]any{machine.MachiningAttrStatus: int32(1)})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if se.Status != wire.StatusReadOnly {
		t.Errorf("status = %v, want ReadOnly", se.Status)
	}
}

func TestSubscribeAndNotify(t *testing.T) {
	server, client, _ := newTestPlant(t)
	ctx := context.Background()

	// Route server notifications into the client as a connection would
	server.SetNotificationHandler(func(n *wire.Notification) {
		encoded, err := wire.EncodeNotification(n)
		if err != nil {
			return
		}
		decoded, err := wire.DecodeNotification(encoded)
		if err != nil {
			return
		}
		client.HandleNotification(decoded)
	})

	var mu sync.Mutex
	var got []*wire.Notification
	client.SetNotificationHandler(func(n *wire.Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	subID, current, err := client.Subscribe(ctx, 1, uint8(model.FeatureMachining), &SubscribeOptions{
		AttributeIDs:     []uint16{machine.MachiningAttrStatus},
		SamplingInterval: subscription.MinSamplingInterval,
		QueueDepth:       10,
		DiscardOldest:    true,
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if subID == 0 {
		t.Fatal("subscription ID is 0")
	}

	// Priming report carries the current status
	if v, ok := current[machine.MachiningAttrStatus]; !ok || v != uint64(0) {
		t.Errorf("priming status = %v, want 0", v)
	}

	// Trigger a change
	if _, err := client.Invoke(ctx, 1, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(catalog.StatusOn)}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("no notification received")
	}
	n := got[0]
	if n.SubscriptionID != subID || n.MachineID != 1 || n.AttributeID != machine.MachiningAttrStatus {
		t.Errorf("unexpected notification: %+v", n)
	}
	if v, ok := n.Value.(uint64); !ok || v != 1 {
		t.Errorf("value = %v, want 1", n.Value)
	}
}

func TestUnsubscribe(t *testing.T) {
	server, client, _ := newTestPlant(t)
	ctx := context.Background()

	subID, _, err := client.Subscribe(ctx, 1, uint8(model.FeatureMachining), nil)
	if err != nil {
		t.Fatal(err)
	}
	if server.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount = %d, want 1", server.SubscriptionCount())
	}

	if err := client.Unsubscribe(ctx, subID); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if server.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d, want 0", server.SubscriptionCount())
	}

	if err := client.Unsubscribe(ctx, subID); err == nil {
		t.Error("second Unsubscribe should fail")
	}
}

func TestSubscribeUnknownAttribute(t *testing.T) {
	_, client, _ := newTestPlant(t)

	_, _, err := client.Subscribe(context.Background(), 1, uint8(model.FeatureMachining),
		&SubscribeOptions{AttributeIDs: []uint16{200}})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if se.Status != wire.StatusInvalidAttribute {
		t.Errorf("status = %v, want InvalidAttribute", se.Status)
	}
}

func TestBrowse(t *testing.T) {
	_, client, _ := newTestPlant(t)
	ctx := context.Background()

	t.Run("whole fleet", func(t *testing.T) {
		result, err := client.Browse(ctx, 0)
		if err != nil {
			t.Fatalf("Browse failed: %v", err)
		}
		if result.PlantName != "OfficinaTest" {
			t.Errorf("plant name = %q", result.PlantName)
		}
		if len(result.Machines) != 2 {
			t.Fatalf("machine count = %d, want 2", len(result.Machines))
		}
		if result.Machines[0].Name != "CNC1" || result.Machines[1].Name != "CNCPro1" {
			t.Errorf("machines = %+v", result.Machines)
		}
		if result.Machines[1].Kind != uint8(model.KindPro) {
			t.Errorf("kind = %d, want Pro", result.Machines[1].Kind)
		}
	})

	t.Run("single machine", func(t *testing.T) {
		result, err := client.Browse(ctx, 2)
		if err != nil {
			t.Fatalf("Browse failed: %v", err)
		}
		if len(result.Machines) != 1 || result.Machines[0].ID != 2 {
			t.Errorf("machines = %+v", result.Machines)
		}
	})

	t.Run("unknown machine", func(t *testing.T) {
		_, err := client.Browse(ctx, 99)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("error = %v, want StatusError", err)
		}
		if se.Status != wire.StatusInvalidMachine {
			t.Errorf("status = %v, want InvalidMachine", se.Status)
		}
	})
}

func TestClientClosedRejectsRequests(t *testing.T) {
	_, client, _ := newTestPlant(t)

	client.Close()
	if _, err := client.Read(context.Background(), 1, 1, nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("error = %v, want ErrClientClosed", err)
	}
}
