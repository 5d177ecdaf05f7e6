package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/officina-protocol/officina-go/pkg/model"
)

func validPlantConfig() *PlantConfig {
	return &PlantConfig{
		PlantName: "Officina",
		Machines: []MachineConfig{
			{ID: 1, Name: "CNC1", Kind: "CNC"},
			{ID: 2, Name: "CNCPro1", Kind: "CNCPro", Tool: "Fresa a candela"},
		},
	}
}

func TestPlantConfigValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		if err := validPlantConfig().Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	t.Run("MissingPlantName", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.PlantName = ""
		if err := cfg.Validate(); !errors.Is(err, ErrNoPlantName) {
			t.Errorf("error = %v, want ErrNoPlantName", err)
		}
	})

	t.Run("NoMachines", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.Machines = nil
		if err := cfg.Validate(); !errors.Is(err, ErrNoMachines) {
			t.Errorf("error = %v, want ErrNoMachines", err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.Machines[1].ID = 1
		if err := cfg.Validate(); !errors.Is(err, ErrDuplicateID) {
			t.Errorf("error = %v, want ErrDuplicateID", err)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.Machines[1].Name = "CNC1"
		if err := cfg.Validate(); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("error = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("ZeroID", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.Machines[0].ID = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMachineID) {
			t.Errorf("error = %v, want ErrInvalidMachineID", err)
		}
	})

	t.Run("InvalidKind", func(t *testing.T) {
		cfg := validPlantConfig()
		cfg.Machines[0].Kind = "CNCUltra"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidKind) {
			t.Errorf("error = %v, want ErrInvalidKind", err)
		}
	})
}

func TestControllerConfigValidate(t *testing.T) {
	t.Run("Address", func(t *testing.T) {
		cfg := &ControllerConfig{PlantAddress: "localhost:4840"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("Discovery", func(t *testing.T) {
		cfg := &ControllerConfig{Discover: true, PlantName: "Officina"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("NeitherAddressNorDiscovery", func(t *testing.T) {
		cfg := &ControllerConfig{}
		if err := cfg.Validate(); !errors.Is(err, ErrNoPlantAddress) {
			t.Errorf("error = %v, want ErrNoPlantAddress", err)
		}
	})

	t.Run("NegativeInterval", func(t *testing.T) {
		cfg := &ControllerConfig{PlantAddress: "localhost:4840", SamplingIntervalMs: -1}
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("error = %v, want ErrInvalidInterval", err)
		}
	})
}

func TestLoadPlant(t *testing.T) {
	data := `
plant_name: Officina Meccanica
listen_address: ":4840"
advertise: true
production_interval_ms: 500
machines:
  - id: 1
    name: CNC1
    kind: CNC
  - id: 2
    name: CNCPro1
    kind: CNCPro
    tool: Fresa a candela
`
	path := filepath.Join(t.TempDir(), "plant.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPlant(path)
	if err != nil {
		t.Fatalf("LoadPlant() error = %v", err)
	}

	if cfg.PlantName != "Officina Meccanica" {
		t.Errorf("PlantName = %q", cfg.PlantName)
	}
	if cfg.ListenAddress != ":4840" {
		t.Errorf("ListenAddress = %q", cfg.ListenAddress)
	}
	if !cfg.Advertise {
		t.Error("Advertise = false, want true")
	}
	if cfg.ProductionInterval() != 500*time.Millisecond {
		t.Errorf("ProductionInterval() = %v", cfg.ProductionInterval())
	}
	if len(cfg.Machines) != 2 {
		t.Fatalf("len(Machines) = %d, want 2", len(cfg.Machines))
	}

	kind, err := cfg.Machines[1].MachineKind()
	if err != nil {
		t.Fatalf("MachineKind() error = %v", err)
	}
	if kind != model.KindPro {
		t.Errorf("kind = %v, want KindPro", kind)
	}
	if cfg.Machines[1].Tool != "Fresa a candela" {
		t.Errorf("Tool = %q", cfg.Machines[1].Tool)
	}
}

func TestLoadPlantErrors(t *testing.T) {
	t.Run("FileNotFound", func(t *testing.T) {
		if _, err := LoadPlant(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("plant_name: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPlant(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("FailsValidation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plant.yaml")
		if err := os.WriteFile(path, []byte("plant_name: Officina\nmachines: []\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPlant(path); !errors.Is(err, ErrNoMachines) {
			t.Errorf("error = %v, want ErrNoMachines", err)
		}
	})
}

func TestLoadController(t *testing.T) {
	data := `
plant_address: "192.168.1.10:4840"
sampling_interval_ms: 1000
queue_depth: 10
`
	path := filepath.Join(t.TempDir(), "controller.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadController(path)
	if err != nil {
		t.Fatalf("LoadController() error = %v", err)
	}

	if cfg.PlantAddress != "192.168.1.10:4840" {
		t.Errorf("PlantAddress = %q", cfg.PlantAddress)
	}
	if cfg.SamplingInterval() != time.Second {
		t.Errorf("SamplingInterval() = %v", cfg.SamplingInterval())
	}
	if cfg.QueueDepth != 10 {
		t.Errorf("QueueDepth = %d", cfg.QueueDepth)
	}
}
