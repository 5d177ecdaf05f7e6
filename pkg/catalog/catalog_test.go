package catalog

import "testing"

func TestMachineStatusLabels(t *testing.T) {
	tests := []struct {
		value int64
		want  string
	}{
		{0, "Off"},
		{1, "On"},
		{2, "Alarm"},
		{3, UnknownLabel},
		{-1, UnknownLabel},
		{99, UnknownLabel},
	}

	for _, tt := range tests {
		if got := StatusLabel(tt.value); got != tt.want {
			t.Errorf("StatusLabel(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestMachineStatusFromInt(t *testing.T) {
	t.Run("ValidSet", func(t *testing.T) {
		for v := int64(0); v <= 2; v++ {
			s, ok := MachineStatusFromInt(v)
			if !ok {
				t.Fatalf("MachineStatusFromInt(%d) rejected in-set value", v)
			}
			if !s.IsValid() {
				t.Errorf("status %v should be valid", s)
			}
		}
	})

	t.Run("OutOfSet", func(t *testing.T) {
		for _, v := range []int64{-1, 3, 255, 1000} {
			if _, ok := MachineStatusFromInt(v); ok {
				t.Errorf("MachineStatusFromInt(%d) accepted out-of-set value", v)
			}
		}
	})
}

func TestSpindleSpeedLabels(t *testing.T) {
	tests := []struct {
		value int64
		want  string
	}{
		{1, "Level 1"},
		{3, "Level 3"},
		{5, "Level 5"},
		{0, UnknownLabel},
		{6, UnknownLabel},
		{-2, UnknownLabel},
	}

	for _, tt := range tests {
		if got := SpeedLabel(tt.value); got != tt.want {
			t.Errorf("SpeedLabel(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSpindleSpeedFromInt(t *testing.T) {
	for v := int64(1); v <= 5; v++ {
		s, ok := SpindleSpeedFromInt(v)
		if !ok || !s.IsValid() {
			t.Errorf("SpindleSpeedFromInt(%d) should be valid", v)
		}
	}
	for _, v := range []int64{0, 6, -1} {
		if _, ok := SpindleSpeedFromInt(v); ok {
			t.Errorf("SpindleSpeedFromInt(%d) accepted out-of-set value", v)
		}
	}
}
