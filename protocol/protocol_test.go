package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeFlatWithType(t *testing.T) {
	b, err := Encode(Target{X: 1.5, Y: 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got := string(b)
	if got != `{"type":"target","x":1.5,"y":2}` {
		t.Errorf("Encode(Target) = %s", got)
	}

	b, err = Encode(NoTarget{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(b) != `{"type":"no_target"}` {
		t.Errorf("Encode(NoTarget) = %s", b)
	}
}

func TestDecodeStatus(t *testing.T) {
	payload := []byte(`{"type":"status","id":"creature1_0","x":3,"y":4,"energy":1.2,"speed":1,"size":0.9,"sense":0.5,"foods_eaten":2,"kills":1}`)
	m, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	st, ok := m.(Status)
	if !ok {
		t.Fatalf("Decode returned %T, want Status", m)
	}
	if st.ID != "creature1_0" || st.X != 3 || st.Y != 4 || st.FoodsEaten != 2 || st.Kills != 1 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestDecodeEatConfirmOptionalFields(t *testing.T) {
	m := MustEncode(EatConfirm{ID: "a"})
	if strings.Contains(string(m), "energy_gain") || strings.Contains(string(m), "prey") {
		t.Errorf("optional fields should be omitted: %s", m)
	}

	decoded, err := Decode(MustEncode(EatConfirm{ID: "a", EnergyGain: Gain(0.5), Prey: "b"}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ec := decoded.(EatConfirm)
	if ec.EnergyGain == nil || *ec.EnergyGain != 0.5 || ec.Prey != "b" {
		t.Errorf("unexpected eat_confirm: %+v", ec)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", "hello", ErrMalformed},
		{"array", "[1,2]", ErrMalformed},
		{"unknown type", `{"type":"dance"}`, ErrUnknownType},
		{"missing type", `{"id":"x"}`, ErrUnknownType},
		{"bad field type", `{"type":"status","x":"far"}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) error = %v, want %v", tt.payload, err, tt.want)
			}
		})
	}
}
