package model

import (
	"encoding/json"
	"testing"
)

func TestFlexIDUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  FlexID
	}{
		{`"cmp_42"`, "cmp_42"},
		{`42`, "42"},
		{`4.5`, "4.5"},
		{`""`, ""},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id FlexID
		if err := json.Unmarshal([]byte(tt.input), &id); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.input, err)
			continue
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, id, tt.want)
		}
	}
}

func TestFlexIDUnmarshalRejectsObjects(t *testing.T) {
	var id FlexID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Fatal("expected error for object id")
	}
}

func TestFlexIDMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(FlexID("7"))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"7"` {
		t.Fatalf("Marshal = %s, want %q", data, `"7"`)
	}
}

func TestFlexIDRoundTripStable(t *testing.T) {
	// A numeric id from the collector must serialize identically on every
	// subsequent save.
	var c Campaign
	if err := json.Unmarshal([]byte(`{"id":12,"name":"Q3","prospects":[]}`), &c); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	first, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var again Campaign
	if err := json.Unmarshal(first, &again); err != nil {
		t.Fatalf("re-Unmarshal error: %v", err)
	}
	second, err := json.Marshal(again)
	if err != nil {
		t.Fatalf("re-Marshal error: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("round trip unstable:\n%s\n%s", first, second)
	}
}
