package convert_test

import (
	"testing"

	"github.com/justapithecus/colbench/internal/convert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to convert.State
		want     bool
	}{
		{convert.Idle, convert.ArgsParsed, true},
		{convert.ArgsParsed, convert.SchemaIntrospected, true},
		{convert.ArgsParsed, convert.DirectSnapshot, true},
		{convert.SchemaIntrospected, convert.Normalized, true},
		{convert.Normalized, convert.Written, true},
		{convert.Written, convert.Done, true},
		{convert.DirectSnapshot, convert.Done, true},
		{convert.Normalized, convert.Failed, true},

		{convert.Idle, convert.Written, false},
		{convert.SchemaIntrospected, convert.DirectSnapshot, false},
		{convert.Normalized, convert.Done, false},
		{convert.Done, convert.Failed, false},
		{convert.Failed, convert.Failed, false},
		{convert.Done, convert.Idle, false},
	}

	for _, tt := range tests {
		if got := convert.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if convert.DirectSnapshot.String() != "direct_snapshot" {
		t.Errorf("String() = %q", convert.DirectSnapshot.String())
	}
	if convert.State(42).String() != "state(42)" {
		t.Errorf("String() = %q", convert.State(42).String())
	}
	b, err := convert.Failed.MarshalText()
	if err != nil || string(b) != "failed" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
}
