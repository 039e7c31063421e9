package convert

import "fmt"

// State is a stage of a conversion job.
//
// A job moves Idle → ArgsParsed, then either through SchemaIntrospected →
// Normalized → Written or through DirectSnapshot, and ends in Done. Any
// failure moves it to Failed.
type State int

// Job states.
const (
	Idle State = iota
	ArgsParsed
	SchemaIntrospected
	Normalized
	Written
	DirectSnapshot
	Done
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	ArgsParsed:         "args_parsed",
	SchemaIntrospected: "schema_introspected",
	Normalized:         "normalized",
	Written:            "written",
	DirectSnapshot:     "direct_snapshot",
	Done:               "done",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// next lists the legal successors of each non-terminal state.
var next = map[State][]State{
	Idle:               {ArgsParsed},
	ArgsParsed:         {SchemaIntrospected, DirectSnapshot},
	SchemaIntrospected: {Normalized},
	Normalized:         {Written},
	Written:            {Done},
	DirectSnapshot:     {Done},
}

// CanTransition reports whether a job may move from one state to another.
// Every non-terminal state may move to Failed.
func CanTransition(from, to State) bool {
	if to == Failed {
		return from != Done && from != Failed
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
