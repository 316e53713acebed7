package ddns

import "fmt"

// State is a step of one update cycle.
type State int

const (
	Idle State = iota
	ResolvingIP
	ResolvingDomain
	ResolvingRecord
	Comparing
	Updating
	Done
	Failed
)

var stateNames = []string{
	Idle:            "idle",
	ResolvingIP:     "resolving_ip",
	ResolvingDomain: "resolving_domain",
	ResolvingRecord: "resolving_record",
	Comparing:       "comparing",
	Updating:        "updating",
	Done:            "done",
	Failed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown<%d>", int(s))
}
