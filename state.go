package sikulibridge

// State is the lifecycle state of a Bridge.
type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateReady
	StateConnectedOnly
	StateStopping
	StateStopped
)

var stateNames = [...]string{
	StateUnstarted:     "unstarted",
	StateStarting:      "starting",
	StateReady:         "ready",
	StateConnectedOnly: "connected-only",
	StateStopping:      "stopping",
	StateStopped:       "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Connected reports whether keyword invocations can be forwarded.
func (s State) Connected() bool {
	return s == StateReady || s == StateConnectedOnly
}
