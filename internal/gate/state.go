package gate

// State is the lifecycle phase of a Gate
type State int32

const (
	// Pending means Start has not been called
	Pending State = iota
	// Probing means probes are running
	Probing
	// Ready means every remote answered within its budget
	Ready
	// Degraded means at least one remote exhausted its budget. It is terminal
	// and non-fatal: requests are still served.
	Degraded
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Probing:
		return "probing"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Settled reports whether s is a terminal state
func (s State) Settled() bool {
	return s == Ready || s == Degraded
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
