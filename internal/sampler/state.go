package sampler

// State is the lifecycle phase of an Agent.
type State int32

const (
	// StateInit acquires the camera, model, labels and broker connection.
	StateInit State = iota
	// StateRunning executes sampling cycles.
	StateRunning
	// StateStopped is reached after a stop request or the cycle limit.
	StateStopped
	// StateFailed is reached when initialization fails.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
