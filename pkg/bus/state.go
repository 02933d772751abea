package bus

// State is the bridge's connection state
type State int

const (
	// StateIdle is the state before Connect
	StateIdle State = iota
	// StateConnected means the subscriber is receiving messages
	StateConnected
	// StateReconnecting means the subscriber was lost and is being re-established
	StateReconnecting
	// StateFailed means reconnecting gave up; the process needs a restart
	StateFailed
	// StateClosed means Close was called
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
