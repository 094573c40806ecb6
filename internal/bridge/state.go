package bridge

// State is a session's lifecycle position. Transitions are serialized on
// the session's run loop; no state is ever observed mid-transition.
type State int32

const (
	StateIdle State = iota
	StateLoggingIn
	StateProvisioningChannel
	StateStartingVoice
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLoggingIn:
		return "LOGGING_IN"
	case StateProvisioningChannel:
		return "PROVISIONING_CHANNEL"
	case StateStartingVoice:
		return "STARTING_VOICE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}
