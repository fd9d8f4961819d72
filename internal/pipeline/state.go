package pipeline

// State is the driver's position in its lifecycle.
type State int

const (
	StateInitializing State = iota
	StateStreaming
	StateFlushing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
