package cvae

// State is the lifecycle of a CVAE. Transitions only move forward:
// Unready → Loading → Ready or Failed.
type State int

const (
	Unready State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unready:
		return "unready"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
