package panel

// Phase names the variant of a State
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Phased is anything that reports a Phase, including every State[T]
type Phased interface {
	Phase() Phase
}

// State is the sealed sum type Loading | Ready | Failed. A panel holds exactly
// one at a time and replaces it wholesale on every fetch attempt.
type State[T any] interface {
	Phase() Phase
	sealed()
}

// Loading means a fetch for the current dependencies is in flight
type Loading[T any] struct{}

// Ready carries the decoded result of the latest request
type Ready[T any] struct {
	Data T
}

// Failed carries the human-readable failure of the latest request
type Failed[T any] struct {
	Message string
}

func (Loading[T]) Phase() Phase { return PhaseLoading }
func (Ready[T]) Phase() Phase   { return PhaseReady }
func (Failed[T]) Phase() Phase  { return PhaseFailed }

func (Loading[T]) sealed() {}
func (Ready[T]) sealed()   {}
func (Failed[T]) sealed()  {}
