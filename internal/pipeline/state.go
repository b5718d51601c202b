package pipeline

// State is a node of the run state machine
type State string

const (
	StateInit             State = "Init"
	StateParsing          State = "Parsing"
	StateEstimating       State = "Estimating"
	StateTaskGen          State = "TaskGen"
	StateDependencyDetect State = "DependencyDetect"
	StateCriteriaGen      State = "CriteriaGen"
	StatePromptGen        State = "PromptGen"
	StateComplete         State = "Complete"
	StateFailed           State = "Failed"
	StatePartiallyFailed  State = "PartiallyFailed"
	StateCancelled        State = "Cancelled"
)

// Stages lists the working states in execution order
func Stages() []State {
	return []State{
		StateParsing,
		StateEstimating,
		StateTaskGen,
		StateDependencyDetect,
		StateCriteriaGen,
		StatePromptGen,
	}
}

// Terminal reports whether no transition leaves the state
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StatePartiallyFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Fatal reports whether exhausting retries in this stage fails the run.
// The other stages degrade instead.
func (s State) Fatal() bool {
	return s == StateParsing || s == StateTaskGen
}

func (s State) String() string { return string(s) }
