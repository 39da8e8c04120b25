package worker

// State is the lifecycle position of one session.
type State int

const (
	// Idle means no pass is running and none is scheduled.
	Idle State = iota
	// Debouncing means a pass is scheduled once the transcript goes quiet.
	Debouncing
	// Running means a pass is in flight.
	Running
	// RunningWithPending means a pass is in flight and the transcript changed
	// after it started.
	RunningWithPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Running:
		return "running"
	case RunningWithPending:
		return "running_with_pending"
	}
	return "unknown"
}

// Event drives session state transitions.
type Event int

const (
	// FileChanged reports that the transcript was written.
	FileChanged Event = iota
	// DebounceElapsed reports that the debounce timer fired.
	DebounceElapsed
	// PassComplete reports that a pass returned, successfully or not.
	PassComplete
)

func (e Event) String() string {
	switch e {
	case FileChanged:
		return "file_changed"
	case DebounceElapsed:
		return "debounce_elapsed"
	case PassComplete:
		return "pass_complete"
	}
	return "unknown"
}

// Action is the side effect the session loop performs after a transition.
type Action int

const (
	ActionNone Action = iota
	// ActionArmTimer (re)starts the debounce timer.
	ActionArmTimer
	// ActionStartPass launches a pass.
	ActionStartPass
)

// next is the session transition function. Events that do not apply to the
// current state, such as a stale timer firing while Running, leave it as is.
func next(s State, e Event) (State, Action) {
	switch s {
	case Idle:
		if e == FileChanged {
			return Debouncing, ActionArmTimer
		}
	case Debouncing:
		switch e {
		case FileChanged:
			return Debouncing, ActionArmTimer
		case DebounceElapsed:
			return Running, ActionStartPass
		}
	case Running:
		switch e {
		case FileChanged:
			return RunningWithPending, ActionNone
		case PassComplete:
			return Idle, ActionNone
		}
	case RunningWithPending:
		if e == PassComplete {
			return Debouncing, ActionArmTimer
		}
	}
	return s, ActionNone
}
