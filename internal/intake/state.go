package intake

// State is a position in the intake flow.
type State int32

const (
	AwaitingTopic State = iota
	AwaitingStart
	AwaitingDuration
	AwaitingPlatform
	Dispatching
	Completed
	Failed
)

var stateNames = [...]string{
	AwaitingTopic:    "awaiting_topic",
	AwaitingStart:    "awaiting_start",
	AwaitingDuration: "awaiting_duration",
	AwaitingPlatform: "awaiting_platform",
	Dispatching:      "dispatching",
	Completed:        "completed",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Awaiting reports whether the flow is waiting for a user reply.
func (s State) Awaiting() bool {
	return s >= AwaitingTopic && s <= AwaitingPlatform
}

// Terminal reports whether the flow has finished.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// field names the piece of the request collected in an awaiting state.
func (s State) field() string {
	switch s {
	case AwaitingTopic:
		return "topic"
	case AwaitingStart:
		return "start time"
	case AwaitingDuration:
		return "duration"
	case AwaitingPlatform:
		return "platform"
	default:
		return s.String()
	}
}

// User facing prompts, one per awaiting state.
const (
	PromptTopic    = "What should be the topic of the meeting?"
	PromptStart    = "When should the meeting start? (Format: YYYY-MM-DDTHH:MM:SSZ)"
	PromptDuration = "How long should the meeting be? (in minutes)"
	PromptPlatform = "Which platform would you like to use? (Zoom/Google Meet)"

	MessageInvalidPlatform = "Invalid platform selected. Please choose either Zoom or Google Meet."
)
