package record

// Action is what a phase handler asks the session service to do.
type Action string

// Phase handler actions.
const (
	ActionNone          Action = "none"
	ActionStart         Action = "start"
	ActionPause         Action = "pause"
	ActionResume        Action = "resume"
	ActionStop          Action = "stop"
	ActionCancel        Action = "cancel"
	ActionResetMetadata Action = "reset_metadata"
)

// Command is a phase handler's verdict for one frame: the action to take,
// the updated context, and an optional human-readable reason.
type Command struct {
	Action  Action
	Context Context
	Reason  string
}

func none(rc Context) Command {
	return Command{Action: ActionNone, Context: rc}
}
