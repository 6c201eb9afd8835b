package dispatch

// State is the delivery state of one recipient within a job.
// Transitions: pending -> sending -> sent | failed. Both sent and failed are
// terminal; a finished job is never replayed.
type State string

const (
	StatePending State = "pending"
	StateSending State = "sending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

func (s State) Terminal() bool { return s == StateSent || s == StateFailed }

type RecipientStatus struct {
	RecipientID string `json:"recipient_id"`
	Address     string `json:"address"`
	State       State  `json:"state"`
	Error       string `json:"error,omitempty"`
}

// StatusFunc receives a copy of a recipient's status after every transition,
// letting callers render live progress without polling.
type StatusFunc func(RecipientStatus)
