package session

import "fmt"

// Status is the controller's position in the link lifecycle.
type Status int

const (
	StatusIdle Status = iota
	StatusChecking
	StatusSignedOut
	StatusConnecting
	StatusSignedIn
)

var statusNames = map[Status]string{
	StatusIdle:       "idle",
	StatusChecking:   "checking",
	StatusSignedOut:  "signed_out",
	StatusConnecting: "connecting",
	StatusSignedIn:   "signed_in",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent read of the controller state. UserID is set only
// when Status is StatusSignedIn.
type Snapshot struct {
	Status    Status `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Error     string `json:"error,omitempty"`
	AttemptID string `json:"attemptId,omitempty"`
}

// Outcome records how a connect attempt ended.
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeMessage   Outcome = "message"
	OutcomePoll      Outcome = "poll"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)
