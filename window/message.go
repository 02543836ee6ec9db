package window

// TypeAuthSuccess is posted by the callback window once the account is linked.
const TypeAuthSuccess = "AUTH_SUCCESS"

// Message is the structured payload exchanged between browsing contexts.
type Message struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// Envelope is a delivered message together with the sender's origin.
type Envelope struct {
	Origin string  `json:"origin"`
	Data   Message `json:"data"`
}

// AuthSuccess builds the message the callback window sends to its opener.
func AuthSuccess(userID string) Message {
	return Message{Type: TypeAuthSuccess, UserID: userID}
}

// IsAuthSuccess reports whether m has the expected success shape.
func (m Message) IsAuthSuccess() bool {
	return m.Type == TypeAuthSuccess && m.UserID != ""
}
