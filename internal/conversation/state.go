package conversation

import (
	"fmt"
)

// State of a user's registration dialogue.
type State int

const (
	StateIdle State = iota
	StateAwaitingEmail
	StateAwaitingUsername
	StateAwaitingPassword
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingEmail:
		return "AwaitingEmail"
	case StateAwaitingUsername:
		return "AwaitingUsername"
	case StateAwaitingPassword:
		return "AwaitingPassword"
	}

	return fmt.Sprintf("State(%d)", int(s))
}
