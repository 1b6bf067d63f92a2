package sessions

import "github.com/angelmondragon/carehub-backend/pkg/enums"

var allowedTransitions = map[enums.SessionStatus][]enums.SessionStatus{
	enums.SessionStatusPending:    {enums.SessionStatusInProgress, enums.SessionStatusCompleted, enums.SessionStatusCancelled},
	enums.SessionStatusInProgress: {enums.SessionStatusCompleted, enums.SessionStatusCancelled},
}

// canTransition reports whether from may move to to. Completed and cancelled
// are terminal.
func canTransition(from, to enums.SessionStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
