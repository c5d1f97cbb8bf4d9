package model

// allowedTransitions lists every response status change the workflow may make.
// pending -> pending is the manual review outcome (scored, left for a manager).
var allowedTransitions = map[ResponseStatus][]ResponseStatus{
	StatusPending:    {StatusPending, StatusAccepted, StatusWaitlisted, StatusRejected, StatusDeclined, StatusWithdrawn},
	StatusWaitlisted: {StatusAccepted, StatusRejected, StatusWithdrawn},
	StatusAccepted:   {StatusWithdrawn},
}

// CanTransition returns true if a response may move from one status to another
func CanTransition(from, to ResponseStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
