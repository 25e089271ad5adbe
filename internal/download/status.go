package download

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is the list of valid "to" statuses.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {},
	StatusFailed:     {StatusPending}, // retry
	StatusCancelled:  {StatusPending}, // retry
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	valid, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == target {
			return true
		}
	}
	return false
}

// Terminal returns true if this status ends a download's lifecycle.
// Failed and cancelled downloads may re-enter the queue via retry, but
// only through an explicit user action.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}
