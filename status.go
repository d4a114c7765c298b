package portal

// Status is the tri-state session status. It aliases string so session
// readers satisfy the narrow consumer interfaces (middleware/guard) that
// declare Status() string without importing this package. It never takes
// any other value than the three constants below.
type Status = string

const (
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// statusTransitions is the allowed transition graph. Loading is the boot
// state only: nothing transitions back into it.
var statusTransitions = map[Status]map[Status]struct{}{
	StatusLoading: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
	StatusAuthenticated: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
	StatusAnonymous: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
}

// IsValidStatus reports whether s is one of the three session statuses.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusLoading, StatusAuthenticated, StatusAnonymous:
		return true
	}
	return false
}

func canTransition(from, to Status) bool {
	if allowed, ok := statusTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}
