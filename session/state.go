package session

// State is the authentication state of a Manager
type State int

const (
	// StateAnonymous means no token is held
	StateAnonymous State = iota
	// StateAuthenticated means a token is held; it may be close to expiry
	StateAuthenticated
	// StateRefreshing means a token renewal is in flight
	StateRefreshing
	// StateFailed means the provider rejected a login or renewal; only a new
	// login or Restore leaves this state
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
