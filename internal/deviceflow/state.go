package deviceflow

// State is the position of a Client in the device authorization flow
type State int

const (
	StateIdle State = iota
	StateCodesRequested
	StatePolling
	StateAuthorized
	StateDenied
	StateExpired
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCodesRequested:
		return "codes_requested"
	case StatePolling:
		return "polling"
	case StateAuthorized:
		return "authorized"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// PollResult is the outcome of a single token poll
type PollResult int

const (
	PollPending PollResult = iota
	PollAuthorized
	PollDenied
	PollExpired
)

func (r PollResult) String() string {
	switch r {
	case PollPending:
		return "pending"
	case PollAuthorized:
		return "authorized"
	case PollDenied:
		return "denied"
	case PollExpired:
		return "expired"
	default:
		return "unknown"
	}
}
