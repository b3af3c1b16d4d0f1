package service

// State состояние сессии.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDraining
	StateClosed
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateBackoff:
		return "backoff"
	}
	return "unknown"
}

// StateEvent переход состояния; Failures подряд неудачных подключений.
type StateEvent struct {
	Session  string
	State    State
	Failures int
	Err      error
}

// Observer получает переходы, вызывается из горутины сессии.
type Observer func(ev StateEvent)
