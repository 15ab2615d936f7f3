package session

import (
	"fmt"
	"strings"
)

// State is the session state as last reported by the server, plus the local
// ERROR circuit breaker.
type State int32

const (
	Unknown State = iota
	Playing
	Paused
	GameOver
	// Error is never reported by the server. The loop enters it after repeated
	// transport failures and leaves it on the next successful status fetch.
	Error
)

func (s State) String() string {
	switch s {
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	case GameOver:
		return "GAME_OVER"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseState maps a server state string. Anything unrecognised is Unknown with an error.
// ERROR is local-only, so a server claiming it is also Unknown.
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PLAYING":
		return Playing, nil
	case "PAUSED":
		return Paused, nil
	case "GAME_OVER", "GAMEOVER":
		return GameOver, nil
	case "UNKNOWN", "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown session state %q", s)
	}
}
