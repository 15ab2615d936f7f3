package strategy

import (
	"fmt"
	"strings"
)

// Command is a single control input understood by the game server.
type Command string

const (
	Left      Command = "LEFT"
	Right     Command = "RIGHT"
	Down      Command = "DOWN"
	Drop      Command = "DROP"
	RotateCW  Command = "ROTATE_CW"
	RotateCCW Command = "ROTATE_CCW"
	Hold      Command = "HOLD"
	Pause     Command = "PAUSE"
	Resume    Command = "RESUME"
	Restart   Command = "RESTART"
)

// None is the zero Command, used when no command has been sent yet.
const None Command = ""

// AllCommands lists every command the server accepts.
var AllCommands = []Command{Left, Right, Down, Drop, RotateCW, RotateCCW, Hold, Pause, Resume, Restart}

// ParseCommand accepts any casing.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllCommands {
		if c == known {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown command %q", s)
}

// Lateral reports whether the command moves the piece sideways.
func (c Command) Lateral() bool { return c == Left || c == Right }

// Control reports whether the command is a session control rather than a piece move.
func (c Command) Control() bool {
	return c == Hold || c == Pause || c == Resume || c == Restart
}

func (c Command) String() string {
	if c == None {
		return "NONE"
	}
	return string(c)
}
