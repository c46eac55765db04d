package sim

import (
	"time"

	"toutuo/server/internal/gamecore"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandJoin  CommandType = "Join"
	CommandLeave CommandType = "Leave"
	CommandInput CommandType = "Input"
	CommandTeam  CommandType = "Team"
	CommandPause CommandType = "Pause"
	CommandSuper CommandType = "Super"
	CommandView  CommandType = "View"
)

// InputCommand carries one input packet. Direct input is what the client
// pressed this frame; predicted input is what the next character tick runs.
type InputCommand struct {
	Input  gamecore.Input `json:"input"`
	Direct bool           `json:"direct"`
}

// TeamCommand moves a client into a collision team.
type TeamCommand struct {
	Team int `json:"team"`
}

// ToggleCommand switches pause or super mode.
type ToggleCommand struct {
	On bool `json:"on"`
}

// ViewCommand sets how far a client sees around its view position.
type ViewCommand struct {
	ShowDistanceX float64 `json:"showDistanceX"`
	ShowDistanceY float64 `json:"showDistanceY"`
	ShowAll       bool    `json:"showAll"`
}

// LeaveCommand records why a client left.
type LeaveCommand struct {
	Reason string `json:"reason"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64         `json:"originTick"`
	ClientID   int            `json:"clientId"`
	Type       CommandType    `json:"type"`
	IssuedAt   time.Time      `json:"issuedAt"`
	Input      *InputCommand  `json:"input,omitempty"`
	Team       *TeamCommand   `json:"team,omitempty"`
	Toggle     *ToggleCommand `json:"toggle,omitempty"`
	View       *ViewCommand   `json:"view,omitempty"`
	Leave      *LeaveCommand  `json:"leave,omitempty"`
}

// throttled reports whether the command counts against the per-client
// queue limit. Membership changes always get through.
func (c Command) throttled() bool {
	switch c.Type {
	case CommandJoin, CommandLeave:
		return false
	}
	return true
}
