package proto

import (
	"encoding/json"
	"fmt"

	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/sim"
	"toutuo/server/internal/tuning"
	"toutuo/server/internal/world"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for server messages sent as text frames. Snapshot
	// frames go out as binary msgpack and carry no type.
	typeWelcome       = "welcome"
	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHeartbeat     = "heartbeat"
	typeChat          = "chat"
	typeTuning        = "tuning"
)

// Client message type identifiers.
const (
	TypeInput     = "input"
	TypeTeam      = "team"
	TypePause     = "pause"
	TypeSuper     = "super"
	TypeView      = "view"
	TypeHeartbeat = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeWelcome = typeWelcome
	TypeChat    = typeChat
	TypeTuning  = typeTuning
)

// ClientMessage is the JSON envelope every client text frame uses. Only the
// fields of its Type are read.
type ClientMessage struct {
	Ver        int             `json:"ver,omitempty"`
	Type       string          `json:"type"`
	Input      *gamecore.Input `json:"input,omitempty"`
	Direct     bool            `json:"direct,omitempty"`
	Team       int             `json:"team,omitempty"`
	On         bool            `json:"on,omitempty"`
	ShowX      float64         `json:"showX,omitempty"`
	ShowY      float64         `json:"showY,omitempty"`
	ShowAll    bool            `json:"showAll,omitempty"`
	SentAt     int64           `json:"sentAt,omitempty"`
	CommandSeq *uint64         `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("decode client message: %w", err)
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ClientCommand captures the simulation command carried by a websocket
// message. Origin metadata is filled in when the command is staged.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeInput:
		if msg.Input == nil {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:  sim.CommandInput,
			Input: &sim.InputCommand{Input: *msg.Input, Direct: msg.Direct},
		}, true
	case TypeTeam:
		return sim.Command{Type: sim.CommandTeam, Team: &sim.TeamCommand{Team: msg.Team}}, true
	case TypePause:
		return sim.Command{Type: sim.CommandPause, Toggle: &sim.ToggleCommand{On: msg.On}}, true
	case TypeSuper:
		return sim.Command{Type: sim.CommandSuper, Toggle: &sim.ToggleCommand{On: msg.On}}, true
	case TypeView:
		return sim.Command{
			Type: sim.CommandView,
			View: &sim.ViewCommand{ShowDistanceX: msg.ShowX, ShowDistanceY: msg.ShowY, ShowAll: msg.ShowAll},
		}, true
	default:
		return sim.Command{}, false
	}
}

// Welcome is the first message of every session.
type Welcome struct {
	SessionID string
	ClientID  int
	TickSpeed int
}

func EncodeWelcome(msg Welcome) ([]byte, error) {
	frame := struct {
		Ver       int    `json:"ver"`
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		ClientID  int    `json:"clientId"`
		TickSpeed int    `json:"tickSpeed"`
	}{
		Ver:       Version,
		Type:      typeWelcome,
		SessionID: msg.SessionID,
		ClientID:  msg.ClientID,
		TickSpeed: msg.TickSpeed,
	}
	return json.Marshal(frame)
}

// CommandAck describes an acknowledgement of a staged command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Retry:  msg.Retry,
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	Tick       uint64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		Tick       uint64 `json:"tick"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		Tick:       msg.Tick,
	}
	return json.Marshal(frame)
}

// EncodeNotice renders a world notice for its client.
func EncodeNotice(n world.Notice) ([]byte, error) {
	switch n.Kind {
	case world.NoticeChat:
		return json.Marshal(struct {
			Ver     int    `json:"ver"`
			Type    string `json:"type"`
			Message string `json:"message"`
		}{Ver: Version, Type: typeChat, Message: n.Message})
	case world.NoticeTuning:
		return json.Marshal(struct {
			Ver    int           `json:"ver"`
			Type   string        `json:"type"`
			Zone   int           `json:"zone"`
			Params tuning.Params `json:"params"`
		}{Ver: Version, Type: typeTuning, Zone: n.Zone, Params: n.Params})
	}
	return nil, fmt.Errorf("unknown notice kind %d", n.Kind)
}
