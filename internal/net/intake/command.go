package intake

import (
	"time"

	"toutuo/server/internal/net/proto"
	"toutuo/server/internal/sim"
)

// Reasons a client command is refused before it reaches the loop.
const (
	RejectInvalidCommand = "invalid_command"
	RejectUnknownClient  = "unknown_client"
	RejectSpectator      = "spectator"
)

// Enqueuer accepts commands for the next tick.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

type CommandContext struct {
	Engine    Enqueuer
	HasClient func(int) bool
	Tick      func() uint64
	Now       func() time.Time
}

// StageClientCommand validates msg for clientID and queues the command it
// carries. The reason is empty when the command was accepted.
func StageClientCommand(ctx CommandContext, clientID int, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, RejectInvalidCommand
	}
	if clientID < 0 {
		return zero, false, RejectSpectator
	}
	if ctx.HasClient != nil && !ctx.HasClient(clientID) {
		return zero, false, RejectUnknownClient
	}

	command.ClientID = clientID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}
	return command, true, ""
}
