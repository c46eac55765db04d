package ws

import (
	"errors"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/net/intake"
	"toutuo/server/internal/net/proto"
	"toutuo/server/internal/sim"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/telemetry"
)

type HandlerConfig struct {
	Logger    telemetry.Logger
	TickSpeed int
}

// Handler upgrades /ws requests and runs one read loop per session.
type Handler struct {
	hub       *Hub
	logger    telemetry.Logger
	tickSpeed int
	upgrader  websocket.Upgrader
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:       hub,
		logger:    logger,
		tickSpeed: cfg.TickSpeed,
		upgrader:  upgrader,
	}
}

// parseClient reads the client query parameter: a slot number or "demo".
func parseClient(raw string) (int, bool) {
	if raw == "demo" {
		return snap.DemoClient, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 || id >= gamecore.MaxClients {
		return 0, false
	}
	return id, true
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	clientID, ok := parseClient(r.URL.Query().Get("client"))
	if !ok {
		nethttp.Error(w, "missing or invalid client", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for client %d: %v", clientID, err)
		return
	}

	session, err := h.hub.Subscribe(clientID, conn)
	if err != nil {
		reason := "subscribe failed"
		if errors.Is(err, ErrClientTaken) {
			reason = "client taken"
		}
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	welcome, err := proto.EncodeWelcome(proto.Welcome{SessionID: session.ID, ClientID: clientID, TickSpeed: h.tickSpeed})
	if err == nil {
		err = session.WriteMessage(websocket.TextMessage, welcome)
	}
	if err != nil {
		h.hub.Unsubscribe(session, "welcome failed")
		return
	}
	h.hub.Start(session)

	ctx := intake.CommandContext{
		Engine:    h.hub.engine,
		HasClient: h.hub.HasClient,
		Tick:      h.hub.Tick,
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Unsubscribe(session, "disconnected")
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from session %s: %v", session.ID, err)
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			data, err := proto.EncodeHeartbeat(proto.Heartbeat{
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
				Tick:       h.hub.Tick(),
			})
			if err == nil && session.WriteMessage(websocket.TextMessage, data) != nil {
				h.hub.Unsubscribe(session, "write failed")
				return
			}
			continue
		}

		seq := uint64(0)
		if msg.CommandSeq != nil {
			seq = *msg.CommandSeq
		}
		if seq > 0 {
			if last := session.LastCommandSeq(); last > 0 && seq <= last {
				data, err := proto.EncodeCommandAck(proto.CommandAck{Seq: seq})
				if !h.reply(session, data, err) {
					return
				}
				continue
			}
		}

		cmd, ok, reason := intake.StageClientCommand(ctx, clientID, msg)
		if !ok && reason == intake.RejectInvalidCommand {
			h.logger.Printf("unknown message type %q from session %s", msg.Type, session.ID)
		}
		if seq == 0 {
			continue
		}
		if ok {
			data, err := proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: cmd.OriginTick})
			if !h.reply(session, data, err) {
				return
			}
			session.StoreLastCommandSeq(seq)
			continue
		}
		retry := reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull
		data, err := proto.EncodeCommandReject(proto.CommandReject{Seq: seq, Reason: reason, Retry: retry})
		if !h.reply(session, data, err) {
			return
		}
	}
}

// reply writes an encoded response, unsubscribing the session when the
// write fails.
func (h *Handler) reply(session *Session, data []byte, err error) bool {
	if err != nil {
		h.logger.Printf("failed to marshal response for session %s: %v", session.ID, err)
		return true
	}
	if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Unsubscribe(session, "write failed")
		return false
	}
	return true
}
