package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sasha-s/go-deadlock"

	"toutuo/server/internal/net/proto"
	"toutuo/server/internal/sim"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/telemetry"
	"toutuo/server/internal/world"
	"toutuo/server/logging"
	"toutuo/server/logging/capacity"
)

const writeWait = 2 * time.Second

// sendQueueSize bounds the frames and notices waiting for one session's
// writer. A session that falls this far behind is closed.
const sendQueueSize = 32

const (
	metricSessions      = "ws_sessions"
	metricFramesSent    = "ws_frames_sent_total"
	metricFrameBytes    = "ws_frame_bytes_total"
	metricWriteFailures = "ws_write_failures_total"
	metricNoticesSent   = "ws_notices_sent_total"
	metricItemsDropped  = "ws_snapshot_items_dropped_total"
	metricQueueOverflow = "ws_send_queue_overflow_total"
)

// ErrClientTaken is returned when a second session asks for a seated client.
var ErrClientTaken = errors.New("ws: client already connected")

// Source is the world side of the feed. Every method runs on the
// simulation loop goroutine.
type Source interface {
	Snap(clientID int, sink snap.Sink)
	PostSnap()
	DrainNotices() []world.Notice
}

// Session is one websocket connection. ClientID is snap.DemoClient for
// spectators.
type Session struct {
	ID       string
	ClientID int

	conn      *websocket.Conn
	writeMu   deadlock.Mutex
	lastSeq   atomic.Uint64
	closed    atomic.Bool
	out       chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

type outbound struct {
	messageType int
	data        []byte
}

func newSession(clientID int, conn *websocket.Conn) *Session {
	return &Session{
		ID:       ulid.Make().String(),
		ClientID: clientID,
		conn:     conn,
		out:      make(chan outbound, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// WriteMessage serializes writes from the loop and the read goroutine.
func (s *Session) WriteMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) LastCommandSeq() uint64         { return s.lastSeq.Load() }
func (s *Session) StoreLastCommandSeq(seq uint64) { s.lastSeq.Store(seq) }
func (s *Session) spectator() bool                { return s.ClientID == snap.DemoClient }

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.conn.Close()
	})
}

// writeLoop drains the send queue until the session closes or a write
// fails.
func (s *Session) writeLoop(onError func(error)) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.WriteMessage(msg.messageType, msg.data); err != nil {
				onError(err)
				s.close()
				return
			}
		}
	}
}

type HubConfig struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	// MaxItems and MaxBytes bound every frame; zero picks the snap defaults.
	MaxItems int
	MaxBytes int
}

// Hub tracks sessions and streams one snapshot frame per tick to each.
type Hub struct {
	engine    sim.Engine
	source    Source
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	mu       deadlock.Mutex
	sessions map[string]*Session
	seats    map[int]string

	// builder is only touched from Broadcast.
	builder *snap.Builder
	tick    atomic.Uint64
}

func NewHub(engine sim.Engine, source Source, cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		engine:    engine,
		source:    source,
		logger:    logger,
		metrics:   cfg.Metrics,
		publisher: publisher,
		sessions:  make(map[string]*Session),
		seats:     make(map[int]string),
		builder:   snap.NewBuilder(cfg.MaxItems, cfg.MaxBytes),
	}
}

// Tick reports the last tick broadcast.
func (h *Hub) Tick() uint64 { return h.tick.Load() }

// Subscribe registers conn for clientID and queues the join. Spectators
// never join the world.
func (h *Hub) Subscribe(clientID int, conn *websocket.Conn) (*Session, error) {
	session := newSession(clientID, conn)

	h.mu.Lock()
	if !session.spectator() {
		if _, taken := h.seats[clientID]; taken {
			h.mu.Unlock()
			return nil, ErrClientTaken
		}
		h.seats[clientID] = session.ID
	}
	h.sessions[session.ID] = session
	count := len(h.sessions)
	h.mu.Unlock()

	h.storeMetric(metricSessions, uint64(count))
	if !session.spectator() {
		h.engine.Enqueue(sim.Command{ClientID: clientID, Type: sim.CommandJoin, IssuedAt: time.Now(), OriginTick: h.Tick()})
	}
	h.logger.Printf("[ws] session=%s client=%d subscribed", session.ID, clientID)
	return session, nil
}

// Start runs the session's writer. Frames queued between Subscribe and
// Start wait in the send queue, so the caller can write its greeting first.
func (h *Hub) Start(session *Session) {
	go session.writeLoop(func(err error) {
		h.addMetric(metricWriteFailures, 1)
		h.logger.Printf("[ws] failed to send to session=%s: %v", session.ID, err)
	})
}

// Unsubscribe drops the session and queues the leave of its client.
func (h *Hub) Unsubscribe(session *Session, reason string) {
	if session == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.sessions[session.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, session.ID)
	if !session.spectator() && h.seats[session.ClientID] == session.ID {
		delete(h.seats, session.ClientID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	session.close()
	h.storeMetric(metricSessions, uint64(count))
	if !session.spectator() {
		h.engine.Enqueue(sim.Command{
			ClientID: session.ClientID,
			Type:     sim.CommandLeave,
			IssuedAt: time.Now(),
			Leave:    &sim.LeaveCommand{Reason: reason},
		})
	}
	h.logger.Printf("[ws] session=%s client=%d left: %s", session.ID, session.ClientID, reason)
}

// HasClient reports whether a session holds clientID.
func (h *Hub) HasClient(clientID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.seats[clientID]
	return ok
}

// SessionCount reports the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) snapshotSessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast sends every session its snapshot of the finished tick, then
// lets the world drop the tick's events and delivers queued notices. It is
// meant to run as the loop's AfterStep hook.
func (h *Hub) Broadcast(result sim.LoopStepResult) {
	h.tick.Store(result.Tick)
	sessions := h.snapshotSessions()
	byClient := make(map[int]*Session, len(sessions))

	for _, s := range sessions {
		if !s.spectator() {
			byClient[s.ClientID] = s
		}
		h.builder.Reset()
		h.source.Snap(s.ClientID, h.builder)
		if dropped := h.builder.Dropped(); dropped > 0 {
			h.addMetric(metricItemsDropped, uint64(dropped))
			capacity.SnapshotItemsDropped(context.Background(), h.publisher, result.Tick, s.ClientID, capacity.SnapshotItemsDroppedPayload{
				Dropped: dropped,
				Items:   h.builder.Len(),
			}, map[string]any{"session": s.ID})
		}
		data, err := snap.EncodeFrame(h.builder.Frame(result.Tick, s.ClientID))
		if err != nil {
			h.logger.Printf("[ws] session=%s: %v", s.ID, err)
			continue
		}
		if !h.send(s, websocket.BinaryMessage, data) {
			continue
		}
		h.addMetric(metricFramesSent, 1)
		h.addMetric(metricFrameBytes, uint64(len(data)))
	}
	h.source.PostSnap()

	for _, notice := range h.source.DrainNotices() {
		s, ok := byClient[notice.ClientID]
		if !ok {
			continue
		}
		data, err := proto.EncodeNotice(notice)
		if err != nil {
			h.logger.Printf("[ws] notice for client=%d: %v", notice.ClientID, err)
			continue
		}
		if h.send(s, websocket.TextMessage, data) {
			h.addMetric(metricNoticesSent, 1)
		}
	}
}

// send queues data for the session's writer without blocking the loop. A
// full queue closes the connection; the read loop then unsubscribes.
func (h *Hub) send(s *Session, messageType int, data []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.out <- outbound{messageType: messageType, data: data}:
		return true
	default:
		h.addMetric(metricQueueOverflow, 1)
		h.logger.Printf("[ws] session=%s fell %d messages behind, closing", s.ID, sendQueueSize)
		s.close()
		return false
	}
}

func (h *Hub) addMetric(key string, delta uint64) {
	if h.metrics != nil {
		h.metrics.Add(key, delta)
	}
}

func (h *Hub) storeMetric(key string, value uint64) {
	if h.metrics != nil {
		h.metrics.Store(key, value)
	}
}
