package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/net/proto"
	"toutuo/server/internal/sim"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/telemetry"
	"toutuo/server/internal/world"
	"toutuo/server/logging"
	"toutuo/server/logging/capacity"
	loggingSinks "toutuo/server/logging/sinks"
)

type feed struct {
	world *world.World
	loop  *sim.Loop
	hub   *Hub
	srv   *httptest.Server
}

func newFeed(t *testing.T) *feed {
	t.Helper()
	m := collision.MustParseASCII(
		"########",
		"#..S...#",
		"#......#",
		"#......#",
		"########",
	)
	w, err := world.New(world.DefaultConfig(), m, world.Deps{})
	if err != nil {
		t.Fatalf("world.New returned error: %v", err)
	}
	loop, err := sim.NewEngine(w)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	hub := NewHub(loop, w, HubConfig{})
	handler := NewHandler(hub, HandlerConfig{TickSpeed: w.Config().TickSpeed})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return &feed{world: w, loop: loop, hub: hub, srv: srv}
}

// step runs one tick and broadcasts it the way the loop's AfterStep does.
func (f *feed) step() {
	result := f.loop.Advance(sim.LoopTickContext{Tick: f.world.Tick64() + 1})
	f.hub.Broadcast(result)
}

func websocketURL(t *testing.T, baseURL, client string) string {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	parsed.RawQuery = url.Values{"client": []string{client}}.Encode()
	return parsed.String()
}

func dial(t *testing.T, f *feed, client string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, f.srv.URL, client), nil)
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("expected text message, got %d", kind)
	}
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to decode %s: %v", payload, err)
	}
	return msg
}

func readFrame(t *testing.T, conn *websocket.Conn) snap.Frame {
	t.Helper()
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d: %s", kind, payload)
	}
	frame, err := snap.DecodeFrame(payload)
	if err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return frame
}

func countKind(frame snap.Frame, kind snap.ItemKind) int {
	n := 0
	for _, item := range frame.Items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

func TestHandleRejectsBadClientParameter(t *testing.T) {
	f := newFeed(t)
	for _, raw := range []string{"", "x", "-3", "64"} {
		resp, err := http.Get(f.srv.URL + "/ws?client=" + url.QueryEscape(raw))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("client=%q: expected 400, got %d", raw, resp.StatusCode)
		}
	}
}

func TestSessionJoinsAndStreamsFrames(t *testing.T) {
	f := newFeed(t)
	conn := dial(t, f, "0")

	welcome := readJSON(t, conn)
	if welcome["type"] != proto.TypeWelcome || welcome["clientId"] != float64(0) {
		t.Fatalf("unexpected welcome: %v", welcome)
	}
	if id, _ := welcome["sessionId"].(string); len(id) != 26 {
		t.Fatalf("expected a ulid session id, got %v", welcome["sessionId"])
	}

	f.step()
	first := readFrame(t, conn)
	if first.Tick != 1 || first.ClientID != 0 {
		t.Fatalf("expected frame for tick 1 client 0, got tick=%d client=%d", first.Tick, first.ClientID)
	}
	if f.world.Player(0) == nil {
		t.Fatalf("expected the subscription to seat client 0")
	}

	f.step()
	second := readFrame(t, conn)
	if countKind(second, snap.ItemCharacter) != 1 {
		t.Fatalf("expected the spawned character in the frame, got %+v", second.Items)
	}
	if countKind(second, snap.ItemSpawn) != 1 {
		t.Fatalf("expected the spawn event in the frame, got %+v", second.Items)
	}

	f.step()
	third := readFrame(t, conn)
	if countKind(third, snap.ItemSpawn) != 0 {
		t.Fatalf("expected events to be cleared after the snap, got %+v", third.Items)
	}
}

func TestSecondSessionForSameClientIsRefused(t *testing.T) {
	f := newFeed(t)
	first := dial(t, f, "3")
	readJSON(t, first)

	second := dial(t, f, "3")
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
	if f.hub.SessionCount() != 1 {
		t.Fatalf("expected one session, got %d", f.hub.SessionCount())
	}
}

func TestInputIsAckedAndDuplicatesAreNotRequeued(t *testing.T) {
	f := newFeed(t)
	conn := dial(t, f, "1")
	readJSON(t, conn)

	send := func(msg string) map[string]any {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		return readJSON(t, conn)
	}

	ack := send(`{"type":"input","seq":1,"input":{"direction":1}}`)
	if ack["type"] != "commandAck" || ack["seq"] != float64(1) {
		t.Fatalf("expected ack for seq 1, got %v", ack)
	}
	pending := f.loop.Pending()

	dup := send(`{"type":"input","seq":1,"input":{"direction":1}}`)
	if dup["type"] != "commandAck" {
		t.Fatalf("expected duplicate to be acked, got %v", dup)
	}
	if f.loop.Pending() != pending {
		t.Fatalf("expected duplicate not to be queued, pending %d -> %d", pending, f.loop.Pending())
	}

	reject := send(`{"type":"dance","seq":2}`)
	if reject["type"] != "commandReject" || reject["reason"] != "invalid_command" {
		t.Fatalf("expected invalid_command reject, got %v", reject)
	}

	beat := send(`{"type":"heartbeat","sentAt":77}`)
	if beat["type"] != "heartbeat" || beat["clientTime"] != float64(77) {
		t.Fatalf("unexpected heartbeat reply: %v", beat)
	}
}

func TestSpectatorSeesEverythingButCannotAct(t *testing.T) {
	f := newFeed(t)
	player := dial(t, f, "0")
	readJSON(t, player)
	demo := dial(t, f, "demo")
	welcome := readJSON(t, demo)
	if welcome["clientId"] != float64(snap.DemoClient) {
		t.Fatalf("expected demo client id, got %v", welcome["clientId"])
	}

	f.step()
	f.step()
	readFrame(t, player)
	readFrame(t, player)
	readFrame(t, demo)
	frame := readFrame(t, demo)
	if frame.ClientID != snap.DemoClient || countKind(frame, snap.ItemCharacter) != 1 {
		t.Fatalf("expected demo frame with one character, got %+v", frame)
	}

	if err := demo.WriteMessage(websocket.TextMessage, []byte(`{"type":"pause","seq":1,"on":true}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reject := readJSON(t, demo)
	if reject["reason"] != "spectator" {
		t.Fatalf("expected spectator reject, got %v", reject)
	}
}

func TestDisconnectLeavesTheWorld(t *testing.T) {
	f := newFeed(t)
	conn := dial(t, f, "2")
	readJSON(t, conn)
	f.step()
	if f.world.Player(2) == nil {
		t.Fatalf("expected client 2 to be seated")
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the session to be dropped after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.step()
	if f.world.Player(2) != nil {
		t.Fatalf("expected client 2 to leave after disconnecting")
	}
	if f.hub.HasClient(2) {
		t.Fatalf("expected the seat to be free again")
	}
}

type stubSource struct {
	notices  []world.Notice
	postSnap int
	items    int
}

func (s *stubSource) Snap(_ int, sink snap.Sink) {
	for i := 0; i < s.items; i++ {
		sink.NewItem(snap.ItemSpawn, i, 4)
	}
}

func (s *stubSource) PostSnap() { s.postSnap++ }
func (s *stubSource) DrainNotices() []world.Notice {
	out := s.notices
	s.notices = nil
	return out
}

func TestBroadcastRoutesNoticesToTheirClient(t *testing.T) {
	f := newFeed(t)
	source := &stubSource{}
	f.hub.source = source

	target := dial(t, f, "5")
	readJSON(t, target)
	other := dial(t, f, "6")
	readJSON(t, other)

	source.notices = []world.Notice{
		{Kind: world.NoticeChat, ClientID: 5, Message: "welcome"},
		{Kind: world.NoticeChat, ClientID: 40, Message: "nobody"},
	}
	f.hub.Broadcast(sim.LoopStepResult{Tick: 9})

	if frame := readFrame(t, target); frame.Tick != 9 {
		t.Fatalf("expected frame for tick 9, got %d", frame.Tick)
	}
	chat := readJSON(t, target)
	if chat["type"] != proto.TypeChat || chat["message"] != "welcome" {
		t.Fatalf("unexpected chat: %v", chat)
	}
	readFrame(t, other)
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, payload, err := other.ReadMessage(); err == nil {
		t.Fatalf("expected no notice for the other client, got %s", payload)
	}
	if source.postSnap != 1 {
		t.Fatalf("expected PostSnap once per broadcast, got %d", source.postSnap)
	}
}

func TestBroadcastReportsTruncatedFrames(t *testing.T) {
	f := newFeed(t)
	memory := loggingSinks.NewMemorySink()
	source := &stubSource{items: 5}
	f.hub = NewHub(f.loop, source, HubConfig{Publisher: memory, MaxItems: 3})

	handler := NewHandler(f.hub, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	f.srv = srv

	conn := dial(t, f, "demo")
	readJSON(t, conn)
	f.hub.Broadcast(sim.LoopStepResult{Tick: 4})

	if frame := readFrame(t, conn); len(frame.Items) != 3 {
		t.Fatalf("expected 3 items in the frame, got %d", len(frame.Items))
	}
	events := memory.OfType(capacity.EventSnapshotItemsDropped)
	if len(events) != 1 {
		t.Fatalf("expected one drop event, got %d", len(events))
	}
	payload, ok := events[0].Payload.(capacity.SnapshotItemsDroppedPayload)
	if !ok || payload.Dropped != 2 || payload.Items != 3 {
		t.Fatalf("unexpected payload: %#v", events[0].Payload)
	}
}

func TestStalledSessionIsClosedWithoutBlockingBroadcast(t *testing.T) {
	f := newFeed(t)
	metrics := logging.NewMetrics()
	hub := NewHub(f.loop, &stubSource{items: 1}, HubConfig{Metrics: telemetry.WrapMetrics(metrics)})

	subscribed := make(chan *Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// The writer is never started, so nothing drains the queue.
		session, err := hub.Subscribe(snap.DemoClient, conn)
		if err != nil {
			conn.Close()
			return
		}
		subscribed <- session
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	dial(t, &feed{srv: srv}, "demo")

	var session *Session
	select {
	case session = <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the session to subscribe")
	}

	start := time.Now()
	for tick := uint64(1); tick <= sendQueueSize; tick++ {
		hub.Broadcast(sim.LoopStepResult{Tick: tick})
	}
	if session.closed.Load() {
		t.Fatalf("expected the session to survive a full queue")
	}
	hub.Broadcast(sim.LoopStepResult{Tick: sendQueueSize + 1})
	if elapsed := time.Since(start); elapsed > writeWait {
		t.Fatalf("expected broadcasts not to wait on the socket, took %v", elapsed)
	}
	if !session.closed.Load() {
		t.Fatalf("expected the session to be closed once its queue overflowed")
	}
	if got := metrics.Value(metricQueueOverflow); got != 1 {
		t.Fatalf("expected one overflow, got %d", got)
	}
	if got := metrics.Value(metricFramesSent); got != sendQueueSize {
		t.Fatalf("expected %d queued frames, got %d", sendQueueSize, got)
	}
}
