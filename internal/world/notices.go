package world

import (
	"strings"

	"toutuo/server/internal/tuning"
)

// NoticeKind tells the transport how to deliver a notice.
type NoticeKind int

const (
	// NoticeChat is a server chat line for one client.
	NoticeChat NoticeKind = iota
	// NoticeTuning carries the tuning a client must predict with.
	NoticeTuning
)

// Notice is a message for a single client produced during a tick. The world
// queues notices; the transport drains them after the tick.
type Notice struct {
	Kind     NoticeKind
	ClientID int
	Message  string
	Zone     int
	Params   tuning.Params
}

func (w *World) chat(clientID int, msg string) {
	w.notices = append(w.notices, Notice{Kind: NoticeChat, ClientID: clientID, Message: msg})
}

// chatLines sends text as one chat line per literal \n separated part.
func (w *World) chatLines(clientID int, text string) {
	for _, line := range strings.Split(text, `\n`) {
		w.chat(clientID, line)
	}
}

// sendTuning queues the tuning of zone with the fake bits applied.
func (w *World) sendTuning(clientID, zone, fake int) {
	w.notices = append(w.notices, Notice{
		Kind:     NoticeTuning,
		ClientID: clientID,
		Zone:     zone,
		Params:   tuning.Effective(w.zones.Get(zone), fake),
	})
}

// DrainNotices returns the queued notices and empties the queue.
func (w *World) DrainNotices() []Notice {
	out := w.notices
	w.notices = nil
	return out
}
