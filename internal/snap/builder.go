package snap

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot limits.
const (
	MaxItems = 1024
	MaxBytes = 64 * 1024
)

// Item is one published snapshot item.
type Item struct {
	Kind ItemKind `msgpack:"k" json:"kind"`
	ID   int      `msgpack:"i" json:"id"`
	Data []byte   `msgpack:"d" json:"data"`
}

type itemRef struct {
	kind   ItemKind
	id     int
	offset int
	size   int
}

// Builder is a bounded Sink. Buffers it returns stay valid until Reset.
type Builder struct {
	maxItems int
	data     []byte
	items    []itemRef
	dropped  int
}

// NewBuilder returns a builder holding at most maxItems items and maxBytes
// payload bytes. Non-positive limits fall back to MaxItems and MaxBytes.
func NewBuilder(maxItems, maxBytes int) *Builder {
	if maxItems <= 0 {
		maxItems = MaxItems
	}
	if maxBytes <= 0 {
		maxBytes = MaxBytes
	}
	return &Builder{
		maxItems: maxItems,
		data:     make([]byte, 0, maxBytes),
		items:    make([]itemRef, 0, maxItems),
	}
}

func (b *Builder) NewItem(kind ItemKind, id, size int) []byte {
	if b == nil || size < 0 {
		return nil
	}
	if len(b.items) >= b.maxItems || len(b.data)+size > cap(b.data) {
		b.dropped++
		return nil
	}
	offset := len(b.data)
	b.data = b.data[:offset+size]
	buf := b.data[offset : offset+size : offset+size]
	clear(buf)
	b.items = append(b.items, itemRef{kind: kind, id: id, offset: offset, size: size})
	return buf
}

// Dropped counts items refused since the last Reset.
func (b *Builder) Dropped() int {
	if b == nil {
		return 0
	}
	return b.dropped
}

func (b *Builder) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items lists the items in insertion order. Data aliases the builder.
func (b *Builder) Items() []Item {
	if b == nil {
		return nil
	}
	out := make([]Item, len(b.items))
	for i, ref := range b.items {
		out[i] = Item{Kind: ref.kind, ID: ref.id, Data: b.data[ref.offset : ref.offset+ref.size]}
	}
	return out
}

func (b *Builder) Reset() {
	if b == nil {
		return
	}
	b.data = b.data[:0]
	b.items = b.items[:0]
	b.dropped = 0
}

// Frame is one client's snapshot for one tick as streamed by the feed.
type Frame struct {
	Tick     uint64 `msgpack:"t" json:"tick"`
	ClientID int    `msgpack:"c" json:"clientId"`
	Items    []Item `msgpack:"items" json:"items"`
}

// Frame copies the built items into a frame that outlives the builder.
func (b *Builder) Frame(tick uint64, clientID int) Frame {
	items := b.Items()
	for i := range items {
		items[i].Data = append([]byte(nil), items[i].Data...)
	}
	return Frame{Tick: tick, ClientID: clientID, Items: items}
}

func EncodeFrame(frame Frame) ([]byte, error) {
	data, err := msgpack.Marshal(&frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}
