package snap

import (
	"testing"

	"toutuo/server/internal/geom"
)

func TestBuilderBounds(t *testing.T) {
	b := NewBuilder(2, 16)
	if buf := b.NewItem(ItemSpawn, 0, 8); len(buf) != 8 {
		t.Fatalf("expected an 8 byte buffer, got %d", len(buf))
	}
	if buf := b.NewItem(ItemSpawn, 1, 12); buf != nil {
		t.Fatalf("expected byte budget to refuse the item")
	}
	if buf := b.NewItem(ItemSpawn, 1, 8); buf == nil {
		t.Fatalf("expected the item to fit exactly")
	}
	if buf := b.NewItem(ItemSpawn, 2, 0); buf != nil {
		t.Fatalf("expected item budget to refuse the item")
	}
	if b.Dropped() != 2 {
		t.Fatalf("expected 2 dropped items, got %d", b.Dropped())
	}
	b.Reset()
	if b.Len() != 0 || b.Dropped() != 0 {
		t.Fatalf("expected empty builder after reset")
	}
}

func TestPutAndDecode(t *testing.T) {
	b := NewBuilder(0, 0)
	want := Death{EventCommon: EventCommon{X: -12, Y: 640}, ClientID: 7}
	if !Put(b, ItemDeath, 3, want) {
		t.Fatalf("expected put to succeed")
	}
	items := b.Items()
	if len(items) != 1 || items[0].Kind != ItemDeath || items[0].ID != 3 || len(items[0].Data) != 12 {
		t.Fatalf("unexpected items %+v", items)
	}
	var got Death
	if err := Decode(items[0].Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if Put(nil, ItemDeath, 0, want) {
		t.Fatalf("expected nil sink to refuse")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	b := NewBuilder(0, 0)
	Put(b, ItemSpawn, 1, Spawn{EventCommon{X: 1, Y: 2}})
	frame := b.Frame(42, 5)
	b.Reset()
	Put(b, ItemSpawn, 9, Spawn{EventCommon{X: 100, Y: 200}})

	data, err := EncodeFrame(frame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Tick != 42 || decoded.ClientID != 5 || len(decoded.Items) != 1 {
		t.Fatalf("unexpected frame %+v", decoded)
	}
	var spawn Spawn
	if err := Decode(decoded.Items[0].Data, &spawn); err != nil || spawn.X != 1 || spawn.Y != 2 {
		t.Fatalf("expected frame data detached from the builder, got %+v err=%v", spawn, err)
	}
}

func TestViewClipping(t *testing.T) {
	view := View{Pos: geom.V(0, 0)}
	if view.Clipped(0, geom.V(999, -799)) {
		t.Fatalf("expected point inside default view")
	}
	if !view.Clipped(0, geom.V(1001, 0)) || !view.Clipped(0, geom.V(0, -801)) {
		t.Fatalf("expected points outside default view to clip")
	}
	if view.Clipped(DemoClient, geom.V(5000, 5000)) {
		t.Fatalf("expected demo client to see everything")
	}
	if (View{ShowAll: true}).Clipped(3, geom.V(5000, 5000)) {
		t.Fatalf("expected show-all view to see everything")
	}
}
