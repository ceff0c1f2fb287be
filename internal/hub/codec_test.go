package hub

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "json": "json", "msgpack": "msgpack"} {
		c, err := CodecByName(name)
		if err != nil {
			t.Fatalf("CodecByName(%q): %v", name, err)
		}
		if c.Name() != want {
			t.Fatalf("CodecByName(%q) = %s, want %s", name, c.Name(), want)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestJSONEnvelope(t *testing.T) {
	var c JSON

	m, err := c.DecodeEnvelope([]byte(`{"type":"join_room","ack":"7","data":{"room_id":"R","user":{"uid":"a","name":"Alice"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != TypeJoinRoom || m.Ack != "7" {
		t.Fatalf("unexpected envelope: %+v", m)
	}

	var req reqJoin
	if err := c.Decode(m.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.RoomID != "R" || req.User.Name != "Alice" {
		t.Fatalf("unexpected payload: %+v", req)
	}

	m, err = c.DecodeEnvelope([]byte(`{"type":"leave_room","data":null}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Data != nil {
		t.Fatalf("null data not cleared: %s", m.Data)
	}
}

func TestMsgpackEnvelope(t *testing.T) {
	var c Msgpack

	b, err := msgpack.Marshal(map[string]interface{}{
		"type": TypeSendFile,
		"data": map[string]interface{}{
			"room_id": "R",
			"file":    map[string]interface{}{"name": "a.txt", "size": 3, "data": []byte("abc")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	m, err := c.DecodeEnvelope(b)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != TypeSendFile {
		t.Fatalf("unexpected type: %s", m.Type)
	}

	var req reqFile
	if err := c.Decode(m.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.RoomID != "R" || req.File["name"] != "a.txt" {
		t.Fatalf("unexpected payload: %+v", req)
	}
	if !truthy(req.File["size"]) || !truthy(req.File["data"]) {
		t.Fatal("decoded file fields should be truthy")
	}

	// Outbound events decode on the other side.
	out, err := c.Encode(newEvent(TypePeerLeft, prof("A")))
	if err != nil {
		t.Fatal(err)
	}
	var ev struct {
		Type string  `msgpack:"type"`
		Data Profile `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(out, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypePeerLeft || ev.Data.UID != "A" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
