package hub

import "time"

// Event is a single outbound message.
type Event struct {
	Type      string      `json:"type" msgpack:"type"`
	Timestamp time.Time   `json:"timestamp" msgpack:"timestamp"`
	Data      interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Profile is the public identity of a user as supplied by its client.
type Profile struct {
	UID   string `json:"uid" msgpack:"uid"`
	Name  string `json:"name" msgpack:"name"`
	Photo string `json:"photo,omitempty" msgpack:"photo,omitempty"`
}

// PresenceEntry is a profile bound to the endpoint it is connected on.
type PresenceEntry struct {
	Profile
	EndpointID string `json:"endpoint_id" msgpack:"endpoint_id"`
}

type msgRequest struct {
	From            interface{} `json:"from" msgpack:"from"`
	RoomID          string      `json:"room_id,omitempty" msgpack:"room_id,omitempty"`
	SenderProfile   interface{} `json:"sender_profile,omitempty" msgpack:"sender_profile,omitempty"`
	ReceiverProfile interface{} `json:"receiver_profile,omitempty" msgpack:"receiver_profile,omitempty"`
}

type msgAck struct {
	ID     string `json:"id" msgpack:"id"`
	OK     bool   `json:"ok" msgpack:"ok"`
	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// Inbound payloads.
type reqJoin struct {
	RoomID string  `json:"room_id" msgpack:"room_id"`
	User   Profile `json:"user" msgpack:"user"`
}

type reqFile struct {
	RoomID string                 `json:"room_id" msgpack:"room_id"`
	File   map[string]interface{} `json:"file" msgpack:"file"`
}

type reqRequest struct {
	To              string      `json:"to" msgpack:"to"`
	From            interface{} `json:"from" msgpack:"from"`
	RoomID          string      `json:"room_id" msgpack:"room_id"`
	SenderProfile   interface{} `json:"sender_profile" msgpack:"sender_profile"`
	ReceiverProfile interface{} `json:"receiver_profile" msgpack:"receiver_profile"`
}

func newEvent(typ string, data interface{}) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}
