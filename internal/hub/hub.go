package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knadh/filedrop/store"
	"go.uber.org/zap"
)

// Types of messages received from endpoints.
const (
	TypeRegisterPresence = "register_presence"
	TypeSendFile         = "send_file"
	TypeSendRequest      = "send_request"
	TypeAcceptRequest    = "accept_request"
	TypeDeclineRequest   = "decline_request"
	TypeJoinRoom         = "join_room"
	TypeLeaveRoom        = "leave_room"
)

// Types of messages sent to endpoints.
const (
	TypeError            = "presence_error"
	TypePresenceSnapshot = "presence_snapshot"
	TypeNewFile          = "new_file"
	TypeReceiveRequest   = "receive_request"
	TypeRequestAccepted  = "request_accepted"
	TypeRequestDeclined  = "request_declined"
	TypePeerConnected    = "peer_connected"
	TypePeerLeft         = "peer_left"
	TypeAck              = "ack"
	TypeRateLimited      = "peer.ratelimited"
)

// Room closure policies.
const (
	// PolicyPair restricts rooms to two members and closes a room as soon
	// as it drops to a single member.
	PolicyPair = "pair"

	// PolicyOpen places no limit on members and keeps a room alive until
	// the last member leaves.
	PolicyOpen = "open"
)

const pairCapacity = 2

// Config represents the app configuration.
type Config struct {
	Address string `koanf:"address"`
	RootURL string `koanf:"root_url"`
	Name    string `koanf:"name"`

	RoomPolicy        string        `koanf:"room_policy"`
	MaxRooms          int           `koanf:"max_rooms"`
	MaxMessageLen     int           `koanf:"max_message_length"`
	MaxMessageQueue   int           `koanf:"max_message_queue"`
	WSTimeout         time.Duration `koanf:"websocket_timeout"`
	RateLimitInterval time.Duration `koanf:"rate_limit_interval"`
	RateLimitMessages int           `koanf:"rate_limit_messages"`
	LastSeenTTL       time.Duration `koanf:"last_seen_ttl"`

	AllowedOrigins    []string `koanf:"allowed_origins"`
	AdminPasswordHash string   `koanf:"admin_password_hash"`
}

// Endpoint is a single live connection that events can be delivered to.
// Send must never block.
type Endpoint interface {
	ID() string
	Send(Event)
}

// Hub holds the presence registry and the room membership table. Every
// operation runs to completion under a single lock, so the two registries
// are always mutated together.
type Hub struct {
	Store store.Store

	cfg *Config
	mut sync.Mutex
	log *zap.SugaredLogger

	// All connected endpoints, presence or not.
	endpoints map[string]Endpoint

	// uid => presence entry and its reverse index endpoint ID => uid.
	presence   map[string]*presenceEntry
	byEndpoint map[string]string
	seq        uint64

	rooms    map[string]*Room
	bindings map[string]binding
}

// Stats represents a point-in-time count of the hub's registries.
type Stats struct {
	Endpoints int `json:"endpoints"`
	Users     int `json:"users"`
	Rooms     int `json:"rooms"`
	Bound     int `json:"bound"`
}

// NewHub returns a new instance of Hub.
func NewHub(cfg *Config, s store.Store, l *zap.SugaredLogger) *Hub {
	if cfg.RoomPolicy == "" {
		cfg.RoomPolicy = PolicyPair
	}
	return &Hub{
		Store: s,

		cfg:        cfg,
		log:        l,
		endpoints:  make(map[string]Endpoint),
		presence:   make(map[string]*presenceEntry),
		byEndpoint: make(map[string]string),
		rooms:      make(map[string]*Room),
		bindings:   make(map[string]binding),
	}
}

// AddConn wraps a websocket connection in an endpoint, connects it to
// the hub and starts its reader and writer.
func (h *Hub) AddConn(ws *websocket.Conn, c Codec) *Conn {
	conn := newConn(ws, c, h)
	h.Connect(conn)
	go conn.RunWriter()
	go conn.RunListener()
	return conn
}

// Connect makes an endpoint known to the hub so that it receives
// presence snapshots.
func (h *Hub) Connect(ep Endpoint) {
	h.mut.Lock()
	h.endpoints[ep.ID()] = ep
	h.mut.Unlock()
}

// Disconnect reconciles the registries after an endpoint has gone away.
// It returns the presence profile that was removed, if any. Disconnect
// never panics; it is called from teardown paths that have nobody to
// report to.
func (h *Hub) Disconnect(ep Endpoint) (p Profile, ok bool) {
	h.mut.Lock()
	defer h.mut.Unlock()
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("recovered from panic disconnecting %s: %v", ep.ID(), r)
		}
	}()

	id := ep.ID()
	delete(h.endpoints, id)

	// Presence is matched by endpoint and never by identity.
	entry, found := h.removeByEndpoint(id)
	h.broadcastSnapshot()

	if b, bound := h.bindings[id]; bound {
		delete(h.bindings, id)
		h.removeMember(b.roomID, b.profile)
	} else if found {
		// The endpoint never completed a join. An identity occupies at
		// most one room, so the first membership is the only one.
		for roomID, r := range h.rooms {
			if _, ok := r.members[entry.UID]; ok {
				h.removeMember(roomID, entry.Profile)
				break
			}
		}
	}

	if found {
		h.log.Infof("%s@%s disconnected", entry.Name, entry.UID)
		return entry.Profile, true
	}
	return Profile{}, false
}

// MarkSeen records the time an identity was last connected in the store.
func (h *Hub) MarkSeen(uid string) {
	if h.Store == nil || uid == "" {
		return
	}
	t := time.Now().UTC().Format(time.RFC3339)
	if err := h.Store.Set(SeenKey(uid), []byte(t), h.cfg.LastSeenTTL); err != nil {
		h.log.Errorf("error recording last seen for %s: %v", uid, err)
	}
}

// SeenKey returns the store key holding an identity's last-seen time.
func SeenKey(uid string) string {
	return "seen:" + uid
}

// Stats returns the current size of the registries.
func (h *Hub) Stats() Stats {
	h.mut.Lock()
	defer h.mut.Unlock()
	return Stats{
		Endpoints: len(h.endpoints),
		Users:     len(h.presence),
		Rooms:     len(h.rooms),
		Bound:     len(h.bindings),
	}
}

// broadcastAll sends an event to every connected endpoint.
func (h *Hub) broadcastAll(e Event) {
	for _, ep := range h.endpoints {
		ep.Send(e)
	}
}
