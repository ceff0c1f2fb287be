package hub

// Room is a set of identities sharing a pairing session.
type Room struct {
	ID      string
	members map[string]member
}

type member struct {
	profile  Profile
	endpoint Endpoint
}

// binding records the room and identity an endpoint last joined with.
type binding struct {
	roomID  string
	profile Profile
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]member, pairCapacity),
	}
}

// Join adds an identity to a room on behalf of an endpoint. The room is
// created if it doesn't exist. Existing occupants are notified of the
// joiner, and the joiner is sent the profile of every existing occupant.
// An endpoint that is bound to another room leaves it first.
func (h *Hub) Join(ep Endpoint, roomID string, p Profile) ([]Profile, error) {
	if roomID == "" || p.UID == "" || p.Name == "" {
		return nil, newError(ErrValidation, "invalid room join request")
	}

	h.mut.Lock()
	defer h.mut.Unlock()

	// Check limits before touching anything.
	room, exists := h.rooms[roomID]
	if exists {
		_, isMember := room.members[p.UID]
		if h.cfg.RoomPolicy == PolicyPair && !isMember && len(room.members) >= pairCapacity {
			return nil, newError(ErrCapacity, "room is full")
		}
	} else if h.cfg.MaxRooms > 0 && len(h.rooms) >= h.cfg.MaxRooms {
		return nil, newError(ErrCapacity, "too many active rooms")
	}

	id := ep.ID()
	if b, ok := h.bindings[id]; ok && (b.roomID != roomID || b.profile.UID != p.UID) {
		delete(h.bindings, id)
		h.removeMember(b.roomID, b.profile)
	}

	// Leaving the previous room may have closed this one.
	room, exists = h.rooms[roomID]
	if !exists {
		room = newRoom(roomID)
		h.rooms[roomID] = room
	}

	// The identity rejoined from a new connection. Drop the stale binding.
	if m, ok := room.members[p.UID]; ok && m.endpoint.ID() != id {
		delete(h.bindings, m.endpoint.ID())
	}

	others := room.others(p.UID)
	room.members[p.UID] = member{profile: p, endpoint: ep}
	h.bindings[id] = binding{roomID: roomID, profile: p}

	ev := newEvent(TypePeerConnected, p)
	for _, m := range others {
		m.endpoint.Send(ev)
	}

	// The broadcast above only informs existing members, so tell the
	// joiner who is already here.
	peers := make([]Profile, 0, len(others))
	for _, m := range others {
		prof := m.profile
		if e, ok := h.presence[prof.UID]; ok {
			prof = e.Profile
		}
		ep.Send(newEvent(TypePeerConnected, prof))
		peers = append(peers, prof)
	}

	h.log.Infof("%s@%s joined %s", p.Name, p.UID, roomID)
	return peers, nil
}

// Leave removes the identity an endpoint is bound to from its room and
// applies the room closure policy.
func (h *Hub) Leave(ep Endpoint) error {
	h.mut.Lock()
	defer h.mut.Unlock()

	id := ep.ID()
	b, ok := h.bindings[id]
	if !ok {
		return newError(ErrNotMember, "not in a room")
	}
	delete(h.bindings, id)

	if !h.removeMember(b.roomID, b.profile) {
		return newError(ErrNotMember, "not a member of this room")
	}
	h.log.Infof("%s@%s left %s", b.profile.Name, b.profile.UID, b.roomID)
	return nil
}

// GetRoom returns the identities in a room.
func (h *Hub) GetRoom(id string) ([]string, bool) {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.rooms[id]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(r.members))
	for uid := range r.members {
		out = append(out, uid)
	}
	return out, true
}

// removeMember removes an identity from a room and applies the closure
// policy. A room is deleted once it is empty. Under the pair policy it is
// also deleted when a single member remains, who is told the session is
// over. Otherwise the remaining members are notified and the room stays.
func (h *Hub) removeMember(roomID string, departed Profile) bool {
	r, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	m, ok := r.members[departed.UID]
	if !ok {
		return false
	}
	delete(r.members, departed.UID)
	if b, ok := h.bindings[m.endpoint.ID()]; ok && b.roomID == roomID {
		delete(h.bindings, m.endpoint.ID())
	}

	ev := newEvent(TypePeerLeft, departed)
	switch {
	case len(r.members) == 0:
		delete(h.rooms, roomID)
		h.log.Infof("room %s closed: empty", roomID)

	case h.cfg.RoomPolicy == PolicyPair && len(r.members) == 1:
		for _, rem := range r.members {
			rem.endpoint.Send(ev)
			if b, ok := h.bindings[rem.endpoint.ID()]; ok && b.roomID == roomID {
				delete(h.bindings, rem.endpoint.ID())
			}
		}
		delete(h.rooms, roomID)
		h.log.Infof("room %s closed: %s@%s left", roomID, departed.Name, departed.UID)

	default:
		for _, rem := range r.members {
			rem.endpoint.Send(ev)
		}
	}
	return true
}

// others returns every member except uid.
func (r *Room) others(uid string) []member {
	out := make([]member, 0, len(r.members))
	for id, m := range r.members {
		if id != uid {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) has(uid string) bool {
	_, ok := r.members[uid]
	return ok
}
