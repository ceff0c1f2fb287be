package hub

import "sort"

type presenceEntry struct {
	Profile
	endpoint Endpoint

	// Order of first registration. Re-registering keeps it.
	seq uint64
}

// Register records a user's presence on an endpoint and broadcasts the
// full presence listing to every connected endpoint. An existing entry
// for the same identity is replaced; the latest connection wins.
func (h *Hub) Register(ep Endpoint, p Profile) error {
	if p.UID == "" || p.Name == "" {
		return newError(ErrValidation, "user ID and name are required")
	}

	h.mut.Lock()
	defer h.mut.Unlock()

	id := ep.ID()

	// An endpoint carries one identity.
	if uid, ok := h.byEndpoint[id]; ok && uid != p.UID {
		delete(h.presence, uid)
	}

	seq := h.seq + 1
	if old, ok := h.presence[p.UID]; ok {
		seq = old.seq
		if oldID := old.endpoint.ID(); oldID != id {
			delete(h.byEndpoint, oldID)
		}
	} else {
		h.seq = seq
	}

	h.presence[p.UID] = &presenceEntry{Profile: p, endpoint: ep, seq: seq}
	h.byEndpoint[id] = p.UID
	h.endpoints[id] = ep

	h.log.Infof("registered %s@%s on %s", p.Name, p.UID, id)
	h.broadcastSnapshot()
	return nil
}

// Lookup returns the endpoint an identity is present on.
func (h *Hub) Lookup(uid string) (Endpoint, bool) {
	h.mut.Lock()
	defer h.mut.Unlock()
	return h.lookup(uid)
}

// Snapshot returns the current presence listing.
func (h *Hub) Snapshot() []PresenceEntry {
	h.mut.Lock()
	defer h.mut.Unlock()
	return h.snapshot()
}

func (h *Hub) lookup(uid string) (Endpoint, bool) {
	e, ok := h.presence[uid]
	if !ok {
		return nil, false
	}
	return e.endpoint, true
}

// removeByEndpoint removes the presence entry owned by an endpoint.
func (h *Hub) removeByEndpoint(id string) (*presenceEntry, bool) {
	uid, ok := h.byEndpoint[id]
	if !ok {
		return nil, false
	}
	delete(h.byEndpoint, id)

	e, ok := h.presence[uid]
	if !ok || e.endpoint.ID() != id {
		return nil, false
	}
	delete(h.presence, uid)
	return e, true
}

func (h *Hub) snapshot() []PresenceEntry {
	entries := make([]*presenceEntry, 0, len(h.presence))
	for _, e := range h.presence {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	out := make([]PresenceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PresenceEntry{Profile: e.Profile, EndpointID: e.endpoint.ID()})
	}
	return out
}

func (h *Hub) broadcastSnapshot() {
	h.broadcastAll(newEvent(TypePresenceSnapshot, h.snapshot()))
}
