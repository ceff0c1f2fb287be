package hub

import "reflect"

// RelayFile forwards a file payload from an endpoint to every other member
// of the room it is bound to. The payload is not interpreted beyond
// checking that it names a file.
func (h *Hub) RelayFile(ep Endpoint, roomID string, file map[string]interface{}) error {
	if roomID == "" || file == nil {
		return newError(ErrValidation, "room ID and file are required")
	}

	h.mut.Lock()
	defer h.mut.Unlock()

	id := ep.ID()
	b, ok := h.bindings[id]
	if !ok || b.roomID != roomID {
		return newError(ErrNotInRoom, "you're not in this room")
	}
	r, ok := h.rooms[roomID]
	if !ok || !r.has(b.profile.UID) {
		return newError(ErrNotInRoom, "you're not in this room")
	}

	if !truthy(file["data"]) || !truthy(file["name"]) || !truthy(file["size"]) {
		return newError(ErrValidation, "invalid file data")
	}

	ev := newEvent(TypeNewFile, file)
	for _, m := range r.members {
		if m.endpoint.ID() != id {
			m.endpoint.Send(ev)
		}
	}
	return nil
}

// present reports whether an opaque field was supplied at all.
func present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

// truthy reports whether a decoded value is set to something other than
// its zero value.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}
