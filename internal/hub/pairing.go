package hub

// SendRequest forwards a pairing request to the target identity. Requests
// are not stored; the target receives it once if it is online.
func (h *Hub) SendRequest(to string, from interface{}, roomID string) error {
	if to == "" || !present(from) || roomID == "" {
		return newError(ErrValidation, "recipient, sender and room ID are required")
	}
	return h.forward(to, newEvent(TypeReceiveRequest, msgRequest{From: from, RoomID: roomID}))
}

// AcceptRequest forwards the acceptance of a pairing request to the
// identity that sent it.
func (h *Hub) AcceptRequest(to string, from interface{}, roomID string, sender, receiver interface{}) error {
	if to == "" || !present(from) || roomID == "" || !present(sender) || !present(receiver) {
		return newError(ErrValidation, "all fields are required to accept a request")
	}
	return h.forward(to, newEvent(TypeRequestAccepted, msgRequest{
		From:            from,
		RoomID:          roomID,
		SenderProfile:   sender,
		ReceiverProfile: receiver,
	}))
}

// DeclineRequest forwards the rejection of a pairing request.
func (h *Hub) DeclineRequest(to string, from interface{}) error {
	if to == "" || !present(from) {
		return newError(ErrValidation, "recipient and sender are required")
	}
	return h.forward(to, newEvent(TypeRequestDeclined, msgRequest{From: from}))
}

// forward unicasts an event to an identity's endpoint.
func (h *Hub) forward(to string, e Event) error {
	h.mut.Lock()
	defer h.mut.Unlock()

	ep, ok := h.lookup(to)
	if !ok {
		return newError(ErrOffline, "recipient is offline")
	}
	ep.Send(e)
	return nil
}
