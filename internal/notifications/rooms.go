package notifications

// JoinRoom subscribes the client to a swap room. Callers check participation.
func (h *Hub) JoinRoom(client *Client, swapID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[swapID] == nil {
		h.rooms[swapID] = make(map[*Client]struct{})
	}
	h.rooms[swapID][client] = struct{}{}

	if h.clientRooms[client] == nil {
		h.clientRooms[client] = make(map[uint]struct{})
	}
	h.clientRooms[client][swapID] = struct{}{}
}

// LeaveRoom unsubscribes the client from a swap room.
func (h *Hub) LeaveRoom(client *Client, swapID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, swapID)
}

func (h *Hub) leaveLocked(client *Client, swapID uint) {
	if members, ok := h.rooms[swapID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, swapID)
		}
	}
	if joined, ok := h.clientRooms[client]; ok {
		delete(joined, swapID)
	}
}

// InRoom reports whether the client joined the swap room.
func (h *Hub) InRoom(client *Client, swapID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[swapID][client]
	return ok
}

// RoomUserIDs lists the distinct users currently in a swap room.
func (h *Hub) RoomUserIDs(swapID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(h.rooms[swapID]))
	for c := range h.rooms[swapID] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	return ids
}

// BroadcastRoom sends data to every member of the room except the given client.
func (h *Hub) BroadcastRoom(swapID uint, data []byte, except *Client) int {
	return h.broadcast(swapID, data, func(c *Client) bool { return c == except })
}

// BroadcastRoomExceptUser sends data to the room, skipping every socket of
// userID. A zero userID skips nobody.
func (h *Hub) BroadcastRoomExceptUser(swapID uint, data []byte, userID uint) int {
	return h.broadcast(swapID, data, func(c *Client) bool { return userID != 0 && c.UserID == userID })
}

func (h *Hub) broadcast(swapID uint, data []byte, skip func(*Client) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[swapID] {
		if skip(c) {
			continue
		}
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}
