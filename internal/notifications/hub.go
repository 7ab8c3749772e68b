// Package notifications delivers realtime events to websocket clients and
// relays them between instances over Redis pub/sub.
package notifications

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// Hub maps users to their sockets and swap rooms to their members.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int

	// swapID -> clients that joined the room
	rooms map[uint]map[*Client]struct{}
	// client -> swap rooms it joined
	clientRooms map[*Client]map[uint]struct{}

	presence *Presence
	shutdown chan struct{}
	once     sync.Once
}

// NewHub creates a hub. A nil Redis client keeps presence process-local.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:       make(map[uint]map[*Client]struct{}),
		rooms:       make(map[uint]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[uint]struct{}),
		presence:    NewPresence(rdb),
		shutdown:    make(chan struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Presence exposes the tracker backing IsOnline.
func (h *Hub) Presence() *Presence { return h.presence }

// SetPresenceCallbacks registers online and offline transition hooks.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	h.presence.SetCallbacks(onOnline, onOffline)
}

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		h.presence.Heartbeat(context.Background(), uid)
	}
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Connect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes the client from the hub and every room it joined.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	for swapID := range h.clientRooms[client] {
		h.leaveLocked(client, swapID)
	}
	delete(h.clientRooms, client)
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Disconnect(context.Background(), client.UserID)
	}
}

// SendToUser delivers data to every local socket of userID and reports how
// many accepted it.
func (h *Hub) SendToUser(userID uint, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.conns[userID] {
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}

// IsOnline reports whether the user has a socket on any instance.
func (h *Hub) IsOnline(ctx context.Context, userID uint) bool {
	return h.presence.IsOnline(ctx, userID)
}

// LocalConnections returns the number of sockets registered for userID here.
func (h *Hub) LocalConnections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StartWiring subscribes to the user and room channels and forwards each
// payload to the matching local sockets.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		switch {
		case strings.HasPrefix(channel, userChannelPrefix):
			id, err := strconv.ParseUint(strings.TrimPrefix(channel, userChannelPrefix), 10, 64)
			if err != nil {
				middleware.Logger.Warn("invalid notification channel", "channel", channel)
				return
			}
			h.SendToUser(uint(id), []byte(payload))
		case strings.HasPrefix(channel, roomChannelPrefix):
			id, except, err := parseRoomChannel(channel)
			if err != nil {
				middleware.Logger.Warn("invalid room channel", "channel", channel)
				return
			}
			h.BroadcastRoomExceptUser(id, []byte(payload), except)
		default:
			middleware.Logger.Warn("unexpected notification channel", "channel", channel)
		}
	})
}

// Shutdown closes every socket with a going-away frame.
func (h *Hub) Shutdown(_ context.Context) error {
	h.once.Do(func() {
		close(h.shutdown)
		h.presence.Stop()

		h.mu.Lock()
		for userID, userConns := range h.conns {
			for client := range userConns {
				if client.Conn == nil {
					continue
				}
				if err := client.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
					middleware.Logger.Debug("failed to write close frame", "user_id", userID, "error", err)
				}
				_ = client.Conn.Close()
			}
		}
		h.conns = make(map[uint]map[*Client]struct{})
		h.rooms = make(map[uint]map[*Client]struct{})
		h.clientRooms = make(map[*Client]map[uint]struct{})
		h.totalConns = 0
		h.mu.Unlock()
	})
	return nil
}
