package notifications

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"skillswap/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	// sorted set of user IDs scored by last heartbeat (unix seconds)
	presenceHeartbeatKey = "presence:heartbeat"
	// hash of user ID -> open sockets across all instances
	presenceSocketsKey = "presence:sockets"

	presenceTTL         = 90 * time.Second
	presenceGrace       = 5 * time.Second
	presenceSweepPeriod = time.Minute
)

// Presence decides whether a member can be reached over a socket, which in
// turn decides whether a notification falls back to email.
//
// Sockets on this instance are counted in memory. With Redis, every instance
// also keeps a shared socket count and a heartbeat per user; a count whose
// heartbeat is older than the TTL belongs to a dead instance and is swept.
// Going offline waits out a short grace window so a page reload does not
// flap the user's status.
type Presence struct {
	rdb *redis.Client
	now func() time.Time

	mu        sync.Mutex
	local     map[uint]int
	pending   map[uint]*time.Timer
	announced map[uint]bool // offline already reported
	grace     time.Duration
	onOnline  func(userID uint)
	onOffline func(userID uint)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPresence starts tracking. The Redis sweep only runs when rdb is set.
func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:       rdb,
		now:       time.Now,
		local:     make(map[uint]int),
		pending:   make(map[uint]*time.Timer),
		announced: make(map[uint]bool),
		grace:     presenceGrace,
		stop:      make(chan struct{}),
	}
	if rdb != nil {
		go p.sweepLoop(presenceSweepPeriod)
	}
	return p
}

// SetCallbacks replaces the online and offline hooks.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline, p.onOffline = onOnline, onOffline
	p.mu.Unlock()
}

// SetOfflineGracePeriod changes how long a last disconnect waits before the
// user counts as offline.
func (p *Presence) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.grace = d
	p.mu.Unlock()
}

// Stop ends the sweep and drops pending offline transitions.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.mu.Lock()
		for id, t := range p.pending {
			t.Stop()
			delete(p.pending, id)
		}
		p.mu.Unlock()
	})
}

// Connect records a new socket for userID.
func (p *Presence) Connect(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.pending[userID]; ok {
		t.Stop()
		delete(p.pending, userID)
	}
	p.local[userID]++
	p.mu.Unlock()

	if p.rdb != nil {
		if err := p.rdb.HIncrBy(ctx, presenceSocketsKey, member(userID), 1).Err(); err != nil {
			middleware.Logger.Warn("presence update failed", "op", "connect", "user_id", userID, "error", err)
		}
	}
	p.Heartbeat(ctx, userID)

	if !wasOnline {
		p.announce(userID, true)
	}
}

// Heartbeat marks userID as recently active.
func (p *Presence) Heartbeat(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	score := float64(p.now().Unix())
	if err := p.rdb.ZAdd(ctx, presenceHeartbeatKey, redis.Z{Score: score, Member: member(userID)}).Err(); err != nil {
		middleware.Logger.Warn("presence update failed", "op", "heartbeat", "user_id", userID, "error", err)
	}
}

// Disconnect records a closed socket. The last one starts the grace timer.
func (p *Presence) Disconnect(ctx context.Context, userID uint) {
	if p.rdb != nil {
		if err := p.rdb.HIncrBy(ctx, presenceSocketsKey, member(userID), -1).Err(); err != nil {
			middleware.Logger.Warn("presence update failed", "op", "disconnect", "user_id", userID, "error", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local[userID] > 1 {
		p.local[userID]--
		return
	}
	delete(p.local, userID)

	if t, ok := p.pending[userID]; ok {
		t.Stop()
	}
	p.pending[userID] = time.AfterFunc(p.grace, func() {
		p.settle(context.Background(), userID)
	})
}

// IsOnline reports whether userID holds a live socket on any instance.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.Lock()
	local := p.local[userID] > 0
	p.mu.Unlock()
	if local {
		return true
	}
	if p.rdb == nil {
		return false
	}
	return p.remoteSockets(ctx, userID) > 0 && p.fresh(ctx, userID)
}

// OnlineUserIDs lists users with a fresh heartbeat plus every local socket.
func (p *Presence) OnlineUserIDs(ctx context.Context) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	add := func(id uint) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if p.rdb != nil {
		members, err := p.rdb.ZRangeByScore(ctx, presenceHeartbeatKey, &redis.ZRangeBy{
			Min: strconv.FormatInt(p.cutoff(), 10),
			Max: "+inf",
		}).Result()
		if err == nil {
			for _, m := range members {
				if id, ok := parseMember(m); ok && p.remoteSockets(ctx, id) > 0 {
					add(id)
				}
			}
		}
	}

	p.mu.Lock()
	for id, n := range p.local {
		if n > 0 {
			add(id)
		}
	}
	p.mu.Unlock()
	return ids
}

// sweep forgets users whose heartbeat expired, which clears socket counts
// left behind by an instance that died.
func (p *Presence) sweep(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	stale, err := p.rdb.ZRangeByScore(ctx, presenceHeartbeatKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(p.cutoff(), 10),
	}).Result()
	if err != nil {
		return
	}
	for _, m := range stale {
		id, ok := parseMember(m)
		if !ok {
			_ = p.rdb.ZRem(ctx, presenceHeartbeatKey, m).Err()
			continue
		}
		p.forget(ctx, id)

		p.mu.Lock()
		local := p.local[id] > 0
		p.mu.Unlock()
		if !local {
			p.announce(id, false)
		}
	}
}

func (p *Presence) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep(context.Background())
		}
	}
}

// settle runs when the grace window after a last local disconnect ends.
func (p *Presence) settle(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.pending, userID)
	reconnected := p.local[userID] > 0
	p.mu.Unlock()
	if reconnected {
		return
	}

	if p.rdb != nil {
		if p.remoteSockets(ctx, userID) > 0 && p.fresh(ctx, userID) {
			// still connected elsewhere
			return
		}
		p.forget(ctx, userID)
	}
	p.announce(userID, false)
}

func (p *Presence) forget(ctx context.Context, userID uint) {
	m := member(userID)
	_ = p.rdb.ZRem(ctx, presenceHeartbeatKey, m).Err()
	_ = p.rdb.HDel(ctx, presenceSocketsKey, m).Err()
}

func (p *Presence) remoteSockets(ctx context.Context, userID uint) int64 {
	n, err := p.rdb.HGet(ctx, presenceSocketsKey, member(userID)).Int64()
	if err != nil {
		return 0
	}
	return n
}

func (p *Presence) fresh(ctx context.Context, userID uint) bool {
	score, err := p.rdb.ZScore(ctx, presenceHeartbeatKey, member(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.Debug("presence lookup failed", "user_id", userID, "error", err)
		}
		return false
	}
	return int64(score) >= p.cutoff()
}

func (p *Presence) cutoff() int64 {
	return p.now().Add(-presenceTTL).Unix()
}

// announce fires a hook on a real transition; repeated offline reports for
// the same absence are dropped.
func (p *Presence) announce(userID uint, online bool) {
	p.mu.Lock()
	var cb func(uint)
	if online {
		p.announced[userID] = false
		cb = p.onOnline
	} else {
		if p.announced[userID] {
			p.mu.Unlock()
			return
		}
		p.announced[userID] = true
		cb = p.onOffline
	}
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func member(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func parseMember(m string) (uint, bool) {
	id, err := strconv.ParseUint(m, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
