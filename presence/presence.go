// Package presence tracks which users hold at least one live
// connection. Counts are kept locally per node and mirrored into Redis
// (an online set plus per-user last-seen keys with a TTL), so presence
// survives node restarts and multiple nodes agree.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey      = "presence:online_users"
	defaultLastSeenKeyPrefix = "presence:last_seen:"
	defaultLastSeenTTL       = 90 * time.Second
)

type Config struct {
	OnlineSetKey      string
	LastSeenKeyPrefix string
	LastSeenTTL       time.Duration
}

type Presence struct {
	rdb *redis.Client

	mu     sync.Mutex
	counts map[string]int

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
}

// New creates a tracker. rdb may be nil; the tracker then works off
// local counts only.
func New(rdb *redis.Client, cfg Config) *Presence {
	p := &Presence{
		rdb:               rdb,
		counts:            map[string]int{},
		onlineSetKey:      defaultOnlineSetKey,
		lastSeenKeyPrefix: defaultLastSeenKeyPrefix,
		lastSeenTTL:       defaultLastSeenTTL,
	}

	if cfg.OnlineSetKey != "" {
		p.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		p.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}

	return p
}

// Connect registers one connection and reports whether it is the
// user's first, i.e. the offline→online transition.
func (p *Presence) Connect(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	p.counts[userID]++
	first := p.counts[userID] == 1
	p.mu.Unlock()

	if err := p.mirror(ctx, userID, true); err != nil {
		return first, err
	}

	return first, nil
}

// Disconnect unregisters one connection and reports whether it was the
// user's last, i.e. the online→offline transition.
func (p *Presence) Disconnect(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	if p.counts[userID] > 0 {
		p.counts[userID]--
	}
	last := p.counts[userID] == 0
	if last {
		delete(p.counts, userID)
	}
	p.mu.Unlock()

	if !last {
		return false, nil
	}

	if err := p.mirror(ctx, userID, false); err != nil {
		return true, err
	}

	return true, nil
}

// Heartbeat refreshes the user's last-seen TTL while a connection is
// open.
func (p *Presence) Heartbeat(ctx context.Context, userID string) error {
	if p.rdb == nil {
		return nil
	}

	if err := p.rdb.Set(ctx, p.lastSeenKey(userID), time.Now().UTC().Format(time.RFC3339), p.lastSeenTTL).Err(); err != nil {
		return fmt.Errorf("redis refresh last seen: %w", err)
	}

	return nil
}

// Online lists the user ids in the shared online set.
func (p *Presence) Online(ctx context.Context) ([]string, error) {
	if p.rdb == nil {
		p.mu.Lock()
		defer p.mu.Unlock()

		out := make([]string, 0, len(p.counts))
		for userID := range p.counts {
			out = append(out, userID)
		}
		return out, nil
	}

	out, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list online users: %w", err)
	}

	return out, nil
}

// LastSeen returns the mirrored last-seen timestamp, if any.
func (p *Presence) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	if p.rdb == nil {
		return time.Time{}, false, nil
	}

	s, err := p.rdb.Get(ctx, p.lastSeenKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}

	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get last seen: %w", err)
	}

	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last seen %q: %w", s, err)
	}

	return at, true, nil
}

func (p *Presence) mirror(ctx context.Context, userID string, online bool) error {
	if p.rdb == nil {
		return nil
	}

	if online {
		if err := p.rdb.SAdd(ctx, p.onlineSetKey, userID).Err(); err != nil {
			return fmt.Errorf("redis add online member: %w", err)
		}
		return p.Heartbeat(ctx, userID)
	}

	if err := p.rdb.SRem(ctx, p.onlineSetKey, userID).Err(); err != nil {
		return fmt.Errorf("redis remove online member: %w", err)
	}

	return nil
}

func (p *Presence) lastSeenKey(userID string) string {
	return p.lastSeenKeyPrefix + userID
}
