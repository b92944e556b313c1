package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// Key layout:
//
//	focusflow:live:<session-id>  - JSON snapshot of one live session
//	focusflow:live:index         - set of live session IDs
const (
	liveKeyPrefix = "focusflow:live:"
	liveIndexKey  = "focusflow:live:index"
)

// snapshotTTL evicts snapshots whose owning process died without
// removing them. Live snapshots are refreshed far more often.
const snapshotTTL = 5 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// LIVE SESSION CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SessionCache implements session.LiveCache on Redis. It holds the
// latest snapshot of every live session so dashboards and peers can
// see who is studying without querying the session runtime.
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache creates a cache on an existing client.
func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{client: client}
}

func liveKey(sessionID string) string {
	return liveKeyPrefix + sessionID
}

// PutSnapshot stores a live-session snapshot and indexes its ID.
func (c *SessionCache) PutSnapshot(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, liveKey(snap.SessionID), data, snapshotTTL)
	pipe.SAdd(ctx, liveIndexKey, snap.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the latest snapshot of a live session.
func (c *SessionCache) GetSnapshot(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	data, err := c.client.Get(ctx, liveKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Remove evicts a finalized session from the cache and the index.
func (c *SessionCache) Remove(ctx context.Context, sessionID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, liveKey(sessionID))
	pipe.SRem(ctx, liveIndexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// ActiveSessionIDs returns the IDs of all live sessions. Index entries
// whose snapshot already expired are cleaned up on the way.
func (c *SessionCache) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, liveIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read live index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = liveKey(id)
	}
	existing, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("check live snapshots: %w", err)
	}

	alive := make([]string, 0, len(ids))
	var stale []interface{}
	for i, v := range existing {
		if v == nil {
			stale = append(stale, ids[i])
			continue
		}
		alive = append(alive, ids[i])
	}

	if len(stale) > 0 {
		_ = c.client.SRem(ctx, liveIndexKey, stale...).Err()
	}
	return alive, nil
}

// ActiveCount returns the number of live sessions.
func (c *SessionCache) ActiveCount(ctx context.Context) (int64, error) {
	return c.client.SCard(ctx, liveIndexKey).Result()
}
