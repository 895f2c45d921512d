// Package cache implements the session store on Redis. It is the
// second durable backend for session_db_auth; records survive process
// restarts as long as the Redis instance does.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/latchkey-io/latchkey/internal/domain"
)

const (
	sessionKeyPrefix = "auth:session:"
	userIndexPrefix  = "auth:user_sessions:"
)

// Connect builds a Redis client from either a redis:// URL or a bare
// host:port address.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// SessionStore keeps each session as a JSON value under
// auth:session:<id> plus a per-user set under auth:user_sessions:<uid>
// so ListByUser and DeleteByUser do not scan the keyspace. Expiring
// sessions also carry a Redis TTL; the expires_at field on the record
// stays authoritative, the TTL just reclaims memory for records nobody
// looks up again.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore wraps a connected Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Create(ctx context.Context, sess domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(sess.CreatedAt)
		if ttl <= 0 {
			ttl = time.Second
		}
	}

	// SetNX arbitrates id collisions; only the first creator wins.
	ok, err := s.client.SetNX(ctx, sessionKeyPrefix+sess.SessionID, payload, ttl).Result()
	if err != nil {
		return storeErr("setnx session", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}
	if err := s.client.SAdd(ctx, userIndexPrefix+sess.UserID, sess.SessionID).Err(); err != nil {
		return storeErr("index session by user", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, storeErr("get session", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	removed, err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, storeErr("del session", err)
	}
	if err := s.client.SRem(ctx, userIndexPrefix+sess.UserID, sessionID).Err(); err != nil {
		return false, storeErr("unindex session", err)
	}
	return removed > 0, nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	ids, err := s.client.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return nil, storeErr("list user session ids", err)
	}

	var out []domain.Session
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// TTL reclaimed the value; drop the stale index entry.
			_ = s.client.SRem(ctx, userIndexPrefix+userID, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, userIndexPrefix+userID).Result()
	if err != nil {
		return 0, storeErr("list user session ids", err)
	}

	removed := 0
	for _, id := range ids {
		n, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return removed, storeErr("del session", err)
		}
		removed += int(n)
	}
	if err := s.client.Del(ctx, userIndexPrefix+userID).Err(); err != nil {
		return removed, storeErr("del user index", err)
	}
	return removed, nil
}

// CleanupExpired walks session keys and removes records whose deadline
// has passed. Redis TTLs already reclaim most expired values; the scan
// exists so the maintenance command reports the same expiry predicate
// the lookups apply.
func (s *SessionStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, storeErr("get session", err)
		}
		var sess domain.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			continue
		}
		if !sess.Expired(now) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return removed, storeErr("del session", err)
		}
		_ = s.client.SRem(ctx, userIndexPrefix+sess.UserID, sess.SessionID).Err()
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, storeErr("scan sessions", err)
	}
	return removed, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
