package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "auth:session:"
	userIndexKeyPrefix = "auth:user_sessions:"
)

// RedisSessionStore keeps refresh sessions as auth:session:<sid> -> user_id with a
// per-user SET index. The index is written before the mapping: a crash between the
// two leaves an index entry pointing at nothing, which every reader tolerates and
// the index TTL eventually removes.
type RedisSessionStore struct {
	client redis.UniversalClient
}

func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	indexKey := userIndexKeyPrefix + userID

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, indexKey, sessionID)
		p.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return unavailable("session_index_add", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err(); err != nil {
		if cleanupErr := s.client.SRem(context.WithoutCancel(ctx), indexKey, sessionID).Err(); cleanupErr != nil {
			slog.Default().WarnContext(ctx, "orphan session index entry left behind",
				"module", "cache.session_store",
				"layer", "adapter",
				"operation", "create_session",
				"outcome", "warning",
				"error", cleanupErr,
			)
		}
		return unavailable("session_set", err)
	}
	return nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	userID, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("session_get", err)
	}
	return userID, true, nil
}

func (s *RedisSessionStore) RevokeOne(ctx context.Context, sessionID string) error {
	key := sessionKeyPrefix + sessionID
	userID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return unavailable("session_get", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.SRem(ctx, userIndexKeyPrefix+userID, sessionID)
		return nil
	})
	return unavailable("session_revoke", err)
}

func (s *RedisSessionStore) RevokeAll(ctx context.Context, userID string) error {
	indexKey := userIndexKeyPrefix + userID
	sessionIDs, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return unavailable("session_index_members", err)
	}
	if len(sessionIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		keys = append(keys, sessionKeyPrefix+sid)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.Del(ctx, indexKey)
		return nil
	})
	return unavailable("session_revoke_all", err)
}

// ListByUser returns index members whose mapping is still live.
func (s *RedisSessionStore) ListByUser(ctx context.Context, userID string) ([]string, error) {
	sessionIDs, err := s.client.SMembers(ctx, userIndexKeyPrefix+userID).Result()
	if err != nil {
		return nil, unavailable("session_index_members", err)
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(sessionIDs))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, sid := range sessionIDs {
			cmds[i] = p.Get(ctx, sessionKeyPrefix+sid)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("session_list", err)
	}

	live := make([]string, 0, len(sessionIDs))
	for i, cmd := range cmds {
		owner, cmdErr := cmd.Result()
		if cmdErr != nil || owner != userID {
			continue
		}
		live = append(live, sessionIDs[i])
	}
	return live, nil
}
