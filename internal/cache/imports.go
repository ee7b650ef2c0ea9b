package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kamazennext/catalog/internal/importer"
)

const importKeyPrefix = keyPrefix + "import:"

// takeImportScript returns and deletes the pending import only when the stored
// token hash matches, so a wrong token leaves a valid import in place.
var takeImportScript = redis.NewScript(`
	local key = KEYS[1]
	local want = ARGV[1]

	local stored = redis.call('HGET', key, 'token_hash')
	if not stored or stored ~= want then
		return false
	end

	local payload = redis.call('HGET', key, 'payload')
	redis.call('DEL', key)
	return payload
`)

// ImportSessions stores pending imports in Redis so any instance can commit a
// preview issued by another.
type ImportSessions struct {
	cache *Cache
}

// NewImportSessions returns an importer.SessionStore backed by c.
func NewImportSessions(c *Cache) *ImportSessions {
	return &ImportSessions{cache: c}
}

func importKey(sessionID string) string {
	return importKeyPrefix + sessionID
}

// Put stores pending for sessionID, replacing any earlier one.
func (s *ImportSessions) Put(ctx context.Context, sessionID string, pending importer.PendingImport, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending import: %w", err)
	}

	key := importKey(sessionID)
	_, err = s.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "token_hash", pending.TokenHash, "payload", payload)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store pending import: %w", err)
	}
	return nil
}

// Take implements importer.SessionStore.
func (s *ImportSessions) Take(ctx context.Context, sessionID, tokenHash string) (*importer.PendingImport, error) {
	raw, err := takeImportScript.Run(ctx, s.cache.client, []string{importKey(sessionID)}, tokenHash).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, importer.ErrPendingNotFound
		}
		return nil, fmt.Errorf("redis take pending import: %w", err)
	}

	var pending importer.PendingImport
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("decode pending import: %w", err)
	}
	return &pending, nil
}
