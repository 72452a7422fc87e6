package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-arena-auth"
)

const (
	redisTokenPrefix = "arena:token:"
	redisOwnerPrefix = "arena:owner:"
	maxWatchRetries  = 5
)

// RedisTokens is an auth.CredentialStore keeping each record under its own
// key with a TTL matching the token expiry, plus a per owner index set.
type RedisTokens struct {
	client *redis.Client
	now    func() time.Time
}

var _ auth.CredentialStore = (*RedisTokens)(nil)

// NewRedisTokens connects to url and verifies the connection
func NewRedisTokens(url string) (*RedisTokens, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisTokensWithClient(client), nil
}

// NewRedisTokensWithClient wraps an existing client
func NewRedisTokensWithClient(client *redis.Client) *RedisTokens {
	return &RedisTokens{client: client, now: time.Now}
}

func (r *RedisTokens) Close() error {
	return r.client.Close()
}

func tokenKey(token string) string {
	return redisTokenPrefix + token
}

func ownerKey(id uuid.UUID) string {
	return redisOwnerPrefix + id.String() + ":tokens"
}

func (r *RedisTokens) FindByToken(ctx context.Context, token string) (*auth.TokenRecord, error) {
	data, err := r.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrTokenRecordNotFound
		}
		return nil, err
	}

	var record auth.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert skips records that already expired.
func (r *RedisTokens) Insert(ctx context.Context, record *auth.TokenRecord) error {
	ttl := record.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	set, err := r.client.SetNX(ctx, tokenKey(record.Token), data, ttl).Result()
	if err != nil {
		return err
	}
	if !set {
		return auth.ErrTokenRecordExists
	}

	// only the owner of a freshly stored record is indexed
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, ownerKey(record.OwnerID), record.Token)
		pipe.Expire(ctx, ownerKey(record.OwnerID), auth.SessionTokenTTL)
		return nil
	})
	return err
}

func (r *RedisTokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	record, err := r.FindByToken(ctx, token)
	if err != nil {
		if auth.IsTokenRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, tokenKey(token))
	pipe.SRem(ctx, ownerKey(record.OwnerID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

// DeleteAllByOwner removes every record indexed for the owner. The index is
// watched so a token inserted concurrently is never orphaned.
func (r *RedisTokens) DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	key := ownerKey(ownerID)
	removed := 0

	txf := func(tx *redis.Tx) error {
		tokens, err := tx.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(tokens))
		for _, t := range tokens {
			keys = append(keys, tokenKey(t))
		}

		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				del = pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}

		if del != nil {
			removed = int(del.Val())
		}
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return removed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, err
	}

	return 0, errors.New("revoking tokens kept conflicting with concurrent writes")
}
