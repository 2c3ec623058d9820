package storage

import (
	"context"
	"fmt"
	"sort"

	"token_ledger/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const tokensPrefix = "ledger:tokens"

// RedisRepository stores the tokens of one account as a hash: field = contract, value = JSON row.
// Saves replace the hash inside MULTI/EXEC, so a reader never sees a partial row set.
type RedisRepository struct {
	rdb *redis.Client
}

func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// getKey builds the hash key of one account on one chain.
func (r *RedisRepository) getKey(owner string, chainID uint64) string {
	return fmt.Sprintf("%s:%d:%s", tokensPrefix, chainID, entity.NormalizeAddress(owner))
}

// LoadTokens implements port.TokenRepository.
func (r *RedisRepository) LoadTokens(ctx context.Context, owner string, chainID uint64) ([]entity.Token, error) {
	fields, err := r.rdb.HGetAll(ctx, r.getKey(owner, chainID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall error: %w", err)
	}

	tokens := make([]entity.Token, 0, len(fields))
	for contract, raw := range fields {
		var t entity.Token
		if err := json.UnmarshalFromString(raw, &t); err != nil {
			return nil, fmt.Errorf("decode token %s: %w", contract, err)
		}
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Contract < tokens[j].Contract })
	return tokens, nil
}

// SaveTokens implements port.TokenRepository.
func (r *RedisRepository) SaveTokens(ctx context.Context, owner string, chainID uint64, tokens []entity.Token) error {
	key := r.getKey(owner, chainID)

	values := make([]interface{}, 0, 2*len(tokens))
	for _, t := range tokens {
		raw, err := json.MarshalToString(t)
		if err != nil {
			return fmt.Errorf("encode token %s: %w", t.Contract, err)
		}
		values = append(values, t.Contract, raw)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis transaction error: %w", err)
	}
	return nil
}

// SaveToken implements port.TokenRepository. Only the field of token.Contract is written.
func (r *RedisRepository) SaveToken(ctx context.Context, owner string, chainID uint64, token entity.Token) error {
	raw, err := json.MarshalToString(token)
	if err != nil {
		return fmt.Errorf("encode token %s: %w", token.Contract, err)
	}
	if err := r.rdb.HSet(ctx, r.getKey(owner, chainID), token.Contract, raw).Err(); err != nil {
		return fmt.Errorf("redis hset error: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
