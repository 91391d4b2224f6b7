package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisAccountsKey is the hash holding one field per account.
const DefaultRedisAccountsKey = "hollowmere:accounts"

// RedisAccountStore keeps accounts in a Redis hash keyed by username.
type RedisAccountStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisAccountStore(client redis.UniversalClient, key string) *RedisAccountStore {
	if key == "" {
		key = DefaultRedisAccountsKey
	}
	return &RedisAccountStore{client: client, key: key}
}

func (s *RedisAccountStore) Load(ctx context.Context) (map[string]Account, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis exists %s: %w", s.key, err)
	}
	if n == 0 {
		return nil, ErrNoAccounts
	}
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.key, err)
	}
	return decodeAccountFields(fields)
}

func (s *RedisAccountStore) Save(ctx context.Context, accounts map[string]Account) error {
	fields, err := encodeAccountFields(accounts)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	return nil
}

func encodeAccountFields(accounts map[string]Account) (map[string]any, error) {
	fields := make(map[string]any, len(accounts))
	for name, acct := range accounts {
		data, err := json.Marshal(acct)
		if err != nil {
			return nil, fmt.Errorf("encode account %s: %w", name, err)
		}
		fields[name] = string(data)
	}
	return fields, nil
}

func decodeAccountFields(fields map[string]string) (map[string]Account, error) {
	accounts := make(map[string]Account, len(fields))
	for name, raw := range fields {
		var acct Account
		if err := json.Unmarshal([]byte(raw), &acct); err != nil {
			return nil, fmt.Errorf("decode account %s: %w", name, err)
		}
		accounts[name] = acct
	}
	return accounts, nil
}
