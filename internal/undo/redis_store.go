package undo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore keeps each project's ledger as one JSON value and updates it in
// a WATCH/MULTI transaction so concurrent writers never lose entries.
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, limit int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, limit), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, limit int) *RedisStore {
	return &RedisStore{client: client, prefix: "undo:", limit: limit}
}

func (s *RedisStore) key(projectID string) string {
	return s.prefix + projectID
}

func (s *RedisStore) load(ctx context.Context, tx *redis.Tx, key string) (*Ledger, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewLedger(s.limit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load undo ledger: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode undo ledger: %w", err)
	}
	l.Limit = s.limit
	return &l, nil
}

// update runs fn against the stored ledger and writes it back if fn
// succeeds. The transaction is retried when another client wrote the key.
func (s *RedisStore) update(ctx context.Context, projectID string, fn func(*Ledger) error) error {
	key := s.key(projectID)
	txf := func(tx *redis.Tx) error {
		l, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode undo ledger: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update undo ledger %s: %w", projectID, redis.TxFailedErr)
}

func (s *RedisStore) Push(ctx context.Context, projectID string, e Entry) error {
	return s.update(ctx, projectID, func(l *Ledger) error {
		l.Push(e)
		return nil
	})
}

func (s *RedisStore) Consume(ctx context.Context, projectID, token string, currentRevision int, currentHash string, requireLatest bool) (Entry, error) {
	var out Entry
	err := s.update(ctx, projectID, func(l *Ledger) error {
		e, err := l.ConsumeWithLineage(token, currentRevision, currentHash, requireLatest)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

func (s *RedisStore) List(ctx context.Context, projectID string) ([]Entry, error) {
	raw, err := s.client.Get(ctx, s.key(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load undo ledger: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode undo ledger: %w", err)
	}
	return l.Entries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
