package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DenyList hält widerrufene Tokens bis zu ihrem Ablauf.
type DenyList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenyList ist eine prozesslokale DenyList für Einzelinstanzen und Tests.
type MemoryDenyList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenyList erstellt eine leere MemoryDenyList.
func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{entries: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryDenyList) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, id)
		}
	}
	l.entries[tokenID] = now.Add(ttl)
	return nil
}

func (l *MemoryDenyList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, tokenID)
		return false, nil
	}
	return true, nil
}

const denyListKeyPrefix = "slr:denylist:"

// RedisDenyList teilt die Deny-List zwischen mehreren Instanzen.
type RedisDenyList struct {
	client *redis.Client
}

// NewRedisDenyList erstellt eine RedisDenyList auf einem bestehenden Client.
func NewRedisDenyList(client *redis.Client) *RedisDenyList {
	return &RedisDenyList{client: client}
}

// NewRedisDenyListFromURL verbindet sich mit REDIS_URL und prüft die Verbindung.
func NewRedisDenyListFromURL(ctx context.Context, url string) (*RedisDenyList, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisDenyList(client), nil
}

func (l *RedisDenyList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, denyListKeyPrefix+tokenID, "1", ttl).Err()
}

func (l *RedisDenyList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := l.client.Get(ctx, denyListKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close schließt den Redis-Client.
func (l *RedisDenyList) Close() error {
	return l.client.Close()
}
