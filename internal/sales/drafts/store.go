package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-orders/internal/shared"
)

var (
	// ErrNotFound indicates no working copy exists for the order.
	ErrNotFound = errors.New("draft not found")
	// ErrLocked indicates a submission already holds the order lock.
	ErrLocked = errors.New("order is being submitted")
	// ErrConflict indicates concurrent updates kept invalidating the optimistic write.
	ErrConflict = errors.New("draft modified concurrently")
)

const maxUpdateRetries = 5

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Store persists drafts in Redis as JSON with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewStore builds a draft store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl, now: time.Now}
}

// Get loads the draft for an order.
func (s *Store) Get(ctx context.Context, orderID int64) (Draft, error) {
	data, err := s.client.Get(ctx, shared.DraftKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("redis get draft: %w", err)
	}
	return decode(data)
}

// Save writes the draft unconditionally.
func (s *Store) Save(ctx context.Context, d Draft) (Draft, error) {
	d.Version++
	d.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(d)
	if err != nil {
		return Draft{}, fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, shared.DraftKey(d.OrderID), data, s.ttl).Err(); err != nil {
		return Draft{}, fmt.Errorf("redis set draft: %w", err)
	}
	return d, nil
}

// Update applies fn to the stored draft under WATCH and writes it back. When fn returns an
// error nothing is written.
func (s *Store) Update(ctx context.Context, orderID int64, fn func(*Draft) error) (Draft, error) {
	key := shared.DraftKey(orderID)
	var out Draft
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("redis get draft: %w", err)
		}
		d, err := decode(data)
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		d.Version++
		d.UpdatedAt = s.now().UTC()
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			out = d
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Draft{}, err
	}
	return Draft{}, ErrConflict
}

// Delete removes the draft.
func (s *Store) Delete(ctx context.Context, orderID int64) error {
	if err := s.client.Del(ctx, shared.DraftKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis del draft: %w", err)
	}
	return nil
}

// Lock acquires the submission lock for an order and returns the token needed to release it.
func (s *Store) Lock(ctx context.Context, orderID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, shared.OrderLockKey(orderID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis lock order: %w", err)
	}
	if !ok {
		return "", ErrLocked
	}
	return token, nil
}

// Unlock releases the lock when token still owns it.
func (s *Store) Unlock(ctx context.Context, orderID int64, token string) error {
	if err := unlockScript.Run(ctx, s.client, []string{shared.OrderLockKey(orderID)}, token).Err(); err != nil {
		return fmt.Errorf("redis unlock order: %w", err)
	}
	return nil
}

func decode(data []byte) (Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return d, nil
}
