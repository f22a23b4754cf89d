// Package redis stores shopping carts as one Redis hash per buyer.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

const maxAddRetries = 5

type cartRepository struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewCartRepository creates a CartRepository backed by Redis. Every write refreshes the
// cart's expiry to ttl; a zero ttl keeps carts forever.
func NewCartRepository(client goredis.UniversalClient, ttl time.Duration) repository.CartRepository {
	return &cartRepository{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Add merges the line into the buyer's cart under its variant field. Concurrent adds
// are serialised with WATCH so quantities are never lost.
func (r *cartRepository) Add(ctx context.Context, userID string, line entity.CartLine) error {
	key := cartKey(userID)
	field := line.Variant()
	for i := 0; i < maxAddRetries; i++ {
		err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
			merged := line
			raw, err := tx.HGet(ctx, key, field).Result()
			switch {
			case errors.Is(err, goredis.Nil):
			case err != nil:
				return err
			default:
				existing, err := decodeLine(raw)
				if err != nil {
					return err
				}
				merged.Quantity += existing.Quantity
			}
			payload, err := json.Marshal(merged)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.HSet(ctx, key, field, payload)
				if r.ttl > 0 {
					pipe.Expire(ctx, key, r.ttl)
				}
				return nil
			})
			return err
		}, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to add cart line: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to add cart line: %w", repository.ErrConflict)
}

func (r *cartRepository) Get(ctx context.Context, userID string) ([]entity.CartLine, error) {
	fields, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	lines := make([]entity.CartLine, 0, len(fields))
	for _, raw := range fields {
		line, err := decodeLine(raw)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return entity.LessCartLine(lines[i], lines[j]) })
	return lines, nil
}

func (r *cartRepository) Remove(ctx context.Context, userID, customID string) error {
	key := cartKey(userID)
	fields, err := r.client.HKeys(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to list cart lines: %w", err)
	}
	var drop []string
	for _, f := range fields {
		if strings.HasPrefix(f, customID+"|") {
			drop = append(drop, f)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, key, drop...).Err(); err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func decodeLine(raw string) (entity.CartLine, error) {
	var line entity.CartLine
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		return line, fmt.Errorf("failed to decode cart line: %w", err)
	}
	return line, nil
}
