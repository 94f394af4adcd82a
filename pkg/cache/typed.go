package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Query reads key as a T, fetching it with fetch when needed.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.Read(ctx, key, encodeFetch(fetch))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}
	return out, nil
}

// Refetch fetches key as a T, bypassing freshness, and stores the result.
func Refetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.Refresh(ctx, key, encodeFetch(fetch))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}
	return out, nil
}

// Put writes v as the value of key.
func Put[T any](ctx context.Context, c *Cache, key Key, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Write(ctx, key, data)
}

// Get returns the stored T without fetching.
func Get[T any](ctx context.Context, c *Cache, key Key) (v T, fresh bool, ok bool) {
	data, fresh, ok := c.Peek(ctx, key)
	if !ok {
		return v, false, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, false
	}
	return v, fresh, true
}

func encodeFetch[T any](fetch func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode fetched value: %w", err)
		}
		return data, nil
	}
}
