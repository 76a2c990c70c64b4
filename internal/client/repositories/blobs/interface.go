package blobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStorage marks failures of the underlying storage (quota, I/O, closed DB).
var ErrStorage = errors.New("local storage failure")

type Repository interface {
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Get returns the last value stored under key, or common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}

// PutJSON serializes v and stores it under key.
func PutJSON(ctx context.Context, r Repository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.Put(ctx, key, b)
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, r Repository, key string, v any) error {
	b, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
