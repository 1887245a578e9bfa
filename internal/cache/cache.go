// Package cache persists each user's nomination set under a single key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maaaruch/shoppies-bot/internal/domain"
	"github.com/maaaruch/shoppies-bot/internal/storage"
)

// NominationsKey is the key the nomination set is stored under.
const NominationsKey = "nominations"

// KV is a per-user string store. Missing keys return storage.ErrNotFound.
type KV interface {
	GetValue(ctx context.Context, userID int64, key string) (string, error)
	PutValue(ctx context.Context, userID int64, key, value string) error
	DeleteValue(ctx context.Context, userID int64, key string) (bool, error)
}

// Nominations adapts a KV to a single user's nomination set.
type Nominations struct {
	kv     KV
	userID int64
}

func ForUser(kv KV, userID int64) *Nominations {
	return &Nominations{kv: kv, userID: userID}
}

func (n *Nominations) Load(ctx context.Context) ([]domain.Movie, error) {
	raw, err := n.kv.GetValue(ctx, n.userID, NominationsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load nominations: %w", err)
	}
	var movies []domain.Movie
	if err := json.Unmarshal([]byte(raw), &movies); err != nil {
		return nil, fmt.Errorf("decode nominations: %w", err)
	}
	return movies, nil
}

// Save overwrites the stored set. An empty set drops the key, which Load
// reads back as empty.
func (n *Nominations) Save(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		if _, err := n.kv.DeleteValue(ctx, n.userID, NominationsKey); err != nil {
			return fmt.Errorf("reset nominations: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(movies)
	if err != nil {
		return fmt.Errorf("encode nominations: %w", err)
	}
	if err := n.kv.PutValue(ctx, n.userID, NominationsKey, string(raw)); err != nil {
		return fmt.Errorf("save nominations: %w", err)
	}
	return nil
}
