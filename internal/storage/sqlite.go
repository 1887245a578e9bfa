package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maaaruch/shoppies-bot/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema() error {
	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	_, err = s.db.Exec(schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------- Cache ----------

func (s *Store) GetValue(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Store) PutValue(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache(user_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at
`, userID, key, value, time.Now().UTC())
	return err
}

func (s *Store) DeleteValue(ctx context.Context, userID int64, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ---------- Submissions ----------

func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	payload, err := json.Marshal(sub.Movies)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions(id, payload, created_at) VALUES (?, ?, ?)`,
		sub.ID, string(payload), sub.CreatedAt.UTC())
	return err
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, payload, created_at FROM submissions WHERE id = ?`, id)

	var (
		sub     domain.Submission
		payload string
	)
	if err := row.Scan(&sub.ID, &payload, &sub.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &sub.Movies); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return &sub, nil
}

func (s *Store) CountSubmissions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM submissions`).Scan(&n)
	return n, err
}
