package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maaaruch/shoppies-bot/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s, db
}

func mustCount(t *testing.T, db *sql.DB, q string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestStore_InitSchemaIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.InitSchema(); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestStore_GetValue_Missing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetValue(context.Background(), 1, "nominations")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_PutValue_UpsertPerUserAndKey(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	if err := s.PutValue(ctx, 1, "nominations", "[1]"); err != nil {
		t.Fatalf("PutValue: %v", err)
	}
	if err := s.PutValue(ctx, 1, "nominations", "[2]"); err != nil {
		t.Fatalf("PutValue(overwrite): %v", err)
	}
	if err := s.PutValue(ctx, 2, "nominations", "[3]"); err != nil {
		t.Fatalf("PutValue(other user): %v", err)
	}

	if got := mustCount(t, db, `SELECT COUNT(*) FROM cache WHERE user_id = ?`, 1); got != 1 {
		t.Fatalf("expected 1 row for user 1, got %d", got)
	}

	got, err := s.GetValue(ctx, 1, "nominations")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "[2]" {
		t.Fatalf("last write should win, got %q", got)
	}

	other, _ := s.GetValue(ctx, 2, "nominations")
	if other != "[3]" {
		t.Fatalf("users must not share values, got %q", other)
	}
}

func TestStore_DeleteValue(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_ = s.PutValue(ctx, 1, "k", "v")

	deleted, err := s.DeleteValue(ctx, 1, "k")
	if err != nil || !deleted {
		t.Fatalf("DeleteValue: deleted=%v err=%v", deleted, err)
	}
	deleted, err = s.DeleteValue(ctx, 1, "k")
	if err != nil || deleted {
		t.Fatalf("DeleteValue(again): deleted=%v err=%v", deleted, err)
	}
}

func TestStore_Submissions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sub := domain.Submission{
		ID: "abc123",
		Movies: []domain.Movie{
			{ImdbID: "tt0076759", Title: "Star Wars", Year: "1977", Poster: "N/A", Nominated: true},
		},
		CreatedAt: time.Unix(100, 0),
	}
	if err := s.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, err := s.GetSubmission(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if len(got.Movies) != 1 || got.Movies[0] != sub.Movies[0] {
		t.Fatalf("unexpected movies: %+v", got.Movies)
	}
	if !got.CreatedAt.Equal(sub.CreatedAt) {
		t.Fatalf("created_at: got %v want %v", got.CreatedAt, sub.CreatedAt)
	}

	if err := s.CreateSubmission(ctx, sub); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}

	if _, err := s.GetSubmission(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	n, err := s.CountSubmissions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountSubmissions: n=%d err=%v", n, err)
	}
}
