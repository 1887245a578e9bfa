package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maaaruch/shoppies-bot/internal/domain"
)

// SubmissionStore is the part of storage.Store the local submitter needs.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub domain.Submission) error
}

// Local keeps submissions in the bot's own database. Used when no remote
// document store is configured.
type Local struct {
	store SubmissionStore
	now   func() time.Time
}

func NewLocal(store SubmissionStore) *Local {
	return &Local{store: store, now: time.Now}
}

func (l *Local) Submit(ctx context.Context, movies []domain.Movie) (string, error) {
	id := uuid.NewString()
	sub := domain.Submission{
		ID:        id,
		Movies:    append([]domain.Movie(nil), movies...),
		CreatedAt: l.now(),
	}
	if err := l.store.CreateSubmission(ctx, sub); err != nil {
		return "", fmt.Errorf("docstore: store submission: %w", err)
	}
	return id, nil
}
