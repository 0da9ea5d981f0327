package app

import (
	"context"

	"quizhost/internal/domain"
)

// SessionRepository abstracts where per-browser session state lives (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, id string) (domain.Session, bool, error)
	Save(ctx context.Context, id string, sess domain.Session) error
	Delete(ctx context.Context, id string) error
}
