package session

import (
	"context"

	"github.com/rbright/rehearse/internal/backend"
)

// BackendStore adapts the HTTP client to Store.
type BackendStore struct {
	Client *backend.Client
}

func (s BackendStore) StartInterview(ctx context.Context) (string, error) {
	return s.Client.StartInterview(ctx)
}

func (s BackendStore) FinishInterview(ctx context.Context, sessionID string) error {
	return s.Client.FinishInterview(ctx, sessionID)
}

func (s BackendStore) ListInterviews(ctx context.Context) ([]Session, error) {
	items, err := s.Client.ListInterviews(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(items))
	for _, item := range items {
		sess := Session{ID: item.SessionID, CreatedAt: item.CreatedAt.Time, AnswerCount: item.AnswerCount}
		if item.FinishedAt != nil {
			sess.FinishedAt = item.FinishedAt.Time
		}
		out = append(out, sess)
	}
	return out, nil
}
