package service

import (
	"context"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// Upstream is the test and scoring backend acting for one bearer.
type Upstream interface {
	GetTest(ctx context.Context, testID string) (*model.Test, error)
	CheckAttempt(ctx context.Context, testID string) (*model.AttemptCheck, error)
	Submit(ctx context.Context, testID string, sub model.Submission) (*model.SubmissionResult, error)
	GetAttempt(ctx context.Context, attemptID string) (*model.AttemptDetail, error)
	GetLeaderboard(ctx context.Context, testID string) (*model.Leaderboard, error)
}

// UpstreamFactory returns an Upstream that authenticates with token.
type UpstreamFactory func(token string) Upstream

// SnapshotStore keeps the autosaved progress of live sessions.
type SnapshotStore interface {
	Save(ctx context.Context, p *model.Progress) error
	Load(ctx context.Context, sessionID string) (*model.Progress, error)
	Delete(ctx context.Context, sessionID string) error
}

// AttemptQueue hands finished attempts to the archive worker.
type AttemptQueue interface {
	Enqueue(ctx context.Context, rec *model.AttemptRecord) error
}

// EventBus fans session events out to stream subscribers.
type EventBus interface {
	Publish(ctx context.Context, sessionID string, payload []byte) error
	Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error)
}

// AttemptLookup answers from the local archive when the upstream attempt
// check is unavailable.
type AttemptLookup interface {
	HasAttempt(ctx context.Context, subject, testID string) (bool, error)
}
