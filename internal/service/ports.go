package service

import (
	"assessment_engine/internal/model"
	"context"
)

// Caller is the authenticated user a request is made on behalf of. It is passed
// explicitly to every operation; nothing reads the current user from ambient state.
type Caller struct {
	UserID uint
	Role   model.UserRole
	Email  string
}

// QuestionBank reads assessment definitions. Implementations return
// util.ErrAssessmentNotFound for a missing definition or one without questions.
type QuestionBank interface {
	GetDefinition(ctx context.Context, assessmentID uint) (*model.AssessmentDefinition, error)
}

// AttemptStore is the durable attempt record. UpdateAnswers and Finalize only apply
// while the stored attempt is in progress and still at attempt.Version.
type AttemptStore interface {
	Create(ctx context.Context, attempt *model.Attempt) error
	FindByID(ctx context.Context, id string) (*model.Attempt, error)
	FindLatest(ctx context.Context, userID, assessmentID uint) (*model.Attempt, error)
	CountFinalized(ctx context.Context, userID, assessmentID uint) (int64, error)
	ListByUser(ctx context.Context, userID, assessmentID uint) ([]model.Attempt, error)
	UpdateAnswers(ctx context.Context, attempt *model.Attempt) error
	Finalize(ctx context.Context, attempt *model.Attempt) error
}

type PermissionChecker interface {
	Allowed(ctx context.Context, capability string, caller Caller) bool
}

// Notifier publishes events without blocking the caller.
type Notifier interface {
	Notify(name string, payload map[string]interface{})
}
