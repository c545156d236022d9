package repository

import (
	"assessment_engine/internal/model"
	"assessment_engine/internal/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// AttemptRepository 作答记录存储。
// 所有写操作都以 status=in_progress AND version=? 为条件，保证同一记录的并发写入可串行化。
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

var finalizeColumns = []string{
	"status", "active_slot", "version", "updated_at",
	"time_completed", "time_spent_seconds", "declared_time_spent_seconds",
	"answers", "score_percentage", "correct_count", "total_question_count", "question_results",
}

// Create 插入新的进行中记录；若该用户在该测评已有进行中记录返回 util.ErrAttemptInProgress
func (r *AttemptRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	slot := model.ActiveSlotKey(attempt.UserID, attempt.AssessmentID)
	attempt.ActiveSlot = &slot
	attempt.Status = model.AttemptInProgress
	attempt.Version = 1
	if attempt.Answers == nil {
		attempt.Answers = model.Answers{}
	}

	err := r.DB.WithContext(ctx).Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrAttemptInProgress
	}
	return err
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if a.Answers == nil {
		a.Answers = model.Answers{}
	}
	return &a, nil
}

// FindLatest 返回最近一次作答，没有时返回 nil, nil
func (r *AttemptRepository) FindLatest(ctx context.Context, userID, assessmentID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("attempt_number desc").
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, nil
	}
	if a.Answers == nil {
		a.Answers = model.Answers{}
	}
	return &a, nil
}

func (r *AttemptRepository) CountFinalized(ctx context.Context, userID, assessmentID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("user_id = ? AND assessment_id = ? AND status IN ?", userID, assessmentID,
			[]model.AttemptStatus{model.AttemptCompleted, model.AttemptFailed}).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID, assessmentID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("attempt_number desc").
		Find(&attempts).Error
	return attempts, err
}

// UpdateAnswers 保存进行中记录的答案
func (r *AttemptRepository) UpdateAnswers(ctx context.Context, attempt *model.Attempt) error {
	return r.conditionalUpdate(ctx, attempt, "answers", "version", "updated_at")
}

// Finalize 一次性写入状态、分数与答案，并释放进行中占位
func (r *AttemptRepository) Finalize(ctx context.Context, attempt *model.Attempt) error {
	if !attempt.Status.Finalized() {
		return errors.New("finalize requires a completed or failed status")
	}
	attempt.ActiveSlot = nil
	return r.conditionalUpdate(ctx, attempt, finalizeColumns...)
}

func (r *AttemptRepository) conditionalUpdate(ctx context.Context, attempt *model.Attempt, columns ...string) error {
	expected := attempt.Version
	row := *attempt
	row.Version = expected + 1
	row.UpdatedAt = time.Now()

	res := r.DB.WithContext(ctx).
		Model(&row).
		Where("status = ? AND version = ?", model.AttemptInProgress, expected).
		Select(columns).
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.FindByID(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if current.Status.Finalized() {
			return util.ErrAttemptAlreadyFinalized
		}
		return util.ErrAttemptConflict
	}

	attempt.Version = row.Version
	attempt.UpdatedAt = row.UpdatedAt
	return nil
}
