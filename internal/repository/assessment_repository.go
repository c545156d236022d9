package repository

import (
	"assessment_engine/internal/model"
	"assessment_engine/internal/util"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssessmentRepository 读取测评定义；题目顺序即作答索引
type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) GetDefinition(ctx context.Context, assessmentID uint) (*model.AssessmentDefinition, error) {
	var a model.Assessment
	if err := r.DB.WithContext(ctx).First(&a, assessmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssessmentNotFound
		}
		return nil, err
	}

	var qs []model.AssessmentQuestion
	err := r.DB.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order("id asc").
		Find(&qs).Error
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, util.ErrAssessmentNotFound
	}

	def := &model.AssessmentDefinition{
		ID:                     a.ID,
		Title:                  a.Title,
		TimeLimitType:          a.TimeLimitType,
		TotalTimeMinutes:       a.TotalTimeMinutes,
		PerQuestionTimeSeconds: a.PerQuestionTimeSeconds,
		PassPercentage:         a.PassPercentage,
		MaxAttempts:            a.MaxAttempts,
		RandomizeQuestions:     a.RandomizeQuestions,
		Questions:              make([]model.Question, len(qs)),
	}
	for i, q := range qs {
		def.Questions[i] = q.ToQuestion(i)
	}
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("assessment %d: %w", assessmentID, err)
	}
	return def, nil
}

// Upsert 整体替换测评及其题目，供导入脚本使用
func (r *AssessmentRepository) Upsert(ctx context.Context, def *model.AssessmentDefinition) error {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a := model.Assessment{
			BaseModel:              model.BaseModel{ID: def.ID},
			Title:                  def.Title,
			TimeLimitType:          def.TimeLimitType,
			TotalTimeMinutes:       def.TotalTimeMinutes,
			PerQuestionTimeSeconds: def.PerQuestionTimeSeconds,
			PassPercentage:         def.PassPercentage,
			MaxAttempts:            def.MaxAttempts,
			RandomizeQuestions:     def.RandomizeQuestions,
		}
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		def.ID = a.ID

		if err := tx.Unscoped().Where("assessment_id = ?", a.ID).Delete(&model.AssessmentQuestion{}).Error; err != nil {
			return err
		}

		qs := make([]model.AssessmentQuestion, len(def.Questions))
		for i, q := range def.Questions {
			qs[i] = model.AssessmentQuestion{
				AssessmentID:  a.ID,
				QuestionType:  q.Type,
				Prompt:        q.Prompt,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				Points:        q.Points,
				Order:         i,
			}
		}
		return tx.Create(&qs).Error
	})
}
