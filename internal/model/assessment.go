package model

import (
	"errors"
	"fmt"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer:
		return true
	}
	return false
}

type TimeLimitType string

const (
	TimeLimitTotal       TimeLimitType = "total"
	TimeLimitPerQuestion TimeLimitType = "per_question"
)

// swagger:model Assessment
type Assessment struct {
	BaseModel
	Title                  string        `gorm:"size:255;not null" json:"title"`
	TimeLimitType          TimeLimitType `gorm:"size:20;not null" json:"time_limit_type"`
	TotalTimeMinutes       int           `json:"total_time_minutes"`
	PerQuestionTimeSeconds int           `json:"per_question_time_seconds"`
	PassPercentage         float64       `json:"pass_percentage"`
	MaxAttempts            int           `json:"max_attempts"` // 0 不限次数
	RandomizeQuestions     bool          `json:"randomize_questions"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// Question is immutable once an attempt has started. Index is the position in the
// definition order and is the key used for answers, even when the order shown to
// the user is shuffled.
type Question struct {
	Index         int          `json:"index" yaml:"-"`
	Type          QuestionType `json:"type" yaml:"type"`
	Prompt        string       `json:"prompt" yaml:"prompt"`
	Options       []string     `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Points        int          `json:"points" yaml:"points"`
}

// AssessmentDefinition is the read-only view of an assessment the engine works against.
type AssessmentDefinition struct {
	ID                     uint          `json:"id" yaml:"id"`
	Title                  string        `json:"title" yaml:"title"`
	Questions              []Question    `json:"questions" yaml:"questions"`
	TimeLimitType          TimeLimitType `json:"time_limit_type" yaml:"time_limit_type"`
	TotalTimeMinutes       int           `json:"total_time_minutes" yaml:"total_time_minutes"`
	PerQuestionTimeSeconds int           `json:"per_question_time_seconds" yaml:"per_question_time_seconds"`
	PassPercentage         float64       `json:"pass_percentage" yaml:"pass_percentage"`
	MaxAttempts            int           `json:"max_attempts" yaml:"max_attempts"`
	RandomizeQuestions     bool          `json:"randomize_questions" yaml:"randomize_questions"`
}

var ErrNoQuestions = errors.New("assessment has no questions")

// Normalize assigns question indexes from slice order and fills the timing default.
func (d *AssessmentDefinition) Normalize() {
	if d.TimeLimitType == "" {
		d.TimeLimitType = TimeLimitTotal
	}
	for i := range d.Questions {
		d.Questions[i].Index = i
	}
}

// Validate checks the structural invariants a definition must satisfy before an
// attempt can be run against it.
func (d *AssessmentDefinition) Validate() error {
	if len(d.Questions) == 0 {
		return ErrNoQuestions
	}
	switch d.TimeLimitType {
	case TimeLimitTotal, TimeLimitPerQuestion:
	default:
		return fmt.Errorf("unknown time_limit_type %q", d.TimeLimitType)
	}
	if d.TotalTimeMinutes < 0 || d.PerQuestionTimeSeconds < 0 {
		return errors.New("time limits must not be negative")
	}
	if d.PassPercentage < 0 || d.PassPercentage > 100 {
		return fmt.Errorf("pass_percentage %.2f out of range", d.PassPercentage)
	}
	if d.MaxAttempts < 0 {
		return errors.New("max_attempts must not be negative")
	}
	for i, q := range d.Questions {
		if q.Index != i {
			return fmt.Errorf("question %d has index %d", i, q.Index)
		}
		if !q.Type.Valid() {
			return fmt.Errorf("question %d: unknown type %q", i, q.Type)
		}
		if q.Type == QuestionMultipleChoice && len(q.Options) == 0 {
			return fmt.Errorf("question %d: multiple_choice requires options", i)
		}
		if q.Points < 0 {
			return fmt.Errorf("question %d: negative points", i)
		}
	}
	return nil
}

// HasQuestion reports whether index addresses a question of this definition.
func (d *AssessmentDefinition) HasQuestion(index int) bool {
	return index >= 0 && index < len(d.Questions)
}
