package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptFailed     AttemptStatus = "failed"
)

func (s AttemptStatus) Finalized() bool {
	return s == AttemptCompleted || s == AttemptFailed
}

// Answer holds one question's response; a nil Value means the question was reached
// but left blank.
type Answer struct {
	Value *string `json:"answer"`
}

func NewAnswer(v string) Answer {
	return Answer{Value: &v}
}

// UnmarshalJSON accepts {"answer": ...} as well as a bare string or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		a.Value = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		a.Value = &s
		return nil
	}
	var obj struct {
		Value *string `json:"answer"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("answer must be an object, string or null: %w", err)
	}
	a.Value = obj.Value
	return nil
}

// Answers maps a question index (definition order) to its response.
type Answers map[int]Answer

func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if v.Value != nil {
			s := *v.Value
			v.Value = &s
		}
		out[k] = v
	}
	return out
}

// QuestionResult 单题判分结果
type QuestionResult struct {
	Index    int  `json:"index"`
	Answered bool `json:"answered"`
	Correct  bool `json:"correct"`
	Points   int  `json:"points"`
	Earned   int  `json:"earned"`
}

// swagger:model Attempt
type Attempt struct {
	UUIDBase
	UserID        uint          `gorm:"not null;uniqueIndex:idx_attempt_number,priority:1" json:"user_id"`
	AssessmentID  uint          `gorm:"not null;uniqueIndex:idx_attempt_number,priority:2" json:"assessment_id"`
	AttemptNumber int           `gorm:"not null;uniqueIndex:idx_attempt_number,priority:3" json:"attempt_number"`
	Status        AttemptStatus `gorm:"size:20;not null;index" json:"status"`
	// ActiveSlot is non-null only while in progress; its unique index allows a single
	// in-progress attempt per (user, assessment).
	ActiveSlot *string `gorm:"size:64;uniqueIndex" json:"-"`
	Version    int     `gorm:"not null" json:"-"`

	TimeStarted              time.Time  `gorm:"not null" json:"time_started"`
	TimeCompleted            *time.Time `json:"time_completed"`
	TimeSpentSeconds         int        `json:"time_spent_seconds"`
	DeclaredTimeSpentSeconds int        `json:"declared_time_spent_seconds"`

	Answers            Answers          `gorm:"serializer:json;type:text" json:"answers"`
	ScorePercentage    float64          `json:"score_percentage"`
	CorrectCount       int              `json:"correct_count"`
	TotalQuestionCount int              `json:"total_question_count"`
	QuestionResults    []QuestionResult `gorm:"serializer:json;type:text" json:"question_results,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func ActiveSlotKey(userID, assessmentID uint) string {
	return fmt.Sprintf("%d:%d", userID, assessmentID)
}
