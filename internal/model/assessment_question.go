package model

// AssessmentQuestion 测评题目（内容协作方写入，引擎只读）
// swagger:model AssessmentQuestion
type AssessmentQuestion struct {
	BaseModel
	AssessmentID  uint         `gorm:"index;not null" json:"assessment_id"`
	QuestionType  QuestionType `gorm:"size:50;not null" json:"question_type"`
	Prompt        string       `gorm:"type:text;not null" json:"prompt"`
	Options       []string     `gorm:"serializer:json;type:text" json:"options,omitempty"`
	CorrectAnswer string       `gorm:"type:text" json:"correct_answer"`
	Explanation   string       `gorm:"type:text" json:"explanation"`
	Points        int          `gorm:"not null" json:"points"`
	Order         int          `gorm:"default:0" json:"order"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

func (q AssessmentQuestion) ToQuestion(index int) Question {
	return Question{
		Index:         index,
		Type:          q.QuestionType,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Points:        q.Points,
	}
}
