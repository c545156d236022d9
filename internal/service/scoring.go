package service

import (
	"assessment_engine/internal/model"
	"math"
	"strings"
)

// ScoreResult 判分结果，百分比保留两位小数
type ScoreResult struct {
	Percentage     float64                `json:"percentage"`
	CorrectCount   int                    `json:"correct_count"`
	TotalQuestions int                    `json:"total_questions"`
	EarnedPoints   int                    `json:"earned_points"`
	TotalPoints    int                    `json:"total_points"`
	Questions      []model.QuestionResult `json:"questions"`
}

// Score grades answers against the definition's answer key. It has no side effects.
// Percentage is point-weighted; when every question carries zero points each
// question counts as one point instead.
func Score(def *model.AssessmentDefinition, answers model.Answers) ScoreResult {
	res := ScoreResult{
		TotalQuestions: len(def.Questions),
		Questions:      make([]model.QuestionResult, len(def.Questions)),
	}

	for i, q := range def.Questions {
		qr := model.QuestionResult{Index: q.Index, Points: q.Points}
		if a, ok := answers[q.Index]; ok && a.Value != nil {
			qr.Answered = true
			qr.Correct = IsCorrect(q, *a.Value)
		}
		if qr.Correct {
			qr.Earned = q.Points
			res.CorrectCount++
			res.EarnedPoints += q.Points
		}
		res.TotalPoints += q.Points
		res.Questions[i] = qr
	}

	if res.TotalPoints == 0 {
		res.EarnedPoints = res.CorrectCount
		res.TotalPoints = res.TotalQuestions
	}
	if res.TotalPoints > 0 {
		res.Percentage = round2(100 * float64(res.EarnedPoints) / float64(res.TotalPoints))
	}
	return res
}

// Passed 及格线包含边界
func Passed(percentage, passPercentage float64) bool {
	return percentage >= passPercentage
}

// IsCorrect applies the type-specific comparison for one question.
func IsCorrect(q model.Question, answer string) bool {
	switch q.Type {
	case model.QuestionTrueFalse:
		want, okWant := parseBoolean(q.CorrectAnswer)
		got, okGot := parseBoolean(answer)
		if !okWant {
			return normalizeText(answer) == normalizeText(q.CorrectAnswer)
		}
		return okGot && want == got
	case model.QuestionMultipleChoice, model.QuestionShortAnswer:
		return normalizeText(answer) == normalizeText(q.CorrectAnswer)
	default:
		return false
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseBoolean(s string) (bool, bool) {
	switch normalizeText(s) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off":
		return false, true
	}
	return false, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
