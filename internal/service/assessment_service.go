package service

import (
	"assessment_engine/internal/config"
	"assessment_engine/internal/model"
	"assessment_engine/internal/util"
	"assessment_engine/pkg/logger"
	"assessment_engine/pkg/monitoring"
	"assessment_engine/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AssessmentService runs the attempt lifecycle: start, resume, record, submit.
// It holds no per-attempt state; everything mutable lives in the AttemptStore.
type AssessmentService struct {
	Bank     QuestionBank
	Attempts AttemptStore
	Perms    PermissionChecker
	Notifier Notifier

	mu      sync.RWMutex
	grace   time.Duration
	retries int

	now func() time.Time
}

func NewAssessmentService(bank QuestionBank, attempts AttemptStore, perms PermissionChecker, notifier Notifier, cfg *config.AssessmentConfig) *AssessmentService {
	s := &AssessmentService{
		Bank:     bank,
		Attempts: attempts,
		Perms:    perms,
		Notifier: notifier,
		now:      time.Now,
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig 热更新可调参数
func (s *AssessmentService) SetConfig(cfg *config.AssessmentConfig) {
	grace := 5 * time.Second
	retries := 3
	if cfg != nil {
		if cfg.TimeSpentGraceSeconds >= 0 {
			grace = time.Duration(cfg.TimeSpentGraceSeconds) * time.Second
		}
		if cfg.SubmitRetries > 0 {
			retries = cfg.SubmitRetries
		}
	}
	s.mu.Lock()
	s.grace = grace
	s.retries = retries
	s.mu.Unlock()
}

func (s *AssessmentService) tunables() (time.Duration, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grace, s.retries
}

// QuestionView is a question as shown to the taker: no answer key, no explanation.
type QuestionView struct {
	Index   int                `json:"index"`
	Type    model.QuestionType `json:"type"`
	Prompt  string             `json:"prompt"`
	Options []string           `json:"options,omitempty"`
	Points  int                `json:"points"`
}

type DefinitionView struct {
	ID                     uint                `json:"id"`
	Title                  string              `json:"title"`
	TimeLimitType          model.TimeLimitType `json:"time_limit_type"`
	TotalTimeMinutes       int                 `json:"total_time_minutes"`
	PerQuestionTimeSeconds int                 `json:"per_question_time_seconds"`
	PassPercentage         float64             `json:"pass_percentage"`
	MaxAttempts            int                 `json:"max_attempts"`
	RandomizeQuestions     bool                `json:"randomize_questions"`
	Questions              []QuestionView      `json:"questions"`
}

type TimingView struct {
	Mode               model.TimeLimitType `json:"mode"`
	Enforced           bool                `json:"enforced"`
	AllowsBackward     bool                `json:"allows_backward"`
	TotalSeconds       int                 `json:"total_seconds"`
	PerQuestionSeconds int                 `json:"per_question_seconds"`
	// RemainingSeconds is -1 when no whole-attempt countdown applies.
	RemainingSeconds int `json:"remaining_seconds"`
}

type StartResult struct {
	AttemptID       string              `json:"attempt_id"`
	AttemptNumber   int                 `json:"attempt_number"`
	Status          model.AttemptStatus `json:"status"`
	Resumed         bool                `json:"resumed"`
	TimeStarted     time.Time           `json:"time_started"`
	Definition      DefinitionView      `json:"definition_view"`
	ExistingAnswers model.Answers       `json:"existing_answers"`
	Timing          TimingView          `json:"timing"`
}

type SubmitResult struct {
	AttemptID        string                 `json:"attempt_id"`
	ScorePercentage  float64                `json:"score_percentage"`
	Status           model.AttemptStatus    `json:"status"`
	CorrectCount     int                    `json:"correct_count"`
	TotalQuestions   int                    `json:"total_questions"`
	PassPercentage   float64                `json:"pass_percentage"`
	TimeSpentSeconds int                    `json:"time_spent_seconds"`
	Questions        []model.QuestionResult `json:"questions"`
}

type PreviewResult struct {
	ScoreResult
	PassPercentage float64 `json:"pass_percentage"`
	Passed         bool    `json:"passed"`
}

// Start returns the caller's in-progress attempt for the assessment, or creates the
// next one when none is open and the attempt cap allows it.
func (s *AssessmentService) Start(ctx context.Context, caller Caller, assessmentID uint) (res *StartResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "assessment.start",
		attribute.Int64("user.id", int64(caller.UserID)),
		attribute.Int64("assessment.id", int64(assessmentID)))
	defer func() { tracing.End(span, err) }()

	if !s.Perms.Allowed(ctx, util.CapabilityTakeAssessment, caller) {
		return nil, util.ErrPermissionDenied
	}

	def, err := s.Bank.GetDefinition(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	attempt, resumed, err := s.resumeOrCreate(ctx, caller, def)
	if err != nil {
		if errors.Is(err, util.ErrMaxAttemptsExceeded) {
			monitoring.AttemptsStarted.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	outcome := "created"
	msg := "attempt started"
	if resumed {
		outcome = "resumed"
		msg = "attempt resumed"
	}
	monitoring.AttemptsStarted.WithLabelValues(outcome).Inc()
	logger.Log.Info(msg,
		zap.String("attemptId", attempt.ID),
		zap.Uint("userId", caller.UserID),
		zap.Uint("assessmentId", assessmentID),
		zap.Int("attemptNumber", attempt.AttemptNumber))
	span.SetAttributes(attribute.String("attempt.id", attempt.ID), attribute.Bool("attempt.resumed", resumed))

	policy := PolicyFor(def)
	return &StartResult{
		AttemptID:       attempt.ID,
		AttemptNumber:   attempt.AttemptNumber,
		Status:          attempt.Status,
		Resumed:         resumed,
		TimeStarted:     attempt.TimeStarted,
		Definition:      viewOf(def, displayOrder(def, attempt.ID)),
		ExistingAnswers: attempt.Answers.Clone(),
		Timing: TimingView{
			Mode:               policy.Mode,
			Enforced:           policy.Enforced(),
			AllowsBackward:     policy.AllowsBackward(),
			TotalSeconds:       int(policy.Total / time.Second),
			PerQuestionSeconds: int(policy.PerQuestion / time.Second),
			RemainingSeconds:   policy.RemainingSeconds(attempt.TimeStarted, s.now()),
		},
	}, nil
}

// resumeOrCreate 先查进行中记录；创建时撞上唯一约束说明并发 start 已建好记录，重新读取并恢复
func (s *AssessmentService) resumeOrCreate(ctx context.Context, caller Caller, def *model.AssessmentDefinition) (*model.Attempt, bool, error) {
	_, retries := s.tunables()
	for i := 0; i <= retries; i++ {
		latest, err := s.Attempts.FindLatest(ctx, caller.UserID, def.ID)
		if err != nil {
			return nil, false, err
		}
		if latest != nil && latest.Status == model.AttemptInProgress {
			return latest, true, nil
		}

		prior, err := s.Attempts.CountFinalized(ctx, caller.UserID, def.ID)
		if err != nil {
			return nil, false, err
		}
		if def.MaxAttempts > 0 && prior >= int64(def.MaxAttempts) {
			return nil, false, util.ErrMaxAttemptsExceeded
		}

		attempt := &model.Attempt{
			UserID:        caller.UserID,
			AssessmentID:  def.ID,
			AttemptNumber: int(prior) + 1,
			Status:        model.AttemptInProgress,
			TimeStarted:   s.now(),
			Answers:       model.Answers{},
		}
		err = s.Attempts.Create(ctx, attempt)
		if errors.Is(err, util.ErrAttemptInProgress) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return attempt, false, nil
	}
	return nil, false, util.ErrAttemptConflict
}

// RecordAnswer stores one question's answer on an in-progress attempt. Replaying the
// same answer is a no-op; a different answer overwrites the previous one.
func (s *AssessmentService) RecordAnswer(ctx context.Context, caller Caller, attemptID string, questionIndex int, answer *string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "assessment.record_answer",
		attribute.String("attempt.id", attemptID),
		attribute.Int("question.index", questionIndex))
	defer func() { tracing.End(span, err) }()

	if !s.Perms.Allowed(ctx, util.CapabilityTakeAssessment, caller) {
		return util.ErrPermissionDenied
	}

	_, retries := s.tunables()
	for i := 0; i <= retries; i++ {
		attempt, def, err := s.openAttempt(ctx, caller, attemptID)
		if err != nil {
			return err
		}
		if !def.HasQuestion(questionIndex) {
			return fmt.Errorf("%w: question index %d out of range", util.ErrInvalidAnswerPayload, questionIndex)
		}

		if prev, ok := attempt.Answers[questionIndex]; ok && sameAnswer(prev.Value, answer) {
			return nil
		}

		answers := attempt.Answers.Clone()
		answers[questionIndex] = copyAnswer(answer)
		attempt.Answers = answers

		err = s.Attempts.UpdateAnswers(ctx, attempt)
		if errors.Is(err, util.ErrAttemptConflict) {
			continue
		}
		return err
	}
	return util.ErrAttemptConflict
}

// Submit merges the snapshot over the recorded answers, scores the result and
// finalizes the attempt. A finalized attempt is never re-scored.
func (s *AssessmentService) Submit(ctx context.Context, caller Caller, attemptID string, snapshot model.Answers, declaredSeconds int) (res *SubmitResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "assessment.submit", attribute.String("attempt.id", attemptID))
	defer func() { tracing.End(span, err) }()

	if !s.Perms.Allowed(ctx, util.CapabilityTakeAssessment, caller) {
		return nil, util.ErrPermissionDenied
	}

	grace, retries := s.tunables()
	for i := 0; i <= retries; i++ {
		attempt, def, err := s.openAttempt(ctx, caller, attemptID)
		if err != nil {
			return nil, err
		}
		if err := checkIndexes(def, snapshot); err != nil {
			return nil, err
		}

		merged := mergeAnswers(attempt.Answers, snapshot)
		score := Score(def, merged)
		status := model.AttemptFailed
		if Passed(score.Percentage, def.PassPercentage) {
			status = model.AttemptCompleted
		}

		now := s.now()
		attempt.Answers = merged
		attempt.Status = status
		attempt.TimeCompleted = &now
		attempt.DeclaredTimeSpentSeconds = declaredSeconds
		attempt.TimeSpentSeconds = BoundElapsed(declaredSeconds, attempt.TimeStarted, now, grace)
		attempt.ScorePercentage = score.Percentage
		attempt.CorrectCount = score.CorrectCount
		attempt.TotalQuestionCount = score.TotalQuestions
		attempt.QuestionResults = score.Questions

		err = s.Attempts.Finalize(ctx, attempt)
		if errors.Is(err, util.ErrAttemptConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		monitoring.AttemptsFinalized.WithLabelValues(string(status)).Inc()
		monitoring.ScorePercentage.Observe(score.Percentage)
		logger.Log.Info("attempt finalized",
			zap.String("attemptId", attempt.ID),
			zap.Uint("userId", attempt.UserID),
			zap.Uint("assessmentId", attempt.AssessmentID),
			zap.String("status", string(status)),
			zap.Float64("score", score.Percentage))

		if s.Notifier != nil {
			s.Notifier.Notify(util.EventAssessmentSubmitted, map[string]interface{}{
				"user_id":       attempt.UserID,
				"assessment_id": attempt.AssessmentID,
				"attempt_id":    attempt.ID,
				"score":         score.Percentage,
				"status":        string(status),
				"email":         caller.Email,
			})
		}

		return &SubmitResult{
			AttemptID:        attempt.ID,
			ScorePercentage:  score.Percentage,
			Status:           status,
			CorrectCount:     score.CorrectCount,
			TotalQuestions:   score.TotalQuestions,
			PassPercentage:   def.PassPercentage,
			TimeSpentSeconds: attempt.TimeSpentSeconds,
			Questions:        score.Questions,
		}, nil
	}
	return nil, util.ErrAttemptConflict
}

// GetAttempt returns one of the caller's attempts.
func (s *AssessmentService) GetAttempt(ctx context.Context, caller Caller, attemptID string) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != caller.UserID {
		return nil, util.ErrAttemptNotOwned
	}
	return attempt, nil
}

// ListAttempts returns the caller's attempts at an assessment, newest first.
func (s *AssessmentService) ListAttempts(ctx context.Context, caller Caller, assessmentID uint) ([]model.Attempt, error) {
	return s.Attempts.ListByUser(ctx, caller.UserID, assessmentID)
}

// PreviewScore grades answers without touching any attempt.
func (s *AssessmentService) PreviewScore(ctx context.Context, caller Caller, assessmentID uint, answers model.Answers) (*PreviewResult, error) {
	if !s.Perms.Allowed(ctx, util.CapabilityPreviewScore, caller) {
		return nil, util.ErrPermissionDenied
	}
	def, err := s.Bank.GetDefinition(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := checkIndexes(def, answers); err != nil {
		return nil, err
	}
	score := Score(def, answers)
	return &PreviewResult{
		ScoreResult:    score,
		PassPercentage: def.PassPercentage,
		Passed:         Passed(score.Percentage, def.PassPercentage),
	}, nil
}

// ClockSession is the countdown state for one live clock connection. Positions in
// Session are positions in Order; Order maps them back to question indexes.
type ClockSession struct {
	Attempt *model.Attempt
	Order   []int
	Session *TimingSession
}

func (c *ClockSession) QuestionIndex(position int) int {
	if position < 0 || position >= len(c.Order) {
		return -1
	}
	return c.Order[position]
}

// AttemptClock builds an advisory timing session for an in-progress attempt. In
// per-question mode it starts at the first question that has no recorded answer.
func (s *AssessmentService) AttemptClock(ctx context.Context, caller Caller, attemptID string) (*ClockSession, error) {
	attempt, def, err := s.openAttempt(ctx, caller, attemptID)
	if err != nil {
		return nil, err
	}
	order := displayOrder(def, attempt.ID)
	policy := PolicyFor(def)

	from := 0
	if policy.Mode == model.TimeLimitPerQuestion {
		for from < len(order)-1 {
			if _, ok := attempt.Answers[order[from]]; !ok {
				break
			}
			from++
		}
	}
	return &ClockSession{
		Attempt: attempt,
		Order:   order,
		Session: NewTimingSession(policy, attempt.TimeStarted, s.now(), from),
	}, nil
}

// openAttempt loads an attempt the caller may still write to, with its definition.
func (s *AssessmentService) openAttempt(ctx context.Context, caller Caller, attemptID string) (*model.Attempt, *model.AssessmentDefinition, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.UserID != caller.UserID {
		return nil, nil, util.ErrAttemptNotOwned
	}
	if attempt.Status.Finalized() {
		return nil, nil, util.ErrAttemptAlreadyFinalized
	}
	def, err := s.Bank.GetDefinition(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, def, nil
}

func checkIndexes(def *model.AssessmentDefinition, answers model.Answers) error {
	for idx := range answers {
		if !def.HasQuestion(idx) {
			return fmt.Errorf("%w: question index %d out of range", util.ErrInvalidAnswerPayload, idx)
		}
	}
	return nil
}

// mergeAnswers 以快照覆盖已记录答案；快照中的空答案不覆盖已有的非空答案
func mergeAnswers(recorded, snapshot model.Answers) model.Answers {
	merged := recorded.Clone()
	for idx, a := range snapshot {
		if a.Value == nil {
			if prev, ok := merged[idx]; ok && prev.Value != nil {
				continue
			}
		}
		merged[idx] = copyAnswer(a.Value)
	}
	return merged
}

func copyAnswer(v *string) model.Answer {
	if v == nil {
		return model.Answer{}
	}
	return model.NewAnswer(*v)
}

func sameAnswer(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// displayOrder is the order questions are shown in for an attempt. Randomized
// definitions are shuffled with a seed derived from the attempt id, so a resumed
// attempt sees the same order it started with.
func displayOrder(def *model.AssessmentDefinition, attemptID string) []int {
	order := make([]int, len(def.Questions))
	for i := range order {
		order[i] = def.Questions[i].Index
	}
	if !def.RandomizeQuestions || len(order) < 2 {
		return order
	}
	h := fnv.New64a()
	h.Write([]byte(attemptID))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

func viewOf(def *model.AssessmentDefinition, order []int) DefinitionView {
	v := DefinitionView{
		ID:                     def.ID,
		Title:                  def.Title,
		TimeLimitType:          def.TimeLimitType,
		TotalTimeMinutes:       def.TotalTimeMinutes,
		PerQuestionTimeSeconds: def.PerQuestionTimeSeconds,
		PassPercentage:         def.PassPercentage,
		MaxAttempts:            def.MaxAttempts,
		RandomizeQuestions:     def.RandomizeQuestions,
		Questions:              make([]QuestionView, 0, len(order)),
	}
	for _, idx := range order {
		q := def.Questions[idx]
		v.Questions = append(v.Questions, QuestionView{
			Index:   q.Index,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
			Points:  q.Points,
		})
	}
	return v
}
