package service

import (
	"assessment_engine/internal/model"
	"errors"
	"time"
)

var (
	ErrBackwardNavigation = errors.New("backward navigation is not allowed in per-question timing")
	ErrNoPreviousQuestion = errors.New("already at the first question")
	ErrTimingSessionDone  = errors.New("timing session already ended")
)

// TimingPolicy is the countdown discipline of a definition.
type TimingPolicy struct {
	Mode        model.TimeLimitType
	Total       time.Duration
	PerQuestion time.Duration
	Questions   int
}

func PolicyFor(def *model.AssessmentDefinition) TimingPolicy {
	return TimingPolicy{
		Mode:        def.TimeLimitType,
		Total:       time.Duration(def.TotalTimeMinutes) * time.Minute,
		PerQuestion: time.Duration(def.PerQuestionTimeSeconds) * time.Second,
		Questions:   len(def.Questions),
	}
}

// Enforced reports whether a countdown applies at all.
func (p TimingPolicy) Enforced() bool {
	switch p.Mode {
	case model.TimeLimitTotal:
		return p.Total > 0
	case model.TimeLimitPerQuestion:
		return p.PerQuestion > 0
	}
	return false
}

func (p TimingPolicy) AllowsBackward() bool {
	return p.Mode != model.TimeLimitPerQuestion
}

// RemainingSeconds is the whole-attempt time left in total mode, -1 when no
// whole-attempt countdown applies.
func (p TimingPolicy) RemainingSeconds(startedAt, now time.Time) int {
	if p.Mode != model.TimeLimitTotal || p.Total <= 0 {
		return -1
	}
	left := p.Total - now.Sub(startedAt)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// BoundElapsed clamps a client-declared duration to what the server could have
// observed since the attempt started, plus grace for clock skew and latency.
func BoundElapsed(declaredSeconds int, startedAt, now time.Time, grace time.Duration) int {
	if declaredSeconds < 0 {
		return 0
	}
	upper := int((now.Sub(startedAt) + grace) / time.Second)
	if upper < 0 {
		upper = 0
	}
	if declaredSeconds > upper {
		return upper
	}
	return declaredSeconds
}

type TimingActionKind string

const (
	ActionNone         TimingActionKind = "none"
	ActionAdvance      TimingActionKind = "advance"
	ActionSubmit       TimingActionKind = "submit"
	ActionForceAdvance TimingActionKind = "force_advance"
	ActionForceSubmit  TimingActionKind = "force_submit"
)

// TimingAction tells the client what to do. Index is the question the action
// applies to: the question being left for advances, the last one for submits.
type TimingAction struct {
	Kind  TimingActionKind `json:"kind"`
	Index int              `json:"index"`
}

// TimingSession drives the countdown of one attempt view. It is advisory: the
// client records answers and submits, the session only says when.
type TimingSession struct {
	policy          TimingPolicy
	startedAt       time.Time
	questionStarted time.Time
	current         int
	done            bool
}

// NewTimingSession starts at question index from. The whole-attempt clock runs from
// startedAt so a resumed view keeps the original deadline.
func NewTimingSession(p TimingPolicy, startedAt, now time.Time, from int) *TimingSession {
	if from < 0 {
		from = 0
	}
	if p.Questions > 0 && from >= p.Questions {
		from = p.Questions - 1
	}
	return &TimingSession{
		policy:          p,
		startedAt:       startedAt,
		questionStarted: now,
		current:         from,
	}
}

func (s *TimingSession) Current() int { return s.current }

func (s *TimingSession) Done() bool { return s.done }

func (s *TimingSession) Policy() TimingPolicy { return s.policy }

// Remaining is the time left on the active countdown, 0 when none applies.
func (s *TimingSession) Remaining(now time.Time) time.Duration {
	if !s.policy.Enforced() || s.done {
		return 0
	}
	var left time.Duration
	if s.policy.Mode == model.TimeLimitPerQuestion {
		left = s.policy.PerQuestion - now.Sub(s.questionStarted)
	} else {
		left = s.policy.Total - now.Sub(s.startedAt)
	}
	if left < 0 {
		return 0
	}
	return left
}

// Tick checks the countdown and reports a forced action on expiry.
func (s *TimingSession) Tick(now time.Time) TimingAction {
	if s.done || !s.policy.Enforced() {
		return TimingAction{Kind: ActionNone, Index: s.current}
	}

	if s.policy.Mode == model.TimeLimitTotal {
		if now.Sub(s.startedAt) >= s.policy.Total {
			s.done = true
			return TimingAction{Kind: ActionForceSubmit, Index: s.current}
		}
		return TimingAction{Kind: ActionNone, Index: s.current}
	}

	if now.Sub(s.questionStarted) < s.policy.PerQuestion {
		return TimingAction{Kind: ActionNone, Index: s.current}
	}
	expired := s.current
	if s.isLast() {
		s.done = true
		return TimingAction{Kind: ActionForceSubmit, Index: expired}
	}
	s.current++
	s.questionStarted = now
	return TimingAction{Kind: ActionForceAdvance, Index: expired}
}

// Advance moves forward manually; on the last question it asks for a submit.
func (s *TimingSession) Advance(now time.Time) (TimingAction, error) {
	if s.done {
		return TimingAction{Kind: ActionNone, Index: s.current}, ErrTimingSessionDone
	}
	if s.isLast() {
		s.done = true
		return TimingAction{Kind: ActionSubmit, Index: s.current}, nil
	}
	left := s.current
	s.current++
	s.questionStarted = now
	return TimingAction{Kind: ActionAdvance, Index: left}, nil
}

// Previous moves back one question; only total-time mode allows it.
func (s *TimingSession) Previous() (int, error) {
	if s.done {
		return s.current, ErrTimingSessionDone
	}
	if !s.policy.AllowsBackward() {
		return s.current, ErrBackwardNavigation
	}
	if s.current == 0 {
		return s.current, ErrNoPreviousQuestion
	}
	s.current--
	return s.current, nil
}

func (s *TimingSession) isLast() bool {
	return s.current >= s.policy.Questions-1
}
