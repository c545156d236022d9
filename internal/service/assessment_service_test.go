package service

import (
	"assessment_engine/internal/config"
	"assessment_engine/internal/model"
	"assessment_engine/internal/util"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// memoryAttemptStore mirrors the conditional-update rules of the gorm store.
type memoryAttemptStore struct {
	mu            sync.Mutex
	rows          map[string]model.Attempt
	seq           int
	finalizeFails int
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{rows: map[string]model.Attempt{}}
}

func cloneAttempt(a model.Attempt) model.Attempt {
	a.Answers = a.Answers.Clone()
	a.QuestionResults = append([]model.QuestionResult(nil), a.QuestionResults...)
	return a
}

func (s *memoryAttemptStore) Create(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.UserID != a.UserID || r.AssessmentID != a.AssessmentID {
			continue
		}
		if r.Status == model.AttemptInProgress || r.AttemptNumber == a.AttemptNumber {
			return util.ErrAttemptInProgress
		}
	}
	s.seq++
	a.ID = fmt.Sprintf("attempt-%d", s.seq)
	a.Status = model.AttemptInProgress
	a.Version = 1
	if a.Answers == nil {
		a.Answers = model.Answers{}
	}
	s.rows[a.ID] = cloneAttempt(*a)
	return nil
}

func (s *memoryAttemptStore) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	c := cloneAttempt(r)
	return &c, nil
}

func (s *memoryAttemptStore) FindLatest(ctx context.Context, userID, assessmentID uint) (*model.Attempt, error) {
	list, _ := s.ListByUser(ctx, userID, assessmentID)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *memoryAttemptStore) CountFinalized(ctx context.Context, userID, assessmentID uint) (int64, error) {
	list, _ := s.ListByUser(ctx, userID, assessmentID)
	var n int64
	for _, a := range list {
		if a.Status.Finalized() {
			n++
		}
	}
	return n, nil
}

func (s *memoryAttemptStore) ListByUser(ctx context.Context, userID, assessmentID uint) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, r := range s.rows {
		if r.UserID == userID && r.AssessmentID == assessmentID {
			out = append(out, cloneAttempt(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber > out[j].AttemptNumber })
	return out, nil
}

func (s *memoryAttemptStore) cas(a *model.Attempt, apply func(*model.Attempt)) error {
	r, ok := s.rows[a.ID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if r.Status != model.AttemptInProgress {
		return util.ErrAttemptAlreadyFinalized
	}
	if r.Version != a.Version {
		return util.ErrAttemptConflict
	}
	apply(&r)
	r.Version++
	a.Version = r.Version
	s.rows[a.ID] = r
	return nil
}

func (s *memoryAttemptStore) UpdateAnswers(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cas(a, func(r *model.Attempt) { r.Answers = a.Answers.Clone() })
}

func (s *memoryAttemptStore) Finalize(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeFails > 0 {
		s.finalizeFails--
		// 模拟并发写入：版本号被其他请求推进
		r := s.rows[a.ID]
		r.Version++
		s.rows[a.ID] = r
	}
	return s.cas(a, func(r *model.Attempt) {
		saved := cloneAttempt(*a)
		saved.Version = r.Version
		*r = saved
	})
}

type memoryBank map[uint]*model.AssessmentDefinition

func (b memoryBank) GetDefinition(ctx context.Context, id uint) (*model.AssessmentDefinition, error) {
	def, ok := b[id]
	if !ok || len(def.Questions) == 0 {
		return nil, util.ErrAssessmentNotFound
	}
	c := *def
	c.Questions = append([]model.Question(nil), def.Questions...)
	return &c, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (n *recordingNotifier) Notify(name string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	payload["event"] = name
	n.events = append(n.events, payload)
}

const secretKey = "SECRET-KEY-42"

func testDefinition(id uint, maxAttempts int) *model.AssessmentDefinition {
	def := &model.AssessmentDefinition{
		ID:               id,
		Title:            "Quiz",
		TimeLimitType:    model.TimeLimitTotal,
		TotalTimeMinutes: 10,
		PassPercentage:   70,
		MaxAttempts:      maxAttempts,
		Questions: []model.Question{
			{Type: model.QuestionMultipleChoice, Prompt: "q0", Options: []string{"A", secretKey}, CorrectAnswer: secretKey, Explanation: "because", Points: 1},
			{Type: model.QuestionTrueFalse, Prompt: "q1", CorrectAnswer: "true", Points: 1},
			{Type: model.QuestionShortAnswer, Prompt: "q2", CorrectAnswer: " Paris ", Points: 2},
		},
	}
	def.Normalize()
	return def
}

type fixture struct {
	svc      *AssessmentService
	store    *memoryAttemptStore
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(defs ...*model.AssessmentDefinition) *fixture {
	bank := memoryBank{}
	for _, d := range defs {
		bank[d.ID] = d
	}
	f := &fixture{
		store:    newMemoryAttemptStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	perms := NewRolePermissions(map[string][]string{
		util.CapabilityTakeAssessment: {string(model.Student)},
		util.CapabilityPreviewScore:   {string(model.Teacher)},
	})
	f.svc = NewAssessmentService(bank, f.store, perms, f.notifier, &config.AssessmentConfig{TimeSpentGraceSeconds: 5, SubmitRetries: 3})
	f.svc.now = func() time.Time { return f.now }
	return f
}

var (
	student = Caller{UserID: 7, Role: model.Student, Email: "s@example.com"}
	other   = Caller{UserID: 8, Role: model.Student}
	teacher = Caller{UserID: 9, Role: model.Teacher}
)

func inProgressCount(t *testing.T, s *memoryAttemptStore, userID, assessmentID uint) int {
	t.Helper()
	list, _ := s.ListByUser(context.Background(), userID, assessmentID)
	n := 0
	for _, a := range list {
		if a.Status == model.AttemptInProgress {
			n++
		}
	}
	return n
}

func TestStartCreatesThenResumes(t *testing.T) {
	f := newFixture(testDefinition(1, 3))
	ctx := context.Background()

	first, err := f.svc.Start(ctx, student, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Resumed || first.AttemptNumber != 1 || first.Status != model.AttemptInProgress {
		t.Fatalf("first start = %+v", first)
	}
	if first.Timing.RemainingSeconds != 600 {
		t.Errorf("RemainingSeconds = %d, want 600", first.Timing.RemainingSeconds)
	}

	if err := f.svc.RecordAnswer(ctx, student, first.AttemptID, 1, strPtr("true")); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	f.now = f.now.Add(2 * time.Minute)
	for i := 0; i < 3; i++ {
		again, err := f.svc.Start(ctx, student, 1)
		if err != nil {
			t.Fatalf("Start again: %v", err)
		}
		if !again.Resumed || again.AttemptID != first.AttemptID || again.AttemptNumber != 1 {
			t.Fatalf("resume = %+v, want attempt %s resumed", again, first.AttemptID)
		}
		if v := again.ExistingAnswers[1].Value; v == nil || *v != "true" {
			t.Fatalf("ExistingAnswers = %+v", again.ExistingAnswers)
		}
		if again.Timing.RemainingSeconds != 480 {
			t.Errorf("RemainingSeconds on resume = %d, want 480", again.Timing.RemainingSeconds)
		}
	}
	if n := inProgressCount(t, f.store, student.UserID, 1); n != 1 {
		t.Fatalf("in-progress attempts = %d, want 1", n)
	}
}

func TestStartConcurrentKeepsSingleInProgress(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	errs := make([]error, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Start(ctx, student, 1)
			errs[i] = err
			if err == nil {
				ids[i] = res.AttemptID
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("Start %d returned %s, want %s", i, ids[i], ids[0])
		}
	}
	if n := inProgressCount(t, f.store, student.UserID, 1); n != 1 {
		t.Fatalf("in-progress attempts = %d, want 1", n)
	}
}

func TestStartHidesAnswerKey(t *testing.T) {
	def := testDefinition(1, 0)
	def.RandomizeQuestions = true
	f := newFixture(def)

	res, err := f.svc.Start(context.Background(), student, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	for _, leak := range []string{"correct_answer", "explanation", "because", "Paris"} {
		if strings.Contains(body, leak) {
			t.Errorf("start response leaks %q: %s", leak, body)
		}
	}
}

func TestRandomizedOrderStableAcrossResume(t *testing.T) {
	def := testDefinition(1, 0)
	for i := 3; i < 12; i++ {
		def.Questions = append(def.Questions, model.Question{Type: model.QuestionShortAnswer, Prompt: fmt.Sprint(i), CorrectAnswer: "x", Points: 1})
	}
	def.RandomizeQuestions = true
	def.Normalize()
	f := newFixture(def)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, student, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := f.svc.Start(ctx, student, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	seen := map[int]bool{}
	for i, q := range first.Definition.Questions {
		if second.Definition.Questions[i].Index != q.Index {
			t.Fatalf("order changed on resume at %d: %d vs %d", i, q.Index, second.Definition.Questions[i].Index)
		}
		seen[q.Index] = true
	}
	if len(seen) != len(def.Questions) {
		t.Fatalf("shuffled view is not a permutation: %v", seen)
	}
}

func TestStartMaxAttempts(t *testing.T) {
	f := newFixture(testDefinition(1, 3))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := f.svc.Start(ctx, student, 1)
		if err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		if res.AttemptNumber != i {
			t.Fatalf("AttemptNumber = %d, want %d", res.AttemptNumber, i)
		}
		if _, err := f.svc.Submit(ctx, student, res.AttemptID, nil, 10); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	if _, err := f.svc.Start(ctx, student, 1); !errors.Is(err, util.ErrMaxAttemptsExceeded) {
		t.Fatalf("fourth Start err = %v, want ErrMaxAttemptsExceeded", err)
	}

	// 已有进行中记录时不检查次数上限
	open := &model.Attempt{UserID: student.UserID, AssessmentID: 1, AttemptNumber: 4, TimeStarted: f.now}
	if err := f.store.Create(context.Background(), open); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Start(ctx, student, 1)
	if err != nil {
		t.Fatalf("Start with in-progress attempt: %v", err)
	}
	if !res.Resumed || res.AttemptID != open.ID {
		t.Fatalf("Start = %+v, want resume of %s", res, open.ID)
	}
}

func TestStartErrors(t *testing.T) {
	empty := &model.AssessmentDefinition{ID: 2, Title: "empty"}
	f := newFixture(testDefinition(1, 0), empty)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, teacher, 1); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("teacher Start err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.Start(ctx, student, 2); !errors.Is(err, util.ErrAssessmentNotFound) {
		t.Errorf("empty assessment err = %v, want ErrAssessmentNotFound", err)
	}
	if _, err := f.svc.Start(ctx, student, 99); !errors.Is(err, util.ErrAssessmentNotFound) {
		t.Errorf("missing assessment err = %v, want ErrAssessmentNotFound", err)
	}
}

func TestRecordAnswerIdempotent(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	if err := f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, strPtr("A")); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	once, _ := f.store.FindByID(ctx, res.AttemptID)

	if err := f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, strPtr("A")); err != nil {
		t.Fatalf("RecordAnswer replay: %v", err)
	}
	twice, _ := f.store.FindByID(ctx, res.AttemptID)

	if len(once.Answers) != 1 || len(twice.Answers) != 1 || *twice.Answers[0].Value != "A" {
		t.Fatalf("answers after replay = %+v", twice.Answers)
	}
	if once.Version != twice.Version {
		t.Errorf("replay wrote again: version %d -> %d", once.Version, twice.Version)
	}

	if err := f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, nil); err != nil {
		t.Fatalf("RecordAnswer nil: %v", err)
	}
	cleared, _ := f.store.FindByID(ctx, res.AttemptID)
	if a, ok := cleared.Answers[0]; !ok || a.Value != nil {
		t.Errorf("nil answer not recorded: %+v", cleared.Answers)
	}
}

func TestRecordAnswerErrors(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	tests := []struct {
		name    string
		caller  Caller
		attempt string
		index   int
		want    error
	}{
		{"index too large", student, res.AttemptID, 3, util.ErrInvalidAnswerPayload},
		{"negative index", student, res.AttemptID, -1, util.ErrInvalidAnswerPayload},
		{"unknown attempt", student, "nope", 0, util.ErrAttemptNotFound},
		{"other user", other, res.AttemptID, 0, util.ErrAttemptNotOwned},
		{"no permission", teacher, res.AttemptID, 0, util.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.RecordAnswer(ctx, tt.caller, tt.attempt, tt.index, strPtr("A"))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.svc.Submit(ctx, student, res.AttemptID, nil, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, strPtr("A")); !errors.Is(err, util.ErrAttemptAlreadyFinalized) {
		t.Errorf("record after submit err = %v", err)
	}
}

func TestSubmitRoundTripWithEmptySnapshot(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	for idx, v := range []string{secretKey, "yes", "paris"} {
		if err := f.svc.RecordAnswer(ctx, student, res.AttemptID, idx, strPtr(v)); err != nil {
			t.Fatalf("RecordAnswer %d: %v", idx, err)
		}
	}

	out, err := f.svc.Submit(ctx, student, res.AttemptID, model.Answers{}, 60)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.ScorePercentage != 100 || out.CorrectCount != 3 || out.TotalQuestions != 3 || out.Status != model.AttemptCompleted {
		t.Fatalf("Submit = %+v", out)
	}
	if out.PassPercentage != 70 {
		t.Errorf("PassPercentage = %v", out.PassPercentage)
	}
}

func TestSubmitMergesSnapshot(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, strPtr("A"))
	f.svc.RecordAnswer(ctx, student, res.AttemptID, 2, strPtr("paris"))

	// 0 覆盖已记录答案；2 为空答案，不覆盖
	snapshot := model.Answers{
		0: model.NewAnswer(secretKey),
		1: model.NewAnswer("false"),
		2: model.Answer{},
	}
	out, err := f.svc.Submit(ctx, student, res.AttemptID, snapshot, 30)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// q0 1 分 + q2 2 分，共 4 分
	if out.ScorePercentage != 75 || out.CorrectCount != 2 || out.Status != model.AttemptCompleted {
		t.Fatalf("Submit = %+v", out)
	}

	stored, _ := f.store.FindByID(ctx, res.AttemptID)
	if *stored.Answers[0].Value != secretKey || *stored.Answers[2].Value != "paris" {
		t.Errorf("stored answers = %+v", stored.Answers)
	}
}

func TestSubmitFinalizesOnce(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	first, err := f.svc.Submit(ctx, student, res.AttemptID, model.Answers{0: model.NewAnswer("A")}, 20)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.Status != model.AttemptFailed || first.ScorePercentage != 0 {
		t.Fatalf("first submit = %+v", first)
	}

	all := model.Answers{0: model.NewAnswer(secretKey), 1: model.NewAnswer("true"), 2: model.NewAnswer("Paris")}
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Submit(ctx, student, res.AttemptID, all, 20); !errors.Is(err, util.ErrAttemptAlreadyFinalized) {
			t.Fatalf("resubmit err = %v, want ErrAttemptAlreadyFinalized", err)
		}
	}

	stored, _ := f.store.FindByID(ctx, res.AttemptID)
	if stored.Status != model.AttemptFailed || stored.ScorePercentage != 0 {
		t.Errorf("stored attempt changed: %+v", stored)
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("events = %d, want 1", len(f.notifier.events))
	}
}

func TestSubmitRecordsResultAndNotifies(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)
	f.now = f.now.Add(100 * time.Second)

	out, err := f.svc.Submit(ctx, student, res.AttemptID, model.Answers{2: model.NewAnswer("PARIS")}, 9999)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.TimeSpentSeconds != 105 {
		t.Errorf("TimeSpentSeconds = %d, want clamp to 105", out.TimeSpentSeconds)
	}

	stored, _ := f.store.FindByID(ctx, res.AttemptID)
	if stored.TimeCompleted == nil || !stored.TimeCompleted.Equal(f.now) {
		t.Errorf("TimeCompleted = %v, want %v", stored.TimeCompleted, f.now)
	}
	if stored.DeclaredTimeSpentSeconds != 9999 || stored.TimeSpentSeconds != 105 {
		t.Errorf("time spent = %d declared %d", stored.TimeSpentSeconds, stored.DeclaredTimeSpentSeconds)
	}
	if stored.ScorePercentage != 50 || stored.CorrectCount != 1 || stored.TotalQuestionCount != 3 || stored.Status != model.AttemptFailed {
		t.Errorf("stored result = %+v", stored)
	}

	if len(f.notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(f.notifier.events))
	}
	ev := f.notifier.events[0]
	if ev["event"] != util.EventAssessmentSubmitted || ev["attempt_id"] != res.AttemptID || ev["score"] != 50.0 || ev["status"] != "failed" || ev["email"] != student.Email {
		t.Errorf("event = %+v", ev)
	}
}

func TestSubmitRetriesOnConflict(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)
	f.store.finalizeFails = 2

	out, err := f.svc.Submit(ctx, student, res.AttemptID, model.Answers{1: model.NewAnswer("1")}, 5)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.CorrectCount != 1 {
		t.Errorf("CorrectCount = %d", out.CorrectCount)
	}

	f2 := newFixture(testDefinition(1, 0))
	res2, _ := f2.svc.Start(ctx, student, 1)
	f2.store.finalizeFails = 10
	if _, err := f2.svc.Submit(ctx, student, res2.AttemptID, nil, 5); !errors.Is(err, util.ErrAttemptConflict) {
		t.Errorf("exhausted retries err = %v, want ErrAttemptConflict", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)

	if _, err := f.svc.Submit(ctx, other, res.AttemptID, nil, 0); !errors.Is(err, util.ErrAttemptNotOwned) {
		t.Errorf("other user err = %v", err)
	}
	if _, err := f.svc.Submit(ctx, student, "missing", nil, 0); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Errorf("missing attempt err = %v", err)
	}
	if _, err := f.svc.Submit(ctx, student, res.AttemptID, model.Answers{5: model.NewAnswer("x")}, 0); !errors.Is(err, util.ErrInvalidAnswerPayload) {
		t.Errorf("bad index err = %v", err)
	}

	stored, _ := f.store.FindByID(ctx, res.AttemptID)
	if stored.Status != model.AttemptInProgress {
		t.Errorf("failed submits changed status to %s", stored.Status)
	}
}

func TestGetAndListAttempts(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	first, _ := f.svc.Start(ctx, student, 1)
	f.svc.Submit(ctx, student, first.AttemptID, nil, 0)
	second, _ := f.svc.Start(ctx, student, 1)

	got, err := f.svc.GetAttempt(ctx, student, second.AttemptID)
	if err != nil || got.AttemptNumber != 2 {
		t.Fatalf("GetAttempt = %+v, %v", got, err)
	}
	if _, err := f.svc.GetAttempt(ctx, other, second.AttemptID); !errors.Is(err, util.ErrAttemptNotOwned) {
		t.Errorf("GetAttempt other err = %v", err)
	}

	list, err := f.svc.ListAttempts(ctx, student, 1)
	if err != nil || len(list) != 2 || list[0].AttemptNumber != 2 {
		t.Fatalf("ListAttempts = %+v, %v", list, err)
	}
}

func TestPreviewScore(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	ctx := context.Background()
	answers := model.Answers{0: model.NewAnswer(secretKey), 2: model.NewAnswer("paris")}

	if _, err := f.svc.PreviewScore(ctx, student, 1, answers); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("student preview err = %v", err)
	}
	res, err := f.svc.PreviewScore(ctx, teacher, 1, answers)
	if err != nil {
		t.Fatalf("PreviewScore: %v", err)
	}
	if res.Percentage != 75 || !res.Passed || res.PassPercentage != 70 {
		t.Errorf("PreviewScore = %+v", res)
	}
	if list, _ := f.store.ListByUser(ctx, teacher.UserID, 1); len(list) != 0 {
		t.Errorf("preview created attempts: %+v", list)
	}
}

func TestAttemptClockStartsAtFirstUnanswered(t *testing.T) {
	def := testDefinition(1, 0)
	def.TimeLimitType = model.TimeLimitPerQuestion
	def.PerQuestionTimeSeconds = 30
	f := newFixture(def)
	ctx := context.Background()
	res, _ := f.svc.Start(ctx, student, 1)
	f.svc.RecordAnswer(ctx, student, res.AttemptID, 0, nil)

	clock, err := f.svc.AttemptClock(ctx, student, res.AttemptID)
	if err != nil {
		t.Fatalf("AttemptClock: %v", err)
	}
	if clock.Session.Current() != 1 || clock.QuestionIndex(1) != 1 {
		t.Errorf("clock position = %d", clock.Session.Current())
	}
	if _, err := clock.Session.Previous(); !errors.Is(err, ErrBackwardNavigation) {
		t.Errorf("Previous err = %v", err)
	}

	f.svc.Submit(ctx, student, res.AttemptID, nil, 0)
	if _, err := f.svc.AttemptClock(ctx, student, res.AttemptID); !errors.Is(err, util.ErrAttemptAlreadyFinalized) {
		t.Errorf("clock on finalized attempt err = %v", err)
	}
}

func TestSetConfigReload(t *testing.T) {
	f := newFixture(testDefinition(1, 0))
	f.svc.SetConfig(&config.AssessmentConfig{TimeSpentGraceSeconds: 60, SubmitRetries: 7})
	grace, retries := f.svc.tunables()
	if grace != time.Minute || retries != 7 {
		t.Errorf("tunables = %v, %d", grace, retries)
	}
}
